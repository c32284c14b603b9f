// Package floodapi integrates the lk-flood-api river monitoring service,
// which republishes gauging station data from Sri Lanka's Disaster
// Management Center (DMC).
package floodapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lankasat/lankasat-live/internal/cache"
	"github.com/lankasat/lankasat-live/internal/config"
	"github.com/lankasat/lankasat-live/internal/observability"
)

// Alert levels reported per station, ordered by severity.
const (
	LevelMajor  = "MAJOR"
	LevelMinor  = "MINOR"
	LevelAlert  = "ALERT"
	LevelNormal = "NORMAL"
	LevelNoData = "NO_DATA"
)

// Station is a river gauging station with its flood threshold levels.
type Station struct {
	Name            string    `json:"name"`
	RiverName       string    `json:"river_name"`
	LatLng          []float64 `json:"lat_lng"`
	AlertLevel      float64   `json:"alert_level"`
	MinorFloodLevel float64   `json:"minor_flood_level"`
	MajorFloodLevel float64   `json:"major_flood_level"`
}

// Reading is a water level observation at a station.
type Reading struct {
	StationName        string   `json:"station_name"`
	RiverName          string   `json:"river_name"`
	WaterLevel         *float64 `json:"water_level"`
	PreviousWaterLevel *float64 `json:"previous_water_level"`
	AlertStatus        string   `json:"alert_status"`
	FloodScore         *float64 `json:"flood_score"`
	RisingOrFalling    string   `json:"rising_or_falling"`
	RainfallMM         *float64 `json:"rainfall_mm"`
	Remarks            string   `json:"remarks"`
	Timestamp          string   `json:"timestamp"`
}

// AlertGroup counts stations at one alert level.
type AlertGroup struct {
	AlertLevel string   `json:"alert_level"`
	Count      int      `json:"count"`
	Stations   []string `json:"stations"`
}

// River maps a river to its basin.
type River struct {
	Name           string   `json:"name"`
	RiverBasinName string   `json:"river_basin_name"`
	LocationNames  []string `json:"location_names"`
}

// StationDetail is a station with its latest reading attached.
type StationDetail struct {
	Station
	Latest *Reading `json:"latest,omitempty"`
}

// Client fetches lk-flood-api data with per-endpoint TTL caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache[json.RawMessage]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a flood data client.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.FloodAPIBaseURL,
		httpClient: &http.Client{Timeout: cfg.FloodAPITimeout},
		cache:      cache.New[json.RawMessage](cfg.WeatherCacheSize, cfg.WeatherCacheTTL),
		metrics:    metrics,
		logger:     logger,
	}
}

// Stations lists all gauging stations with threshold metadata.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	var out []Station
	err := c.getCached(ctx, "/stations", "stations", 15*time.Minute, &out)
	return out, err
}

// LatestLevels returns the most recent reading per station. This is the
// primary endpoint for real-time flood monitoring.
func (c *Client) LatestLevels(ctx context.Context) ([]Reading, error) {
	var out []Reading
	err := c.getCached(ctx, "/levels/latest", "latest_levels", 5*time.Minute, &out)
	return out, err
}

// ActiveAlerts returns stations in ALERT, MINOR, or MAJOR status, most
// severe first.
func (c *Client) ActiveAlerts(ctx context.Context) ([]Reading, error) {
	var out []Reading
	err := c.getCached(ctx, "/alerts", "active_alerts", 5*time.Minute, &out)
	return out, err
}

// AlertSummary returns station counts grouped by alert level.
func (c *Client) AlertSummary(ctx context.Context) ([]AlertGroup, error) {
	var out []AlertGroup
	err := c.getCached(ctx, "/alerts/summary", "alert_summary", 5*time.Minute, &out)
	return out, err
}

// Rivers lists all rivers with their basin assignments.
func (c *Client) Rivers(ctx context.Context) ([]River, error) {
	var out []River
	err := c.getCached(ctx, "/rivers", "rivers", time.Hour, &out)
	return out, err
}

// StationByName returns one station with its latest reading, or
// (nil, nil) when the station is unknown.
func (c *Client) StationByName(ctx context.Context, name string) (*StationDetail, error) {
	raw, err := c.get(ctx, "/stations/"+url.PathEscape(name))
	if err != nil {
		if err == errNotFound {
			return nil, nil
		}
		return nil, err
	}
	var detail StationDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("decode station %q: %w", name, err)
	}
	return &detail, nil
}

var errNotFound = fmt.Errorf("flood API: not found")

// getCached decodes a cached GET into out, caching the raw body on miss.
func (c *Client) getCached(ctx context.Context, path, cacheKey string, ttl time.Duration, out any) error {
	if raw, ok := c.cache.Get(cacheKey); ok {
		return json.Unmarshal(raw, out)
	}
	raw, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	c.cache.SetTTL(cacheKey, raw, ttl)
	return nil
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create flood API request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues("floodapi").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues("floodapi").Inc()
		return nil, fmt.Errorf("flood API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamErrors.WithLabelValues("floodapi").Inc()
		return nil, fmt.Errorf("flood API error: status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("read flood API response: %w", err)
	}
	return raw, nil
}

// FloodMapURL is the upstream-rendered island flood map image.
func (c *Client) FloodMapURL() string {
	return c.baseURL + "/levels/map"
}

// StationChartURL is the upstream-rendered water level chart for a station.
func (c *Client) StationChartURL(name string) string {
	return c.baseURL + "/levels/chart/" + url.PathEscape(name)
}
