// Package openweather fetches current conditions and forecasts from
// OpenWeatherMap for the monitored Sri Lanka locations.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lankasat/lankasat-live/internal/cache"
	"github.com/lankasat/lankasat-live/internal/config"
	"github.com/lankasat/lankasat-live/internal/observability"
)

// Location is a monitored weather station site.
type Location struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Region string  `json:"region"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Locations are the key Sri Lanka sites polled for the island summary,
// in a stable display order.
var Locations = []Location{
	{ID: "colombo", Name: "Colombo", Region: "Western Province", Lat: 6.93, Lon: 79.85},
	{ID: "kandy", Name: "Kandy", Region: "Central Province", Lat: 7.29, Lon: 80.63},
	{ID: "jaffna", Name: "Jaffna", Region: "Northern Province", Lat: 9.66, Lon: 80.01},
	{ID: "trincomalee", Name: "Trincomalee", Region: "Eastern Province", Lat: 8.57, Lon: 81.23},
	{ID: "batticaloa", Name: "Batticaloa", Region: "Eastern Province", Lat: 7.73, Lon: 81.70},
	{ID: "galle", Name: "Galle", Region: "Southern Province", Lat: 6.05, Lon: 80.22},
	{ID: "anuradhapura", Name: "Anuradhapura", Region: "North Central Province", Lat: 8.31, Lon: 80.41},
	{ID: "ratnapura", Name: "Ratnapura", Region: "Sabaragamuwa Province", Lat: 6.68, Lon: 80.40},
	{ID: "badulla", Name: "Badulla", Region: "Uva Province", Lat: 6.99, Lon: 81.06},
}

// LocationByID returns the monitored location with the given id.
func LocationByID(id string) (Location, bool) {
	for _, loc := range Locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return Location{}, false
}

// Current holds the fields the dashboard renders from a current-conditions
// response.
type Current struct {
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      int     `json:"humidity"`
	Pressure      int     `json:"pressure"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection int     `json:"wind_direction"`
	Clouds        int     `json:"clouds"`
	Visibility    int     `json:"visibility"`
	Rain1h        float64 `json:"rain_1h"`
	Rain3h        float64 `json:"rain_3h"`
}

// ForecastEntry is one 3-hour slot from the 5-day forecast.
type ForecastEntry struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Rain3h      float64   `json:"rain_3h"`
	WindSpeed   float64   `json:"wind_speed"`
}

// Client fetches OpenWeatherMap data with TTL caching.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache[json.RawMessage]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client. Enabled() is false when no API
// key is configured; callers should degrade rather than error.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     cfg.OpenWeatherKey,
		baseURL:    cfg.OpenWeatherBaseURL,
		httpClient: &http.Client{Timeout: cfg.OpenWeatherTimeout},
		cache:      cache.New[json.RawMessage](cfg.WeatherCacheSize, cfg.WeatherCacheTTL),
		metrics:    metrics,
		logger:     logger,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// CurrentWeather returns current conditions at the given coordinates.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (Current, error) {
	key := fmt.Sprintf("weather_%.2f_%.2f", lat, lon)
	raw, err := c.fetch(ctx, key, "/data/2.5/weather", lat, lon, 0)
	if err != nil {
		return Current{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Current{}, fmt.Errorf("decode weather response: %w", err)
	}

	cur := Current{
		Temperature:   resp.Main.Temp,
		FeelsLike:     resp.Main.FeelsLike,
		Humidity:      resp.Main.Humidity,
		Pressure:      resp.Main.Pressure,
		WindSpeed:     resp.Wind.Speed,
		WindDirection: resp.Wind.Deg,
		Clouds:        resp.Clouds.All,
		Visibility:    resp.Visibility,
		Rain1h:        resp.Rain.OneHour,
		Rain3h:        resp.Rain.ThreeHour,
	}
	if len(resp.Weather) > 0 {
		cur.Description = resp.Weather[0].Description
		cur.Icon = resp.Weather[0].Icon
	}
	return cur, nil
}

// Forecast returns the 5-day/3-hour forecast at the given coordinates.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]ForecastEntry, error) {
	key := fmt.Sprintf("forecast_%.2f_%.2f", lat, lon)
	raw, err := c.fetch(ctx, key, "/data/2.5/forecast", lat, lon, 30*time.Minute)
	if err != nil {
		return nil, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}

	entries := make([]ForecastEntry, 0, len(resp.List))
	for _, item := range resp.List {
		e := ForecastEntry{
			Time:        time.Unix(item.Dt, 0).UTC(),
			Temperature: item.Main.Temp,
			Rain3h:      item.Rain.ThreeHour,
			WindSpeed:   item.Wind.Speed,
		}
		if len(item.Weather) > 0 {
			e.Description = item.Weather[0].Description
			e.Icon = item.Weather[0].Icon
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// fetch performs a cached GET against an OpenWeatherMap endpoint. A zero
// cacheTTL uses the cache default.
func (c *Client) fetch(ctx context.Context, cacheKey, path string, lat, lon float64, cacheTTL time.Duration) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("openweather: API key not configured")
	}

	if raw, ok := c.cache.Get(cacheKey); ok {
		return raw, nil
	}

	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 2, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', 2, 64)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create weather request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues("openweather").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues("openweather").Inc()
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamErrors.WithLabelValues("openweather").Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}

	if cacheTTL > 0 {
		c.cache.SetTTL(cacheKey, raw, cacheTTL)
	} else {
		c.cache.Set(cacheKey, raw)
	}
	return raw, nil
}

// OpenWeatherMap response types.

type currentResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Visibility int  `json:"visibility"`
	Rain       rain `json:"rain"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain rain `json:"rain"`
	} `json:"list"`
}

type rain struct {
	OneHour   float64 `json:"1h"`
	ThreeHour float64 `json:"3h"`
}
