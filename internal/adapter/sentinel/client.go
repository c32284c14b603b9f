// Package sentinel proxies the Sentinel Hub Process and Statistical APIs,
// handling OAuth and tile caching so the rest of the gateway never sees
// upstream credentials.
package sentinel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lankasat/lankasat-live/internal/cache"
	"github.com/lankasat/lankasat-live/internal/config"
	"github.com/lankasat/lankasat-live/internal/dates"
	"github.com/lankasat/lankasat-live/internal/layers"
	"github.com/lankasat/lankasat-live/internal/observability"
)

// ErrNoImagery is returned when Sentinel Hub has no scene for the requested
// tile and date window.
var ErrNoImagery = errors.New("no imagery available")

// ErrUnknownLayer is returned for layer ids outside the registry.
var ErrUnknownLayer = errors.New("unknown layer")

const (
	tileSize = 256
	// Scenes are sparse over the island; look back this far from the
	// requested date so most tiles find imagery.
	lookback = 30 * 24 * time.Hour
)

// Client fetches tiles and statistics from Sentinel Hub.
type Client struct {
	clientID     string
	clientSecret string
	authURL      string
	processURL   string
	statsURL     string

	httpClient *http.Client
	tokens     *cache.Cache[string]
	tiles      *cache.Cache[[]byte]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Sentinel Hub client with token and tile caches sized
// from config.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		clientID:     cfg.SentinelClientID,
		clientSecret: cfg.SentinelClientSecret,
		authURL:      cfg.SentinelAuthURL,
		processURL:   cfg.SentinelProcessURL,
		statsURL:     cfg.SentinelStatsURL,
		httpClient:   &http.Client{Timeout: cfg.SentinelTimeout},
		tokens:       cache.New[string](10, cfg.TokenCacheTTL),
		tiles:        cache.New[[]byte](cfg.TileCacheSize, cfg.TileCacheTTL),
		metrics:      metrics,
		logger:       logger,
	}
}

// AccessToken returns a cached OAuth token, requesting a new one via the
// client-credentials grant when the cache is cold.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get("sentinel_token"); ok {
		return token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues("sentinel").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues("sentinel").Inc()
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamErrors.WithLabelValues("sentinel").Inc()
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sentinel auth error: status %d: %s", resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("sentinel auth returned empty token")
	}

	c.tokens.Set("sentinel_token", tokenResp.AccessToken)
	return tokenResp.AccessToken, nil
}

// FetchTile returns the PNG bytes for one slippy-map tile of the given layer
// and date. Results are cached; date must already be normalized to YYYY-MM-DD.
func (c *Client) FetchTile(ctx context.Context, layerID string, z, x, y int, date string) ([]byte, error) {
	if !layers.Exists(layerID) {
		return nil, ErrUnknownLayer
	}

	key := tileCacheKey(layerID, z, x, y, date)
	if tile, ok := c.tiles.Get(key); ok {
		c.metrics.TileCache.WithLabelValues("hit").Inc()
		return tile, nil
	}
	c.metrics.TileCache.WithLabelValues("miss").Inc()

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	layer := layers.Get(layerID)
	bbox := TileToBBox(z, x, y)

	target, err := time.Parse(dates.Layout, date)
	if err != nil {
		target = dates.Today()
	}

	body := processRequest{
		Input: processInput{
			Bounds: processBounds{
				BBox:       []float64{bbox.West, bbox.South, bbox.East, bbox.North},
				Properties: crsProperties{CRS: "http://www.opengis.net/def/crs/EPSG/0/4326"},
			},
			Data: []processData{{
				Type: layer.Collection,
				DataFilter: dataFilter{
					TimeRange: timeRange{
						From: target.Add(-lookback).Format("2006-01-02T00:00:00Z"),
						To:   target.Format("2006-01-02T23:59:59Z"),
					},
					MosaickingOrder: layer.MosaickingOrder,
				},
			}},
		},
		Output: processOutput{
			Width:  tileSize,
			Height: tileSize,
			Responses: []processResponse{{
				Identifier: "default",
				Format:     responseFormat{Type: "image/png"},
			}},
		},
		Evalscript: layer.Evalscript,
	}

	// Radar sees through clouds; only optical collections filter on coverage.
	if strings.Contains(layer.Collection, "sentinel-2") {
		cc := layer.MaxCloudCoverage
		body.Input.Data[0].DataFilter.MaxCloudCoverage = &cc
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create process request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues("sentinel").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues("sentinel").Inc()
		return nil, fmt.Errorf("process request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamErrors.WithLabelValues("sentinel").Inc()
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("sentinel process error",
			"status", resp.StatusCode, "layer", layerID, "date", date, "body", string(body))
		return nil, ErrNoImagery
	}

	tile, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tile: %w", err)
	}

	c.tiles.Set(key, tile)
	return tile, nil
}

// CacheStats exposes tile and token cache statistics for the health endpoint.
func (c *Client) CacheStats() (tiles, tokens cache.Stats) {
	return c.tiles.Stats(), c.tokens.Stats()
}

// ClearCaches discards all cached tiles and tokens.
func (c *Client) ClearCaches() {
	c.tiles.Clear()
	c.tokens.Clear()
}

func tileCacheKey(layer string, z, x, y int, date string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s_%d_%d_%d_%s", layer, z, x, y, date))
	return hex.EncodeToString(sum[:])
}

// Process API request types.

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	BBox       []float64     `json:"bbox"`
	Properties crsProperties `json:"properties"`
}

type crsProperties struct {
	CRS string `json:"crs"`
}

type processData struct {
	Type       string     `json:"type"`
	DataFilter dataFilter `json:"dataFilter"`
}

type dataFilter struct {
	TimeRange        timeRange `json:"timeRange"`
	MosaickingOrder  string    `json:"mosaickingOrder"`
	MaxCloudCoverage *int      `json:"maxCloudCoverage,omitempty"`
}

type timeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string         `json:"identifier"`
	Format     responseFormat `json:"format"`
}

type responseFormat struct {
	Type string `json:"type"`
}
