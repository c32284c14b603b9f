package openweather

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lankasat/lankasat-live/internal/cache"
	"github.com/lankasat/lankasat-live/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWeatherClient(baseURL string) *Client {
	return &Client{
		apiKey:     "test-key",
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache:      cache.New[json.RawMessage](100, 10*time.Minute),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func weatherPayload(temp float64, humidity int, desc string, rain1h float64) map[string]any {
	return map[string]any{
		"main":    map[string]any{"temp": temp, "feels_like": temp + 2, "humidity": humidity, "pressure": 1010},
		"weather": []map[string]any{{"description": desc, "icon": "10d"}},
		"wind":    map[string]any{"speed": 4.1, "deg": 230},
		"clouds":  map[string]any{"all": 75},
		"visibility": 10000,
		"rain":    map[string]any{"1h": rain1h},
	}
}

func TestCurrentWeather_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		require.NoError(t, json.NewEncoder(w).Encode(weatherPayload(28.4, 82, "light rain", 2.5)))
	}))
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	cur, err := c.CurrentWeather(context.Background(), 6.93, 79.85)
	require.NoError(t, err)
	assert.Equal(t, 28.4, cur.Temperature)
	assert.Equal(t, 82, cur.Humidity)
	assert.Equal(t, "light rain", cur.Description)
	assert.Equal(t, 2.5, cur.Rain1h)
	assert.Equal(t, 230, cur.WindDirection)
}

func TestCurrentWeather_Cached(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		require.NoError(t, json.NewEncoder(w).Encode(weatherPayload(30, 70, "clear sky", 0)))
	}))
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	for range 3 {
		_, err := c.CurrentWeather(context.Background(), 6.93, 79.85)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), calls.Load())

	// Different coordinates miss the cache.
	_, err := c.CurrentWeather(context.Background(), 7.29, 80.63)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCurrentWeather_NoAPIKey(t *testing.T) {
	c := testWeatherClient("http://unused")
	c.apiKey = ""

	assert.False(t, c.Enabled())
	_, err := c.CurrentWeather(context.Background(), 6.93, 79.85)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestCurrentWeather_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	_, err := c.CurrentWeather(context.Background(), 6.93, 79.85)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestForecast_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast", r.URL.Path)
		payload := map[string]any{
			"list": []map[string]any{
				{
					"dt":      1718445600,
					"main":    map[string]any{"temp": 27.1},
					"weather": []map[string]any{{"description": "moderate rain", "icon": "10d"}},
					"wind":    map[string]any{"speed": 6.2},
					"rain":    map[string]any{"3h": 8.4},
				},
				{
					"dt":   1718456400,
					"main": map[string]any{"temp": 26.0},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	entries, err := c.Forecast(context.Background(), 6.93, 79.85)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 27.1, entries[0].Temperature)
	assert.Equal(t, "moderate rain", entries[0].Description)
	assert.Equal(t, 8.4, entries[0].Rain3h)
	assert.Empty(t, entries[1].Description)
}

func TestLocationByID(t *testing.T) {
	loc, ok := LocationByID("ratnapura")
	require.True(t, ok)
	assert.Equal(t, "Sabaragamuwa Province", loc.Region)

	_, ok = LocationByID("london")
	assert.False(t, ok)
}
