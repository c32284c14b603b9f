package floodapi

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

func testFloodClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache:      cache.New[json.RawMessage](100, 10*time.Minute),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestStations(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/stations", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode([]Station{{
			Name:            "Nagalagam Street",
			RiverName:       "Kelani Ganga",
			LatLng:          []float64{6.96, 79.88},
			AlertLevel:      5.0,
			MinorFloodLevel: 7.0,
			MajorFloodLevel: 8.5,
		}}))
	}))
	defer srv.Close()

	c := testFloodClient(srv.URL)

	stations, err := c.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "Kelani Ganga", stations[0].RiverName)
	assert.Equal(t, 8.5, stations[0].MajorFloodLevel)

	// Second call is served from cache.
	_, err = c.Stations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestLatestLevels_NullableFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"station_name":"Hanwella","river_name":"Kelani Ganga","water_level":4.2,"alert_status":"ALERT","rising_or_falling":"Rising","timestamp":"2024-06-15T06:00:00"},
			{"station_name":"Dunamale","river_name":"Attanagalu Oya","water_level":null,"alert_status":"NO_DATA","timestamp":"2024-06-15T06:00:00"}
		]`))
	}))
	defer srv.Close()

	c := testFloodClient(srv.URL)

	levels, err := c.LatestLevels(context.Background())
	require.NoError(t, err)
	require.Len(t, levels, 2)

	require.NotNil(t, levels[0].WaterLevel)
	assert.Equal(t, 4.2, *levels[0].WaterLevel)
	assert.Equal(t, "Rising", levels[0].RisingOrFalling)

	assert.Nil(t, levels[1].WaterLevel)
	assert.Equal(t, LevelNoData, levels[1].AlertStatus)
}

func TestStationByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stations/Hanwella" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"name":"Hanwella","river_name":"Kelani Ganga","lat_lng":[6.9,80.08],"alert_level":7.0,"minor_flood_level":9.0,"major_flood_level":10.0,"latest":{"station_name":"Hanwella","river_name":"Kelani Ganga","water_level":6.1,"alert_status":"NORMAL","timestamp":"2024-06-15T06:00:00"}}`))
	}))
	defer srv.Close()

	c := testFloodClient(srv.URL)

	detail, err := c.StationByName(context.Background(), "Hanwella")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Kelani Ganga", detail.RiverName)
	require.NotNil(t, detail.Latest)
	assert.Equal(t, 6.1, *detail.Latest.WaterLevel)

	missing, err := c.StationByName(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGet_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testFloodClient(srv.URL)

	_, err := c.Rivers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestChartURLs(t *testing.T) {
	c := testFloodClient("https://flood.example")

	assert.Equal(t, "https://flood.example/levels/map", c.FloodMapURL())
	assert.Equal(t, "https://flood.example/levels/chart/Nagalagam%20Street", c.StationChartURL("Nagalagam Street"))
}
