package openweather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rainyServer serves heavy rain for Ratnapura and clear skies elsewhere.
func rainyServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lat := r.URL.Query().Get("lat")
		payload := weatherPayload(29, 70, "clear sky", 0)
		if lat == "6.68" { // Ratnapura
			payload = weatherPayload(24, 95, "heavy intensity rain", 25)
		}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
}

func TestIslandSummary_HighRisk(t *testing.T) {
	srv := rainyServer(t)
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	summary, err := c.IslandSummary(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Locations, len(Locations))
	assert.Equal(t, "HIGH", summary.FloodRisk.OverallRisk)
	assert.Equal(t, 1, summary.FloodRisk.LocationsWithRain)
	assert.Equal(t, 25.0, summary.FloodRisk.MaxRainfallMMPerHour)
	assert.Equal(t, "Ratnapura", summary.FloodRisk.MaxRainfallLocation)

	require.Len(t, summary.Alerts, 1)
	assert.Equal(t, "FLOOD_WARNING", summary.Alerts[0].Type)
	assert.Contains(t, summary.Alerts[0].Message, "Ratnapura")
}

func TestIslandSummary_Cached(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		require.NoError(t, json.NewEncoder(w).Encode(weatherPayload(30, 60, "clear sky", 0)))
	}))
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	_, err := c.IslandSummary(context.Background())
	require.NoError(t, err)
	first := calls

	_, err = c.IslandSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, calls, "second summary should come from cache")
}

func TestIslandSummary_AllFetchesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	_, err := c.IslandSummary(context.Background())
	require.Error(t, err)
}

func TestAssessFloodRisk_Levels(t *testing.T) {
	mk := func(rates ...float64) map[string]LocationWeather {
		out := make(map[string]LocationWeather, len(rates))
		for i, rate := range rates {
			loc := Locations[i]
			out[loc.ID] = LocationWeather{Location: loc, Current: Current{Rain1h: rate}}
		}
		return out
	}

	t.Run("low when dry", func(t *testing.T) {
		risk, alerts := assessFloodRisk(mk(0, 0, 0))
		assert.Equal(t, "LOW", risk.OverallRisk)
		assert.Empty(t, alerts)
	})

	t.Run("moderate on sustained rain", func(t *testing.T) {
		// 3mm/h at one site: 72mm estimated over 24h.
		risk, alerts := assessFloodRisk(mk(3))
		assert.Equal(t, "MODERATE", risk.OverallRisk)
		require.Len(t, alerts, 1)
		assert.Equal(t, "FLOOD_WATCH", alerts[0].Type)
	})

	t.Run("high on intense rain", func(t *testing.T) {
		risk, _ := assessFloodRisk(mk(21))
		assert.Equal(t, "HIGH", risk.OverallRisk)
	})

	t.Run("elevated on widespread drizzle", func(t *testing.T) {
		risk, alerts := assessFloodRisk(mk(0.1, 0.1, 0.1, 0.1, 0.1))
		assert.Equal(t, "ELEVATED", risk.OverallRisk)
		assert.Equal(t, 5, risk.LocationsWithRain)
		require.Len(t, alerts, 1)
		assert.Equal(t, "RAIN_ADVISORY", alerts[0].Type)
	})
}

func TestMonsoonForDate(t *testing.T) {
	cases := []struct {
		month  time.Month
		season string
		active bool
	}{
		{time.June, "Southwest Monsoon (Yala)", true},
		{time.December, "Northeast Monsoon (Maha)", true},
		{time.January, "Northeast Monsoon (Maha)", true},
		{time.March, "First Inter-monsoon", false},
	}

	for _, tc := range cases {
		t.Run(tc.season, func(t *testing.T) {
			status := MonsoonForDate(time.Date(2024, tc.month, 15, 0, 0, 0, 0, time.UTC))
			assert.Equal(t, tc.season, status.Season)
			assert.Equal(t, tc.active, status.Active)
			assert.NotEmpty(t, status.FloodProneAreas)
		})
	}
}

func TestLocationWeatherByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(weatherPayload(31, 55, "few clouds", 0)))
	}))
	defer srv.Close()

	c := testWeatherClient(srv.URL)

	t.Run("by id", func(t *testing.T) {
		lw, err := c.LocationWeatherByName(context.Background(), "kandy")
		require.NoError(t, err)
		assert.Equal(t, "Kandy", lw.Name)
	})

	t.Run("by region substring", func(t *testing.T) {
		lw, err := c.LocationWeatherByName(context.Background(), "uva")
		require.NoError(t, err)
		assert.Equal(t, "Badulla", lw.Name)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := c.LocationWeatherByName(context.Background(), "paris")
		require.Error(t, err)
	})
}

func TestFormatChatContext(t *testing.T) {
	summary := Summary{
		Timestamp: time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC),
		Locations: map[string]LocationWeather{
			"colombo": {
				Location: Locations[0],
				Current:  Current{Temperature: 28.4, Humidity: 82, Description: "light rain", Rain1h: 2.5},
			},
		},
		MonsoonStatus: MonsoonForDate(time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)),
		FloodRisk: FloodRisk{
			OverallRisk:          "MODERATE",
			LocationsWithRain:    1,
			MaxRainfallMMPerHour: 2.5,
			MaxRainfallLocation:  "Colombo",
		},
		Alerts: []Alert{{Type: "FLOOD_WATCH", Message: "Moderate rainfall across Sri Lanka.", Severity: "moderate"}},
	}

	text := FormatChatContext(summary)

	assert.True(t, strings.HasPrefix(text, "=== CURRENT WEATHER CONDITIONS IN SRI LANKA ==="))
	assert.Contains(t, text, "MONSOON STATUS: Southwest Monsoon (Yala)")
	assert.Contains(t, text, "Overall Risk Level: MODERATE")
	assert.Contains(t, text, "Colombo: 28.4°C, 82% humidity, light rain | Rain: 2.5mm/h")
	assert.Contains(t, text, "[MODERATE] Moderate rainfall across Sri Lanka.")
}
