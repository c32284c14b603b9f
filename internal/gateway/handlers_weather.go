package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/openweather"
)

// weatherEnabled guards handlers that need an OpenWeatherMap key. When the
// key is missing it writes a 503 and returns false.
func (s *Server) weatherEnabled(w http.ResponseWriter) bool {
	if !s.deps.Weather.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "Weather service not configured")
		return false
	}
	return true
}

func (s *Server) handleWeatherSummary(w http.ResponseWriter, r *http.Request) {
	if !s.weatherEnabled(w) {
		return
	}

	summary, err := s.deps.Weather.IslandSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Weather fetch error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"data":      summary,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWeatherLocations(w http.ResponseWriter, _ *http.Request) {
	type coordinates struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	type location struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Region      string      `json:"region"`
		Coordinates coordinates `json:"coordinates"`
	}

	out := make([]location, 0, len(openweather.Locations))
	for _, loc := range openweather.Locations {
		out = append(out, location{
			ID:          loc.ID,
			Name:        loc.Name,
			Region:      loc.Region,
			Coordinates: coordinates{Lat: loc.Lat, Lon: loc.Lon},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": out})
}

func (s *Server) handleWeatherByLocation(w http.ResponseWriter, r *http.Request) {
	if !s.weatherEnabled(w) {
		return
	}

	name := r.PathValue("location")
	weather, err := s.deps.Weather.LocationWeatherByName(r.Context(), name)
	switch {
	case errors.Is(err, openweather.ErrUnknownLocation):
		writeError(w, http.StatusNotFound, "Location not found. Use /weather/locations to list monitored sites.")
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "Weather fetch error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location":  name,
		"data":      weather,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWeatherForecast(w http.ResponseWriter, r *http.Request) {
	if !s.weatherEnabled(w) {
		return
	}

	loc, ok := openweather.LocationByID(strings.ToLower(r.PathValue("location")))
	if !ok {
		writeError(w, http.StatusNotFound, "Location not found. Use /weather/locations to list monitored sites.")
		return
	}

	forecast, err := s.deps.Weather.Forecast(r.Context(), loc.Lat, loc.Lon)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Forecast data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location":  loc.Name,
		"region":    loc.Region,
		"forecast":  forecast,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
