package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/floodapi"
)

func (s *Server) handleFloodSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Flood.FloodSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Flood data unavailable: "+err.Error())
		return
	}

	if s.deps.Alerts != nil && (summary.OverallRisk == "CRITICAL" || summary.OverallRisk == "HIGH") {
		go s.publishFloodAlerts(summary)
	}

	writeJSON(w, http.StatusOK, summary)
}

// publishFloodAlerts pushes the summary's critical stations to the alerts
// topic. Best-effort: publish failures never affect the API response.
func (s *Server) publishFloodAlerts(summary floodapi.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.deps.Alerts.PublishFromSummary(ctx, summary); err != nil {
		s.logger.Warn("flood alert publish failed", "error", err)
	}
}

func (s *Server) handleFloodStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.deps.Flood.Stations(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Flood data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stations": stations,
		"count":    len(stations),
		"map_url":  s.deps.Flood.FloodMapURL(),
	})
}

func (s *Server) handleFloodLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.deps.Flood.LatestLevels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Flood data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"levels": levels,
		"count":  len(levels),
	})
}

func (s *Server) handleFloodAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.deps.Flood.ActiveAlerts(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Flood data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleFloodAlertSummary(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Flood.AlertSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Flood data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alert_summary": groups,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleFloodRivers(w http.ResponseWriter, r *http.Request) {
	rivers, err := s.deps.Flood.Rivers(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Flood data unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rivers": rivers,
		"count":  len(rivers),
	})
}

func (s *Server) handleFloodStation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	detail, err := s.deps.Flood.StationByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Flood data unavailable: "+err.Error())
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "Station not found. Use /flood/stations to list monitored gauges.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station":   detail,
		"chart_url": s.deps.Flood.StationChartURL(name),
	})
}
