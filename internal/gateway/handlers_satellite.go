package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/groq"
	"github.com/lankasat/lankasat-live/internal/adapter/sentinel"
	"github.com/lankasat/lankasat-live/internal/dates"
	"github.com/lankasat/lankasat-live/internal/layers"
)

// regionBBox is the monitored region from config, used for island-wide
// statistics queries.
func (s *Server) regionBBox() sentinel.BBox {
	return sentinel.BBox{
		West:  s.cfg.RegionWest,
		South: s.cfg.RegionSouth,
		East:  s.cfg.RegionEast,
		North: s.cfg.RegionNorth,
	}
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"layers": layers.All(),
		"sri_lanka": map[string]any{
			"center": []float64{7.8731, 80.7718},
			"bounds": map[string]float64{
				"west":  s.cfg.RegionWest,
				"south": s.cfg.RegionSouth,
				"east":  s.cfg.RegionEast,
				"north": s.cfg.RegionNorth,
			},
			"default_zoom": 7,
			"min_zoom":     7,
			"max_zoom":     15,
		},
	})
}

// handleToken verifies upstream authentication without exposing the token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Sentinel.AccessToken(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Authentication failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"message":       "Successfully authenticated with Sentinel Hub",
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	layerID := q.Get("layer")
	if !layers.Exists(layerID) {
		writeError(w, http.StatusBadRequest, "Invalid layer. Use /layers to list available layers.")
		return
	}

	z, errZ := strconv.Atoi(q.Get("z"))
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errZ != nil || errX != nil || errY != nil || z < 0 || z > 18 || x < 0 || y < 0 {
		writeError(w, http.StatusBadRequest, "Invalid tile coordinates: z must be 0-18, x and y non-negative integers")
		return
	}

	date := dates.Normalize(q.Get("date"))

	tile, err := s.deps.Sentinel.FetchTile(r.Context(), layerID, z, x, y, date)
	switch {
	case errors.Is(err, sentinel.ErrNoImagery):
		s.metrics.TileRequests.WithLabelValues(layerID, "no_imagery").Inc()
		writeError(w, http.StatusNotFound, "No imagery available for this tile/date combination")
		return
	case err != nil:
		s.metrics.TileRequests.WithLabelValues(layerID, "error").Inc()
		writeError(w, http.StatusInternalServerError, "Error fetching tile: "+err.Error())
		return
	}

	s.metrics.TileRequests.WithLabelValues(layerID, "success").Inc()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set("X-Tile-Layer", layerID)
	w.Header().Set("X-Tile-Date", date)
	_, _ = w.Write(tile)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	tiles, tokens := s.deps.Sentinel.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"tile_cache":  tiles,
		"token_cache": tokens,
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.deps.Sentinel.ClearCaches()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

func (s *Server) handleSatelliteStats(w http.ResponseWriter, r *http.Request) {
	date := dates.Normalize(r.URL.Query().Get("date"))
	stats := s.deps.Sentinel.FetchStatistics(r.Context(), date, s.regionBBox())
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       date,
		"statistics": stats,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

type chatRequest struct {
	Message string                 `json:"message"`
	Context *groq.DashboardContext `json:"context,omitempty"`
	History []groq.Message         `json:"history,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	response, err := s.deps.Assistant.Respond(r.Context(), req.Message, req.Context, req.History)
	if err != nil {
		// Degrade to an apologetic reply instead of breaking the chat panel.
		s.logger.Warn("chat completion failed", "error", err)
		response = fmt.Sprintf("I'm having trouble connecting right now. Please try again. (%s)", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"response":  response,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAnalyzeFloods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := dates.Normalize(q.Get("date"))
	region := q.Get("region")

	analysis, err := s.deps.Assistant.AnalyzeFloodConditions(r.Context(), date, region)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Analysis error: "+err.Error())
		return
	}

	regionLabel := region
	if regionLabel == "" {
		regionLabel = "All Sri Lanka"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"date":      date,
		"region":    regionLabel,
		"analysis":  analysis,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLayerInfo(w http.ResponseWriter, r *http.Request) {
	layerID := r.PathValue("layer_id")
	if !layers.Exists(layerID) {
		writeError(w, http.StatusNotFound, "Layer not found. Use /layers to list available layers.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"layer_id":    layerID,
		"name":        layers.Get(layerID).Name,
		"explanation": groq.LayerExplanation(layerID),
	})
}
