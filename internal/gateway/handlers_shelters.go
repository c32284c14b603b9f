package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/lankasat/lankasat-live/internal/auth"
	"github.com/lankasat/lankasat-live/internal/shelters"
)

func (s *Server) handleListShelters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	if status != "" && status != shelters.StatusActive && status != shelters.StatusInactive && status != shelters.StatusFull {
		writeError(w, http.StatusBadRequest, "Invalid status filter: use active, inactive, or full")
		return
	}
	limit := intParam(q.Get("limit"), 100)
	offset := intParam(q.Get("offset"), 0)

	list, err := s.deps.Shelters.All(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Shelter lookup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateShelter(w http.ResponseWriter, r *http.Request) {
	claims := s.requireUser(w, r)
	if claims == nil {
		return
	}

	var in shelters.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shelter, err := s.deps.Shelters.Create(r.Context(), in, claims.Subject, claims.Role == auth.RoleGuest)
	switch {
	case errors.Is(err, shelters.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "Shelter create failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, shelter)
}

func (s *Server) handleSheltersMap(w http.ResponseWriter, r *http.Request) {
	markers, err := s.deps.Shelters.ForMap(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Shelter lookup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markers": markers,
		"count":   len(markers),
	})
}

func (s *Server) handleShelterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Shelters.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Shelter lookup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSheltersNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}
	radiusKm := floatParam(q.Get("radius_km"), 10)
	limit := intParam(q.Get("limit"), 20)

	results, err := s.deps.Shelters.Nearby(r.Context(), lat, lon, radiusKm, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Shelter lookup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shelters":  results,
		"count":     len(results),
		"radius_km": radiusKm,
	})
}

func (s *Server) handleGetShelter(w http.ResponseWriter, r *http.Request) {
	shelter, err := s.deps.Shelters.ByID(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, shelters.ErrNotFound):
		writeError(w, http.StatusNotFound, "Shelter not found")
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "Shelter lookup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, shelter)
}

func (s *Server) handleUpdateShelter(w http.ResponseWriter, r *http.Request) {
	claims := s.requireUser(w, r)
	if claims == nil {
		return
	}

	var in shelters.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shelter, err := s.deps.Shelters.Update(r.Context(), r.PathValue("id"), in, claims.Subject)
	if !s.writeShelterError(w, err) {
		writeJSON(w, http.StatusOK, shelter)
	}
}

func (s *Server) handleDeleteShelter(w http.ResponseWriter, r *http.Request) {
	claims := s.requireUser(w, r)
	if claims == nil {
		return
	}

	err := s.deps.Shelters.Delete(r.Context(), r.PathValue("id"), claims.Subject)
	if !s.writeShelterError(w, err) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Shelter deleted"})
	}
}

// writeShelterError maps service errors onto status codes, reporting whether
// a response was written.
func (s *Server) writeShelterError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, shelters.ErrNotFound):
		writeError(w, http.StatusNotFound, "Shelter not found")
	case errors.Is(err, shelters.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "You can only modify shelters you added")
	case errors.Is(err, shelters.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, "Shelter update failed: "+err.Error())
	}
	return true
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func floatParam(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
