package gateway

import (
	"errors"
	"net/http"

	"github.com/lankasat/lankasat-live/internal/relief"
)

func (s *Server) handleReliefDirectory(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"

	dir, err := s.deps.Relief.Directory(refresh)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Relief directory unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dir)
}

func (s *Server) handleReliefCategory(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Relief.ByCategory(r.PathValue("category"))
	switch {
	case errors.Is(err, relief.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Relief directory unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReliefSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	result, err := s.deps.Relief.Search(query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Relief directory unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
