// Package gateway is the HTTP API surface of the dashboard backend: it
// proxies the satellite, weather, flood, chat, and datastore providers and
// serves the relief directory.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/floodapi"
	"github.com/lankasat/lankasat-live/internal/adapter/groq"
	"github.com/lankasat/lankasat-live/internal/adapter/kafka"
	"github.com/lankasat/lankasat-live/internal/adapter/openweather"
	"github.com/lankasat/lankasat-live/internal/adapter/sentinel"
	"github.com/lankasat/lankasat-live/internal/auth"
	"github.com/lankasat/lankasat-live/internal/config"
	"github.com/lankasat/lankasat-live/internal/observability"
	"github.com/lankasat/lankasat-live/internal/relief"
	"github.com/lankasat/lankasat-live/internal/shelters"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the gateway routes to. Alerts may be nil when
// publishing is disabled.
type Deps struct {
	Sentinel  *sentinel.Client
	Weather   *openweather.Client
	Flood     *floodapi.Client
	Assistant *groq.Assistant
	Auth      *auth.Service
	Shelters  *shelters.Service
	Relief    *relief.Service
	Alerts    *kafka.AlertPublisher
}

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	deps       Deps
	metrics    *observability.Metrics
	logger     *slog.Logger
	limiter    *rateLimiter
}

// NewServer wires all routes and middleware.
func NewServer(cfg *config.Config, deps Deps, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		metrics: metrics,
		logger:  logger,
		limiter: newRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, metrics),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /layers", s.handleLayers)
	mux.HandleFunc("GET /token", s.handleToken)
	mux.HandleFunc("GET /tile", s.handleTile)
	mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /cache/clear", s.handleCacheClear)
	mux.HandleFunc("GET /satellite/stats", s.handleSatelliteStats)

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /chat/analyze-floods", s.handleAnalyzeFloods)
	mux.HandleFunc("GET /chat/layer-info/{layer_id}", s.handleLayerInfo)

	mux.HandleFunc("GET /weather", s.handleWeatherSummary)
	mux.HandleFunc("GET /weather/locations", s.handleWeatherLocations)
	mux.HandleFunc("GET /weather/{location}", s.handleWeatherByLocation)
	mux.HandleFunc("GET /weather/forecast/{location}", s.handleWeatherForecast)

	mux.HandleFunc("GET /flood/summary", s.handleFloodSummary)
	mux.HandleFunc("GET /flood/stations", s.handleFloodStations)
	mux.HandleFunc("GET /flood/levels", s.handleFloodLevels)
	mux.HandleFunc("GET /flood/alerts", s.handleFloodAlerts)
	mux.HandleFunc("GET /flood/alerts/summary", s.handleFloodAlertSummary)
	mux.HandleFunc("GET /flood/rivers", s.handleFloodRivers)
	mux.HandleFunc("GET /flood/station/{name}", s.handleFloodStation)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/guest", s.handleGuestLogin)
	mux.HandleFunc("GET /auth/me", s.handleMe)
	mux.HandleFunc("PATCH /auth/profile", s.handleUpdateProfile)

	mux.HandleFunc("GET /shelters", s.handleListShelters)
	mux.HandleFunc("POST /shelters", s.handleCreateShelter)
	mux.HandleFunc("GET /shelters/map", s.handleSheltersMap)
	mux.HandleFunc("GET /shelters/stats", s.handleShelterStats)
	mux.HandleFunc("GET /shelters/nearby", s.handleSheltersNearby)
	mux.HandleFunc("GET /shelters/{id}", s.handleGetShelter)
	mux.HandleFunc("PUT /shelters/{id}", s.handleUpdateShelter)
	mux.HandleFunc("DELETE /shelters/{id}", s.handleDeleteShelter)

	mux.HandleFunc("GET /relief-directory", s.handleReliefDirectory)
	mux.HandleFunc("GET /relief-directory/category/{category}", s.handleReliefCategory)
	mux.HandleFunc("GET /relief-directory/search", s.handleReliefSearch)

	handler := s.withCORS(s.withRateLimit(mux))

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("gateway starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "LankaSat Live API",
		"version": "1.0.0",
		"status":  "operational",
		"endpoints": []string{
			"/layers", "/tile", "/satellite/stats", "/weather", "/flood/summary",
			"/chat", "/auth/register", "/auth/login", "/auth/guest",
			"/shelters", "/relief-directory",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	tileStats, tokenStats := s.deps.Sentinel.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"tile_cache_size":  tileStats.Size,
		"token_cache_size": tokenStats.Size,
	})
}
