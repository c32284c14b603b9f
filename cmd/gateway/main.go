package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lankasat/lankasat-live/internal/adapter/floodapi"
	"github.com/lankasat/lankasat-live/internal/adapter/groq"
	kafkaadapter "github.com/lankasat/lankasat-live/internal/adapter/kafka"
	"github.com/lankasat/lankasat-live/internal/adapter/openweather"
	"github.com/lankasat/lankasat-live/internal/adapter/sentinel"
	"github.com/lankasat/lankasat-live/internal/adapter/supabase"
	"github.com/lankasat/lankasat-live/internal/auth"
	"github.com/lankasat/lankasat-live/internal/config"
	"github.com/lankasat/lankasat-live/internal/gateway"
	"github.com/lankasat/lankasat-live/internal/observability"
	"github.com/lankasat/lankasat-live/internal/relief"
	"github.com/lankasat/lankasat-live/internal/shelters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	bbox := sentinel.BBox{
		West:  cfg.RegionWest,
		South: cfg.RegionSouth,
		East:  cfg.RegionEast,
		North: cfg.RegionNorth,
	}

	sentinelClient := sentinel.NewClient(cfg, metrics, logger)
	weatherClient := openweather.NewClient(cfg, metrics, logger)
	floodClient := floodapi.NewClient(cfg, metrics, logger)

	if cfg.OpenWeatherKey == "" {
		logger.Info("openweathermap disabled, weather routes return 503")
	}

	groqClient := groq.NewClient(cfg, metrics, logger)
	assistant := groq.NewAssistant(groqClient, sentinelClient, weatherClient, floodClient, bbox, logger)

	db := supabase.NewClient(cfg)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	authService := auth.NewService(db, tokens, metrics, logger)
	shelterService := shelters.NewService(db, logger)
	reliefService := relief.NewService(cfg.ReliefCSVPath, cfg.ReliefCacheTTL, logger)

	// Alert publishing is feature-flagged via KAFKA_BROKERS / ALERTS_ENABLED.
	var alerts *kafkaadapter.AlertPublisher
	if cfg.AlertsEnabled {
		alerts = kafkaadapter.NewAlertPublisher(cfg, metrics, logger)
		metrics.AlertsEnabled.Set(1)
		logger.Info("flood alert publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertsTopic)
	} else {
		logger.Info("flood alert publishing disabled")
	}

	srv := gateway.NewServer(cfg, gateway.Deps{
		Sentinel:  sentinelClient,
		Weather:   weatherClient,
		Flood:     floodClient,
		Assistant: assistant,
		Auth:      authService,
		Shelters:  shelterService,
		Relief:    reliefService,
		Alerts:    alerts,
	}, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if alerts != nil {
		if err := alerts.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
