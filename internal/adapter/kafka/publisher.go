// Package kafka publishes flood alert events to a Kafka topic so downstream
// relief coordination systems can react to river conditions.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/floodapi"
	"github.com/lankasat/lankasat-live/internal/config"
	"github.com/lankasat/lankasat-live/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// FloodAlert is the event published when a station crosses a flood
// threshold.
type FloodAlert struct {
	StationName string   `json:"station_name"`
	RiverName   string   `json:"river_name"`
	AlertStatus string   `json:"alert_status"`
	WaterLevel  *float64 `json:"water_level,omitempty"`
	Trend       string   `json:"trend,omitempty"`
	OverallRisk string   `json:"overall_risk"`
	ObservedAt  string   `json:"observed_at"`
	PublishedAt string   `json:"published_at"`
}

// AlertPublisher produces flood alert messages.
type AlertPublisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewAlertPublisher creates a producer for the configured alerts topic.
func NewAlertPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *AlertPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertPublisher{writer: w, metrics: metrics, logger: logger}
}

// PublishFromSummary emits one alert per critical or high-risk station in
// the flood summary, in a single WriteMessages call.
func (p *AlertPublisher) PublishFromSummary(ctx context.Context, summary floodapi.Summary) error {
	alerts := alertsFromSummary(summary)
	if len(alerts) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish flood alerts: %w", err)
	}
	p.metrics.AlertsPublished.Add(float64(len(alerts)))
	p.logger.Info("published flood alerts", "count", len(alerts), "risk", summary.OverallRisk)
	return nil
}

func (p *AlertPublisher) Close() error {
	return p.writer.Close()
}

// alertsFromSummary flattens critical and high-risk stations into alert
// events.
func alertsFromSummary(summary floodapi.Summary) []FloodAlert {
	now := time.Now().UTC().Format(time.RFC3339)
	observed := summary.Timestamp.Format(time.RFC3339)

	var alerts []FloodAlert
	add := func(stations []floodapi.StationBrief, status string) {
		for _, st := range stations {
			alerts = append(alerts, FloodAlert{
				StationName: st.Name,
				RiverName:   st.River,
				AlertStatus: status,
				WaterLevel:  st.WaterLevel,
				Trend:       st.Trend,
				OverallRisk: summary.OverallRisk,
				ObservedAt:  observed,
				PublishedAt: now,
			})
		}
	}
	add(summary.CriticalStations, floodapi.LevelMajor)
	add(summary.HighRiskStations, floodapi.LevelMinor)
	return alerts
}

// serializeToMessage marshals a FloodAlert into a Kafka message keyed by
// station name.
func serializeToMessage(alert FloodAlert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize flood alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.StationName),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_status", Value: []byte(alert.AlertStatus)},
			{Key: "published_at", Value: []byte(alert.PublishedAt)},
		},
	}, nil
}
