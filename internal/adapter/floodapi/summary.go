package floodapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lankasat/lankasat-live/internal/dates"
)

// StationBrief is the condensed station view used in the summary.
type StationBrief struct {
	Name       string   `json:"name"`
	River      string   `json:"river"`
	WaterLevel *float64 `json:"water_level,omitempty"`
	FloodScore *float64 `json:"flood_score,omitempty"`
	Trend      string   `json:"trend,omitempty"`
	Status     string   `json:"status,omitempty"`
	Remarks    string   `json:"remarks,omitempty"`
}

// Summary is the aggregated island-wide flood picture.
type Summary struct {
	Timestamp        time.Time             `json:"timestamp"`
	OverallRisk      string                `json:"overall_risk"` // NORMAL | ELEVATED | HIGH | CRITICAL
	TotalStations    int                   `json:"total_stations"`
	AlertSummary     map[string]AlertGroup `json:"alert_summary"`
	CriticalStations []StationBrief        `json:"critical_stations"`
	HighRiskStations []StationBrief        `json:"high_risk_stations"`
	RisingStations   []StationBrief        `json:"rising_stations"`
	RisingCount      int                   `json:"rising_count"`
	DataSource       string                `json:"data_source"`
}

const floodSummaryCacheKey = "flood_summary"

// FloodSummary combines the latest readings and alert counts into one
// risk assessment.
func (c *Client) FloodSummary(ctx context.Context) (Summary, error) {
	if raw, ok := c.cache.Get(floodSummaryCacheKey); ok {
		var cached Summary
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	levels, err := c.LatestLevels(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("flood summary: %w", err)
	}
	groups, err := c.AlertSummary(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("flood summary: %w", err)
	}

	summary := buildSummary(levels, groups)

	if raw, err := json.Marshal(summary); err == nil {
		c.cache.SetTTL(floodSummaryCacheKey, raw, 5*time.Minute)
	}
	return summary, nil
}

func buildSummary(levels []Reading, groups []AlertGroup) Summary {
	summary := Summary{
		Timestamp:     dates.Today(),
		TotalStations: len(levels),
		AlertSummary:  make(map[string]AlertGroup, len(groups)),
		DataSource:    "Sri Lanka Disaster Management Center (DMC)",
	}
	for _, g := range groups {
		summary.AlertSummary[g.AlertLevel] = g
	}

	for _, r := range levels {
		switch r.AlertStatus {
		case LevelMajor:
			summary.CriticalStations = append(summary.CriticalStations, StationBrief{
				Name:       r.StationName,
				River:      r.RiverName,
				WaterLevel: r.WaterLevel,
				FloodScore: r.FloodScore,
				Trend:      r.RisingOrFalling,
				Remarks:    r.Remarks,
			})
		case LevelMinor:
			summary.HighRiskStations = append(summary.HighRiskStations, StationBrief{
				Name:       r.StationName,
				River:      r.RiverName,
				WaterLevel: r.WaterLevel,
				Trend:      r.RisingOrFalling,
			})
		}
		if r.RisingOrFalling == "Rising" {
			summary.RisingStations = append(summary.RisingStations, StationBrief{
				Name:   r.StationName,
				River:  r.RiverName,
				Status: r.AlertStatus,
			})
		}
	}
	summary.RisingCount = len(summary.RisingStations)

	switch {
	case summary.AlertSummary[LevelMajor].Count > 0:
		summary.OverallRisk = "CRITICAL"
	case summary.AlertSummary[LevelMinor].Count > 0:
		summary.OverallRisk = "HIGH"
	case summary.AlertSummary[LevelAlert].Count > 0:
		summary.OverallRisk = "ELEVATED"
	default:
		summary.OverallRisk = "NORMAL"
	}
	return summary
}

// ChatContext renders the flood summary as a text block for the assistant
// prompt. Returns an empty string when flood data is unavailable.
func (c *Client) ChatContext(ctx context.Context) string {
	summary, err := c.FloodSummary(ctx)
	if err != nil {
		return ""
	}
	return FormatChatContext(summary)
}

// FormatChatContext renders a summary in the prompt-context layout.
func FormatChatContext(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== LIVE RIVER WATER LEVEL DATA (Sri Lanka DMC) ===\n")
	fmt.Fprintf(&b, "Report Time: %s\n", s.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Data Source: %s\n\n", s.DataSource)
	fmt.Fprintf(&b, "OVERALL FLOOD RISK: %s\n", s.OverallRisk)
	fmt.Fprintf(&b, "Total Monitoring Stations: %d\n\n", s.TotalStations)

	fmt.Fprintf(&b, "STATION STATUS BREAKDOWN:\n")
	for _, level := range []struct{ key, label string }{
		{LevelMajor, "MAJOR FLOOD"},
		{LevelMinor, "MINOR FLOOD"},
		{LevelAlert, "ALERT LEVEL"},
		{LevelNormal, "NORMAL"},
	} {
		if g, ok := s.AlertSummary[level.key]; ok {
			fmt.Fprintf(&b, "  - %s: %d stations\n", level.label, g.Count)
		}
	}

	writeStations := func(header string, stations []StationBrief) {
		if len(stations) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", header)
		if len(stations) > 5 {
			stations = stations[:5]
		}
		for _, st := range stations {
			level := "N/A"
			if st.WaterLevel != nil {
				level = fmt.Sprintf("%.2fm", *st.WaterLevel)
			}
			trend := ""
			if st.Trend != "" {
				trend = fmt.Sprintf(" (%s)", st.Trend)
			}
			fmt.Fprintf(&b, "  - %s on %s: %s%s\n", st.Name, st.River, level, trend)
		}
	}
	writeStations("CRITICAL STATIONS (MAJOR FLOOD)", s.CriticalStations)
	writeStations("HIGH RISK STATIONS (MINOR FLOOD)", s.HighRiskStations)

	if s.RisingCount > 0 {
		fmt.Fprintf(&b, "\nWARNING: %d stations showing RISING water levels\n", s.RisingCount)
	}

	fmt.Fprintf(&b, "\nUse this data to correlate satellite imagery observations with actual flood conditions.\n")
	return b.String()
}
