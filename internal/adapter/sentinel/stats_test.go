package sentinel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intervalWith(ndwi, ndvi, turbid float64) statisticsInterval {
	band := func(mean float64) statisticsOutput {
		var b statisticsBand
		b.Stats.Mean = mean
		return statisticsOutput{Bands: map[string]statisticsBand{"B0": b}}
	}
	iv := statisticsInterval{
		Outputs: map[string]statisticsOutput{
			"ndwi":   band(ndwi),
			"ndvi":   band(ndvi),
			"turbid": band(turbid),
		},
	}
	iv.Interval.From = "2024-06-10T00:00:00Z"
	iv.Interval.To = "2024-06-15T00:00:00Z"
	return iv
}

func TestParseStatistics_Severity(t *testing.T) {
	cases := []struct {
		name     string
		ndwi     float64
		severity string
	}{
		{"dry", 0.01, "none"},
		{"minor", 0.08, "minor"},
		{"moderate", 0.2, "moderate"},
		{"severe", 0.4, "severe"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := statisticsResponse{Data: []statisticsInterval{intervalWith(tc.ndwi, 0.5, 1.0)}}
			stats := parseStatistics(resp, "2024-06-15")
			assert.Equal(t, "success", stats.Status)
			assert.Equal(t, tc.severity, stats.FloodSeverity)
			assert.Equal(t, "2024-06-10", stats.Date)
		})
	}
}

func TestParseStatistics_WaterCondition(t *testing.T) {
	resp := statisticsResponse{Data: []statisticsInterval{intervalWith(0.2, 0.1, 1.6)}}
	stats := parseStatistics(resp, "2024-06-15")

	assert.Equal(t, "very_muddy", stats.WaterCondition)
	assert.Contains(t, stats.Interpretation, "sediment-laden")
	assert.Contains(t, stats.Interpretation, "Low vegetation index")
}

func TestParseStatistics_UsesLatestInterval(t *testing.T) {
	older := intervalWith(0.4, 0.5, 1.0)
	older.Interval.From = "2024-06-01T00:00:00Z"
	latest := intervalWith(0.01, 0.5, 1.0)

	resp := statisticsResponse{Data: []statisticsInterval{older, latest}}
	stats := parseStatistics(resp, "2024-06-15")

	assert.Equal(t, "none", stats.FloodSeverity)
	assert.Equal(t, "2024-06-10", stats.Date)
}

func TestParseStatistics_EmptyFallsBackToContextual(t *testing.T) {
	stats := parseStatistics(statisticsResponse{}, "2024-12-15")

	assert.Equal(t, "contextual", stats.Status)
	assert.Equal(t, "Northeast Monsoon (active)", stats.MonsoonSeason)
	assert.Equal(t, "HIGH", stats.FloodRisk)
}

func TestContextualAnalysis_Seasons(t *testing.T) {
	cases := []struct {
		date    string
		monsoon string
		risk    string
	}{
		{"2024-12-01", "Northeast Monsoon (active)", "HIGH"},
		{"2024-06-01", "Southwest Monsoon (active)", "HIGH"},
		{"2024-04-01", "Inter-monsoon period", "MODERATE"},
		{"2024-02-01", "Dry season", "LOW"},
	}

	for _, tc := range cases {
		t.Run(tc.date, func(t *testing.T) {
			stats := contextualAnalysis(tc.date)
			assert.Equal(t, tc.monsoon, stats.MonsoonSeason)
			assert.Equal(t, tc.risk, stats.FloodRisk)
			assert.NotEmpty(t, stats.Interpretation)
		})
	}
}

func TestContextualAnalysis_BadDate(t *testing.T) {
	stats := contextualAnalysis("garbage")
	assert.Equal(t, "contextual", stats.Status)
	assert.NotEmpty(t, stats.Note)
}
