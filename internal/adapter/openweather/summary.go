package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lankasat/lankasat-live/internal/dates"
)

// ErrUnknownLocation is returned for lookups outside the monitored sites.
var ErrUnknownLocation = errors.New("unknown location")

// MonsoonStatus describes which monsoon season the given date falls in.
type MonsoonStatus struct {
	Season             string   `json:"season"`
	Active             bool     `json:"active"`
	AffectedRegions    []string `json:"affected_regions"`
	ExpectedConditions string   `json:"expected_conditions"`
	FloodProneAreas    []string `json:"flood_prone_areas"`
}

// Alert is a rainfall-derived advisory attached to the island summary.
type Alert struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// FloodRisk aggregates rainfall observations into an overall risk level.
type FloodRisk struct {
	OverallRisk          string  `json:"overall_risk"` // LOW | ELEVATED | MODERATE | HIGH
	LocationsWithRain    int     `json:"locations_with_rain"`
	MaxRainfallMMPerHour float64 `json:"max_rainfall_mm_per_hour"`
	MaxRainfallLocation  string  `json:"max_rainfall_location,omitempty"`
	Estimated24hTotalMM  float64 `json:"estimated_24h_total_mm"`
}

// LocationWeather pairs a monitored location with its current conditions.
type LocationWeather struct {
	Location
	Current Current `json:"current"`
}

// Summary is the island-wide weather picture across all monitored locations.
type Summary struct {
	Timestamp     time.Time                  `json:"timestamp"`
	Locations     map[string]LocationWeather `json:"locations"`
	Alerts        []Alert                    `json:"alerts"`
	MonsoonStatus MonsoonStatus              `json:"monsoon_status"`
	FloodRisk     FloodRisk                  `json:"flood_risk_assessment"`
}

const summaryCacheKey = "island_summary"

// IslandSummary fetches current conditions for every monitored location and
// derives an island-wide flood risk assessment. Locations whose fetch fails
// are omitted rather than failing the whole summary.
func (c *Client) IslandSummary(ctx context.Context) (Summary, error) {
	if raw, ok := c.cache.Get(summaryCacheKey); ok {
		var cached Summary
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	summary := Summary{
		Timestamp:     dates.Today(),
		Locations:     make(map[string]LocationWeather, len(Locations)),
		MonsoonStatus: CurrentMonsoon(),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, loc := range Locations {
		wg.Add(1)
		go func(loc Location) {
			defer wg.Done()
			cur, err := c.CurrentWeather(ctx, loc.Lat, loc.Lon)
			if err != nil {
				c.logger.Warn("weather fetch failed", "location", loc.ID, "error", err)
				return
			}
			mu.Lock()
			summary.Locations[loc.ID] = LocationWeather{Location: loc, Current: cur}
			mu.Unlock()
		}(loc)
	}
	wg.Wait()

	if len(summary.Locations) == 0 {
		return Summary{}, fmt.Errorf("no weather data available for any location")
	}

	summary.FloodRisk, summary.Alerts = assessFloodRisk(summary.Locations)

	if raw, err := json.Marshal(summary); err == nil {
		c.cache.Set(summaryCacheKey, raw)
	}
	return summary, nil
}

// assessFloodRisk derives the overall risk level from per-location rainfall.
// Hourly rates are extrapolated to a rough 24h total.
func assessFloodRisk(locations map[string]LocationWeather) (FloodRisk, []Alert) {
	risk := FloodRisk{OverallRisk: "LOW"}
	var total float64

	for _, lw := range locations {
		if lw.Current.Rain1h <= 0 {
			continue
		}
		risk.LocationsWithRain++
		total += lw.Current.Rain1h * 24
		if lw.Current.Rain1h > risk.MaxRainfallMMPerHour {
			risk.MaxRainfallMMPerHour = lw.Current.Rain1h
			risk.MaxRainfallLocation = lw.Name
		}
	}
	risk.Estimated24hTotalMM = float64(int(total*10+0.5)) / 10

	var alerts []Alert
	switch {
	case total > 100 || risk.MaxRainfallMMPerHour > 20:
		risk.OverallRisk = "HIGH"
		alerts = append(alerts, Alert{
			Type:     "FLOOD_WARNING",
			Message:  fmt.Sprintf("Heavy rainfall detected. %s recording %gmm/h", risk.MaxRainfallLocation, risk.MaxRainfallMMPerHour),
			Severity: "high",
		})
	case total > 50 || risk.MaxRainfallMMPerHour > 10:
		risk.OverallRisk = "MODERATE"
		alerts = append(alerts, Alert{
			Type:     "FLOOD_WATCH",
			Message:  "Moderate rainfall across Sri Lanka. Monitor flood-prone areas.",
			Severity: "moderate",
		})
	case risk.LocationsWithRain >= 5:
		risk.OverallRisk = "ELEVATED"
		alerts = append(alerts, Alert{
			Type:     "RAIN_ADVISORY",
			Message:  "Widespread rainfall detected across multiple regions.",
			Severity: "low",
		})
	}
	return risk, alerts
}

// CurrentMonsoon returns the monsoon season covering today's date.
func CurrentMonsoon() MonsoonStatus {
	return MonsoonForDate(dates.Today())
}

// MonsoonForDate classifies a date against Sri Lanka's monsoon calendar:
// Southwest (Yala) May-September, Northeast (Maha) October-January, with
// inter-monsoon transitions between.
func MonsoonForDate(t time.Time) MonsoonStatus {
	switch m := t.Month(); {
	case m >= time.May && m <= time.September:
		return MonsoonStatus{
			Season:             "Southwest Monsoon (Yala)",
			Active:             true,
			AffectedRegions:    []string{"Western Province", "Southern Province", "Sabaragamuwa Province", "Central Province (western slopes)"},
			ExpectedConditions: "Heavy rainfall in southwestern Sri Lanka, drier conditions in north and east",
			FloodProneAreas:    []string{"Colombo", "Galle", "Ratnapura", "Kalutara"},
		}
	case m >= time.October || m == time.January:
		return MonsoonStatus{
			Season:             "Northeast Monsoon (Maha)",
			Active:             true,
			AffectedRegions:    []string{"Northern Province", "Eastern Province", "North Central Province", "Uva Province"},
			ExpectedConditions: "Heavy rainfall in northern and eastern Sri Lanka",
			FloodProneAreas:    []string{"Batticaloa", "Trincomalee", "Jaffna", "Anuradhapura"},
		}
	case m >= time.February && m <= time.April:
		return MonsoonStatus{
			Season:             "First Inter-monsoon",
			Active:             false,
			AffectedRegions:    []string{"Entire island"},
			ExpectedConditions: "Transitional period with scattered thunderstorms, particularly in afternoons",
			FloodProneAreas:    []string{"Central highlands", "Wet zone lowlands"},
		}
	default:
		return MonsoonStatus{
			Season:             "Second Inter-monsoon",
			Active:             false,
			AffectedRegions:    []string{"Entire island"},
			ExpectedConditions: "Transitional period with afternoon thunderstorms",
			FloodProneAreas:    []string{"All provinces susceptible to flash floods"},
		}
	}
}

// LocationWeatherByName resolves a location by id, name, or region substring
// and returns its current conditions.
func (c *Client) LocationWeatherByName(ctx context.Context, name string) (LocationWeather, error) {
	q := strings.ToLower(name)

	if loc, ok := LocationByID(q); ok {
		return c.locationWeather(ctx, loc)
	}
	for _, loc := range Locations {
		if strings.Contains(strings.ToLower(loc.Name), q) || strings.Contains(strings.ToLower(loc.Region), q) {
			return c.locationWeather(ctx, loc)
		}
	}
	return LocationWeather{}, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
}

func (c *Client) locationWeather(ctx context.Context, loc Location) (LocationWeather, error) {
	cur, err := c.CurrentWeather(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return LocationWeather{}, err
	}
	return LocationWeather{Location: loc, Current: cur}, nil
}

// ChatContext renders the island summary as a text block for the assistant
// prompt. Returns an empty string when no weather data is available.
func (c *Client) ChatContext(ctx context.Context) string {
	summary, err := c.IslandSummary(ctx)
	if err != nil {
		return ""
	}
	return FormatChatContext(summary)
}

// FormatChatContext renders a summary in the prompt-context layout.
func FormatChatContext(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== CURRENT WEATHER CONDITIONS IN SRI LANKA ===\n")
	fmt.Fprintf(&b, "Report Time: %s\n\n", s.Timestamp.Format(time.RFC3339))

	active := "No (Inter-monsoon)"
	if s.MonsoonStatus.Active {
		active = "Yes"
	}
	fmt.Fprintf(&b, "MONSOON STATUS: %s\n", s.MonsoonStatus.Season)
	fmt.Fprintf(&b, "Active: %s\n", active)
	regions := s.MonsoonStatus.AffectedRegions
	if len(regions) > 3 {
		regions = regions[:3]
	}
	fmt.Fprintf(&b, "Affected Regions: %s\n\n", strings.Join(regions, ", "))

	fmt.Fprintf(&b, "FLOOD RISK ASSESSMENT:\n")
	fmt.Fprintf(&b, "Overall Risk Level: %s\n", s.FloodRisk.OverallRisk)
	fmt.Fprintf(&b, "Locations with Active Rain: %d/%d\n", s.FloodRisk.LocationsWithRain, len(Locations))
	if s.FloodRisk.MaxRainfallLocation != "" {
		fmt.Fprintf(&b, "Highest Rainfall: %gmm/h at %s\n", s.FloodRisk.MaxRainfallMMPerHour, s.FloodRisk.MaxRainfallLocation)
	}

	fmt.Fprintf(&b, "\nCURRENT CONDITIONS BY LOCATION:\n")
	ids := make([]string, 0, len(s.Locations))
	for id := range s.Locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		lw := s.Locations[id]
		rain := ""
		if lw.Current.Rain1h > 0 {
			rain = fmt.Sprintf(" | Rain: %gmm/h", lw.Current.Rain1h)
		}
		fmt.Fprintf(&b, "- %s: %.1f°C, %d%% humidity, %s%s\n",
			lw.Name, lw.Current.Temperature, lw.Current.Humidity, lw.Current.Description, rain)
	}

	if len(s.Alerts) > 0 {
		fmt.Fprintf(&b, "\nWEATHER ALERTS:\n")
		for _, a := range s.Alerts {
			fmt.Fprintf(&b, "  [%s] %s\n", strings.ToUpper(a.Severity), a.Message)
		}
	}
	return b.String()
}
