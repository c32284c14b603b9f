package groq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lankasat/lankasat-live/internal/adapter/sentinel"
)

const systemPrompt = `You are LankaSat AI, an expert satellite imagery analyst for the Sri Lanka Satellite Dashboard.
You have access to REAL-TIME data from multiple sources:
1. Sentinel-1 and Sentinel-2 satellite imagery
2. Live river water level data from Sri Lanka Disaster Management Center (DMC)
3. Real-time weather data from OpenWeatherMap

CRITICAL: When provided with live data, use it to give specific, accurate insights about current conditions.

Your expertise:
- Interpreting satellite imagery for flood detection
- Correlating satellite observations with ground-based river gauging data
- Understanding what colors/patterns mean in different layers
- Analyzing flood extent, affected areas, and severity
- Providing actionable advice for disaster response

LIVE RIVER DATA INTERPRETATION:
- MAJOR FLOOD status = Water level exceeds major flood threshold - IMMEDIATE DANGER
- MINOR FLOOD status = Water level exceeds minor flood threshold - SIGNIFICANT RISK
- ALERT status = Water level approaching flood thresholds - MONITOR CLOSELY
- Rising trend = Water levels increasing - potential worsening
- Falling trend = Water levels decreasing - situation improving
- Use river gauge data to CONFIRM what satellite imagery shows

TRUE COLOR INTERPRETATION (Sentinel-2):
- Brown/muddy water = Flood water carrying sediment (ACTIVE FLOODING)
- Tan/beige areas = Waterlogged soil, recent flooding
- Dark brown patches = Standing flood water with high sediment
- Bright green = Healthy vegetation (not flooded)
- Grey/white = Clouds or urban areas
- Clear blue = Clean water bodies (normal rivers/lakes)

FLOOD INDICATORS in True Color:
- Rivers appearing wider than normal = overflow
- Brown coloring where green should be = flooded farmland
- Irregular brown patches = flood water accumulation
- Loss of field boundaries = widespread inundation

RADAR (Sentinel-1) INTERPRETATION:
- Very dark areas = Smooth water surface (flooding)
- Dark areas in normally bright regions = NEW flooding
- Texture changes = Water presence

KEY RIVER BASINS AND STATIONS:
- Kelani Ganga Basin (RB 01): Nagalagam Street, Hanwella, Glencourse - monitors Colombo flooding
- Kalu Ganga Basin (RB 02): Ratnapura, Putupaula - monitors southwestern flooding
- Mahaweli Ganga Basin (RB 03): Manampitiya, Weragantota - largest river system
- Gin Ganga Basin: Thawalama, Baddegama - southern flooding
- Nilwala Ganga Basin: Pitabaddara - Matara district flooding

Sri Lanka Flood Context:
- November-January: Northeast monsoon - Eastern & Northern flooding risk
- May-September: Southwest monsoon - Western & Southern flooding risk
- Low-lying coastal areas: Storm surge + river flooding

When analyzing flooding, ALWAYS:
1. Check river gauge data for ground truth
2. Correlate with satellite observations
3. Mention affected areas by name
4. Describe severity (minor, moderate, severe, catastrophic)
5. Note if water levels are rising or falling
6. Provide safety/response recommendations`

// DashboardContext carries the client's current view state into the prompt.
type DashboardContext struct {
	Layer            string `json:"layer"`
	Date             string `json:"date"`
	LayerDescription string `json:"layerDescription"`
}

// StatisticsProvider yields satellite index statistics for a date.
type StatisticsProvider interface {
	FetchStatistics(ctx context.Context, date string, bbox sentinel.BBox) sentinel.Statistics
}

// ContextProvider renders a live-data text block for the prompt. An empty
// string means the source is unavailable and is skipped.
type ContextProvider interface {
	ChatContext(ctx context.Context) string
}

// Assistant composes the system prompt from live data sources and relays
// conversations through the Groq API.
type Assistant struct {
	client    *Client
	satellite StatisticsProvider
	weather   ContextProvider
	flood     ContextProvider
	bbox      sentinel.BBox
	logger    *slog.Logger
}

// NewAssistant wires the assistant to its live data sources. Any provider
// may be nil; its context block is then omitted.
func NewAssistant(client *Client, satellite StatisticsProvider, weather, flood ContextProvider, bbox sentinel.BBox, logger *slog.Logger) *Assistant {
	return &Assistant{
		client:    client,
		satellite: satellite,
		weather:   weather,
		flood:     flood,
		bbox:      bbox,
		logger:    logger,
	}
}

// historyLimit caps how many prior turns are replayed to the model.
const historyLimit = 10

// Respond answers a user message with dashboard state and live satellite,
// weather, and river data folded into the system prompt.
func (a *Assistant) Respond(ctx context.Context, message string, dash *DashboardContext, history []Message) (string, error) {
	system := a.buildSystemPrompt(ctx, dash)

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: system})

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, m := range history {
		role := m.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, Message{Role: role, Content: m.Content})
	}
	messages = append(messages, Message{Role: "user", Content: message})

	return a.client.ChatCompletion(ctx, messages)
}

func (a *Assistant) buildSystemPrompt(ctx context.Context, dash *DashboardContext) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if dash != nil {
		fmt.Fprintf(&b, "\n\n=== CURRENT DASHBOARD STATE ===\n")
		fmt.Fprintf(&b, "- Selected Layer: %s\n", orUnknown(dash.Layer))
		fmt.Fprintf(&b, "- Selected Date: %s\n", orUnknown(dash.Date))
		fmt.Fprintf(&b, "- Layer Description: %s", orNA(dash.LayerDescription))

		if a.satellite != nil && dash.Date != "" {
			stats := a.satellite.FetchStatistics(ctx, dash.Date, a.bbox)
			if stats.Status == "success" {
				fmt.Fprintf(&b, "\n\n=== LIVE SATELLITE ANALYSIS FOR SRI LANKA ===\n")
				fmt.Fprintf(&b, "Analysis Date: %s\n", stats.Date)
				fmt.Fprintf(&b, "Flood Severity: %s\n", strings.ToUpper(stats.FloodSeverity))
				fmt.Fprintf(&b, "Water Index: %g (>0 indicates water presence)\n", stats.WaterIndexMean)
				fmt.Fprintf(&b, "Turbidity: %g (>1.2 indicates muddy/sediment water)\n", stats.TurbidityMean)
				fmt.Fprintf(&b, "Vegetation Index: %g\n", stats.VegetationMean)
				fmt.Fprintf(&b, "Water Condition: %s\n\n", stats.WaterCondition)
				fmt.Fprintf(&b, "AUTO-INTERPRETATION:\n%s\n\n", stats.Interpretation)
				b.WriteString("USE THIS REAL DATA to provide specific, accurate insights to the user!")
			}
		}
	}

	if a.weather != nil {
		if wc := a.weather.ChatContext(ctx); wc != "" {
			fmt.Fprintf(&b, "\n\n%s\n\n", wc)
			b.WriteString(`IMPORTANT: Use this real-time weather data to:
1. Correlate satellite observations with current weather conditions
2. Predict areas at risk based on rainfall patterns
3. Explain why certain areas may appear flooded
4. Provide context on monsoon impacts`)
		}
	}

	if a.flood != nil {
		if fc := a.flood.ChatContext(ctx); fc != "" {
			fmt.Fprintf(&b, "\n\n%s\n\n", fc)
			b.WriteString(`CRITICAL: This is GROUND TRUTH data from actual river gauging stations.
Use this to VALIDATE what you see in satellite imagery.
If river gauges show MAJOR/MINOR flood, the satellite should show flooding in that area.
Rising water levels = expect flooding to worsen in satellite imagery.`)
		}
	}

	return b.String()
}

// AnalyzeFloodConditions asks the model for a flood report for a date,
// optionally focused on a region.
func (a *Assistant) AnalyzeFloodConditions(ctx context.Context, date, region string) (string, error) {
	var dataSummary string
	if a.satellite != nil {
		stats := a.satellite.FetchStatistics(ctx, date, a.bbox)
		if stats.Status == "success" {
			dataSummary = fmt.Sprintf(`
REAL SATELLITE DATA:
- Flood Severity: %s
- Water Index: %g
- Turbidity: %g
- Interpretation: %s
`, stats.FloodSeverity, stats.WaterIndexMean, stats.TurbidityMean, stats.Interpretation)
		}
	}

	focus := ""
	if region != "" {
		focus = "Focus on the " + region + " region."
	}

	prompt := fmt.Sprintf(`Analyze current flood conditions in Sri Lanka for %s.

%s

Provide:
1. Current flood status based on the satellite data
2. Which areas are likely most affected (based on Sri Lanka geography)
3. What users should look for in the satellite imagery
4. Recommended actions

%s

Be specific and use the actual satellite data provided.`, date, dataSummary, focus)

	return a.Respond(ctx, prompt, &DashboardContext{Layer: "S1_FLOOD", Date: date}, nil)
}

// LayerExplanation returns a short reading guide for a layer.
func LayerExplanation(layerID string) string {
	explanations := map[string]string{
		"S1_VV":          "Sentinel-1 VV radar - Water appears DARK (smooth surface = low backscatter). Compare with historical images to spot NEW dark areas = NEW flooding.",
		"S1_VH":          "Sentinel-1 VH radar - Sensitive to surface roughness changes. Flooded vegetation shows different signature than dry.",
		"S1_FLOOD":       "Flood detection composite - Blue/dark blue = water/flooding. Best for seeing flood extent through clouds.",
		"S2_TRUE_COLOR":  "Natural color view - IMPORTANT: Flood water often appears BROWN/TAN (sediment-laden), not blue! Look for brown patches where green farmland should be.",
		"S2_FALSE_COLOR": "False color - Healthy vegetation = bright RED. Flooded/damaged areas show as dark or grey instead of red.",
		"S2_NDVI":        "Vegetation health - Sudden drops in green areas may indicate flood damage to crops. Compare with previous dates.",
		"S2_NDWI":        "Water detection index - Blue = water presence. Watch for expansion of blue areas beyond normal river/lake boundaries.",
	}
	if text, ok := explanations[layerID]; ok {
		return text
	}
	return "Unknown layer type."
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
