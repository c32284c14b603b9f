// Package layers defines the satellite imagery products the dashboard can
// render. Descriptors are compiled into the binary; there are no mutation
// operations.
package layers

// Category groups layers by the kind of imagery they render.
type Category string

const (
	CategoryRadar   Category = "radar"
	CategoryOptical Category = "optical"
	CategoryIndex   Category = "index"
)

// LegendEntry is one swatch in a layer's map legend.
type LegendEntry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Descriptor holds the display metadata and Sentinel Hub processing
// parameters for one layer.
type Descriptor struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    Category      `json:"category"`
	Legend      []LegendEntry `json:"legend,omitempty"`

	// Sentinel Hub Process API parameters.
	Collection       string `json:"type"`
	Evalscript       string `json:"-"`
	MosaickingOrder  string `json:"-"`
	MaxCloudCoverage int    `json:"-"`
}

var registry = []Descriptor{
	{
		ID:          "S1_VV",
		Name:        "Sentinel-1 VV",
		Description: "Radar VV polarization",
		Category:    CategoryRadar,
		Legend: []LegendEntry{
			{Color: "#0a0a0a", Label: "Smooth water surface"},
			{Color: "#808080", Label: "Vegetation and soil"},
			{Color: "#f0f0f0", Label: "Urban and rough terrain"},
		},
		Collection: "sentinel-1-grd",
		Evalscript: `//VERSION=3
function setup() {
    return {
        input: ["VV"],
        output: { bands: 1, sampleType: "AUTO" }
    };
}

function evaluatePixel(sample) {
    return [2 * sample.VV];
}`,
		MosaickingOrder:  "mostRecent",
		MaxCloudCoverage: 100,
	},
	{
		ID:          "S1_VH",
		Name:        "Sentinel-1 VH",
		Description: "Radar VH polarization",
		Category:    CategoryRadar,
		Legend: []LegendEntry{
			{Color: "#0a0a0a", Label: "Smooth water surface"},
			{Color: "#808080", Label: "Vegetation and soil"},
			{Color: "#f0f0f0", Label: "Urban and rough terrain"},
		},
		Collection: "sentinel-1-grd",
		Evalscript: `//VERSION=3
function setup() {
    return {
        input: ["VH"],
        output: { bands: 1, sampleType: "AUTO" }
    };
}

function evaluatePixel(sample) {
    return [2 * sample.VH];
}`,
		MosaickingOrder:  "mostRecent",
		MaxCloudCoverage: 100,
	},
	{
		ID:          "S1_FLOOD",
		Name:        "Sentinel-1 Flood Detection",
		Description: "Enhanced VV+VH for flood visualization",
		Category:    CategoryRadar,
		Legend: []LegendEntry{
			{Color: "#1a33cc", Label: "Detected surface water"},
			{Color: "#664433", Label: "Dry land"},
		},
		Collection: "sentinel-1-grd",
		Evalscript: `//VERSION=3
function setup() {
    return {
        input: ["VV", "VH"],
        output: { bands: 3, sampleType: "AUTO" }
    };
}

function evaluatePixel(sample) {
    let vv = sample.VV;
    let vh = sample.VH;
    let water = (vv < 0.05 && vh < 0.05) ? 1 : 0;
    return [vv * 3, vh * 3, water * 0.8];
}`,
		MosaickingOrder:  "mostRecent",
		MaxCloudCoverage: 100,
	},
	{
		ID:          "S2_TRUE_COLOR",
		Name:        "Sentinel-2 True Color",
		Description: "Natural color RGB",
		Category:    CategoryOptical,
		Legend: []LegendEntry{
			{Color: "#8b5a2b", Label: "Sediment-laden flood water"},
			{Color: "#2e8b57", Label: "Healthy vegetation"},
			{Color: "#4169e1", Label: "Clear water"},
			{Color: "#d9d9d9", Label: "Cloud or urban"},
		},
		Collection: "sentinel-2-l2a",
		Evalscript: `//VERSION=3
function setup() {
    return {
        input: ["B04", "B03", "B02"],
        output: { bands: 3, sampleType: "AUTO" }
    };
}

function evaluatePixel(sample) {
    return [2.5 * sample.B04, 2.5 * sample.B03, 2.5 * sample.B02];
}`,
		MosaickingOrder:  "leastCC",
		MaxCloudCoverage: 30,
	},
	{
		ID:          "S2_FALSE_COLOR",
		Name:        "Sentinel-2 False Color",
		Description: "Vegetation highlighting",
		Category:    CategoryOptical,
		Legend: []LegendEntry{
			{Color: "#ff0000", Label: "Dense vegetation"},
			{Color: "#4d79ff", Label: "Water"},
			{Color: "#cccccc", Label: "Bare soil or urban"},
		},
		Collection: "sentinel-2-l2a",
		Evalscript: `//VERSION=3
function setup() {
    return {
        input: ["B08", "B04", "B03"],
        output: { bands: 3, sampleType: "AUTO" }
    };
}

function evaluatePixel(sample) {
    return [2.5 * sample.B08, 2.5 * sample.B04, 2.5 * sample.B03];
}`,
		MosaickingOrder:  "leastCC",
		MaxCloudCoverage: 30,
	},
	{
		ID:          "S2_NDVI",
		Name:        "Sentinel-2 NDVI",
		Description: "Vegetation index",
		Category:    CategoryIndex,
		Legend: []LegendEntry{
			{Color: "#cc3333", Label: "Water or bare ground (NDVI < 0)"},
			{Color: "#e6cc66", Label: "Sparse vegetation"},
			{Color: "#66cc33", Label: "Moderate vegetation"},
			{Color: "#1a801a", Label: "Dense vegetation"},
		},
		Collection: "sentinel-2-l2a",
		Evalscript: `//VERSION=3
function setup() {
    return {
        input: ["B04", "B08"],
        output: { bands: 3, sampleType: "AUTO" }
    };
}

function evaluatePixel(sample) {
    let ndvi = (sample.B08 - sample.B04) / (sample.B08 + sample.B04);
    if (ndvi < 0) return [0.8, 0.2, 0.2];
    if (ndvi < 0.2) return [0.9, 0.8, 0.4];
    if (ndvi < 0.4) return [0.8, 0.9, 0.4];
    if (ndvi < 0.6) return [0.4, 0.8, 0.2];
    return [0.1, 0.5, 0.1];
}`,
		MosaickingOrder:  "leastCC",
		MaxCloudCoverage: 30,
	},
	{
		ID:          "S2_NDWI",
		Name:        "Sentinel-2 NDWI",
		Description: "Water detection index",
		Category:    CategoryIndex,
		Legend: []LegendEntry{
			{Color: "#1a4de6", Label: "Open water (NDWI > 0.3)"},
			{Color: "#4d80cc", Label: "Shallow or turbid water"},
			{Color: "#8099b3", Label: "Waterlogged ground"},
			{Color: "#998066", Label: "Dry land"},
		},
		Collection: "sentinel-2-l2a",
		Evalscript: `//VERSION=3
function setup() {
    return {
        input: ["B03", "B08"],
        output: { bands: 3, sampleType: "AUTO" }
    };
}

function evaluatePixel(sample) {
    let ndwi = (sample.B03 - sample.B08) / (sample.B03 + sample.B08);
    if (ndwi > 0.3) return [0.1, 0.3, 0.9];
    if (ndwi > 0.1) return [0.3, 0.5, 0.8];
    if (ndwi > 0) return [0.5, 0.6, 0.7];
    return [0.6, 0.5, 0.4];
}`,
		MosaickingOrder:  "leastCC",
		MaxCloudCoverage: 30,
	},
}

var byID = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(registry))
	for _, d := range registry {
		m[d.ID] = d
	}
	return m
}()

// Get returns the descriptor for id. Unknown ids yield a fallback descriptor
// carrying only the id, so the map can still render without a caption.
func Get(id string) Descriptor {
	if d, ok := byID[id]; ok {
		return d
	}
	return Descriptor{ID: id}
}

// Exists reports whether id names a known layer.
func Exists(id string) bool {
	_, ok := byID[id]
	return ok
}

// All returns every descriptor in declaration order, which groups layers
// by category: radar first, then optical, then index.
func All() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// ByCategory returns the descriptors in the given category, in declaration order.
func ByCategory(c Category) []Descriptor {
	var out []Descriptor
	for _, d := range registry {
		if d.Category == c {
			out = append(out, d)
		}
	}
	return out
}
