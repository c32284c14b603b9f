package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_KnownLayer(t *testing.T) {
	d := Get("S2_TRUE_COLOR")
	assert.Equal(t, "Sentinel-2 True Color", d.Name)
	assert.Equal(t, CategoryOptical, d.Category)
	assert.Equal(t, "sentinel-2-l2a", d.Collection)
	assert.Equal(t, "leastCC", d.MosaickingOrder)
	assert.NotEmpty(t, d.Evalscript)
	assert.NotEmpty(t, d.Legend)
}

func TestGet_UnknownLayerReturnsFallback(t *testing.T) {
	d := Get("NOT_A_LAYER")
	assert.Equal(t, "NOT_A_LAYER", d.ID)
	assert.Empty(t, d.Name)
	assert.Empty(t, d.Legend)
}

func TestExists(t *testing.T) {
	assert.True(t, Exists("S1_VV"))
	assert.False(t, Exists("S1_XX"))
}

func TestAll_GroupedByCategory(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)

	// Declaration order keeps categories contiguous.
	seen := map[Category]bool{}
	var last Category
	for _, d := range all {
		if d.Category != last {
			assert.False(t, seen[d.Category], "category %s appears in two groups", d.Category)
			seen[d.Category] = true
			last = d.Category
		}
	}
	assert.True(t, seen[CategoryRadar])
	assert.True(t, seen[CategoryOptical])
	assert.True(t, seen[CategoryIndex])
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "mutated"
	assert.NotEqual(t, "mutated", Get(all[0].ID).Name)
}

func TestByCategory(t *testing.T) {
	radar := ByCategory(CategoryRadar)
	require.Len(t, radar, 3)
	for _, d := range radar {
		assert.Equal(t, "sentinel-1-grd", d.Collection)
	}
}

func TestRadarLayersSkipCloudFilter(t *testing.T) {
	for _, d := range ByCategory(CategoryRadar) {
		assert.Equal(t, 100, d.MaxCloudCoverage, "radar sees through clouds: %s", d.ID)
	}
	for _, d := range ByCategory(CategoryOptical) {
		assert.Equal(t, 30, d.MaxCloudCoverage, "optical layers filter cloudy scenes: %s", d.ID)
	}
}
