// Package tileurl builds gateway tile URL templates for map rendering
// libraries that expand {z}/{x}/{y} placeholders per tile.
package tileurl

import (
	"net/url"

	"github.com/lankasat/lankasat-live/internal/dates"
)

// Build returns the tile URL template for a layer and date. The date may be
// a time.Time or a YYYY-MM-DD string; either way it is normalized and
// clamped to the imagery range. The {z}, {x}, and {y} placeholders are left
// for the map library to expand.
func Build(baseURL, layerID string, date any) string {
	params := url.Values{
		"layer": {layerID},
		"date":  {dates.Normalize(date)},
	}
	return baseURL + "/tile?" + params.Encode() + "&z={z}&x={x}&y={y}"
}
