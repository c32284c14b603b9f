package sentinel

import "math"

// BBox is a WGS84 bounding box.
type BBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// TileToBBox converts slippy-map tile coordinates to a WGS84 bounding box
// using the Web Mercator tiling scheme.
func TileToBBox(z, x, y int) BBox {
	n := math.Exp2(float64(z))

	west := float64(x)/n*360.0 - 180.0
	east := float64(x+1)/n*360.0 - 180.0

	north := math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180.0 / math.Pi
	south := math.Atan(math.Sinh(math.Pi*(1-2*float64(y+1)/n))) * 180.0 / math.Pi

	return BBox{West: west, South: south, East: east, North: north}
}
