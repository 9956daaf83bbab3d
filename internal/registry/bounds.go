package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// Bounds represents a geographic bounding box in WGS-84 coordinates.
//
// Coordinates are in decimal degrees.
type Bounds struct {
	MinLon float64 // Western edge
	MaxLon float64 // Eastern edge
	MinLat float64 // Southern edge
	MaxLat float64 // Northern edge
}

// Intersects returns true if the given bounds intersects with this bounds.
func (b Bounds) Intersects(other Bounds) bool {
	return !(other.MaxLon < b.MinLon ||
		other.MinLon > b.MaxLon ||
		other.MaxLat < b.MinLat ||
		other.MinLat > b.MaxLat)
}

// ParseBounds parses an MBTiles "bounds" metadata value, a comma-separated
// list of minLon,minLat,maxLon,maxLat in decimal degrees.
func ParseBounds(value string) (Bounds, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bounds %q: want 4 comma-separated values, got %d", value, len(parts))
	}

	coords := make([]float64, 4)
	for i, part := range parts {
		coord, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("bounds %q: %w", value, err)
		}
		coords[i] = coord
	}

	b := Bounds{MinLon: coords[0], MinLat: coords[1], MaxLon: coords[2], MaxLat: coords[3]}
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return Bounds{}, fmt.Errorf("bounds %q: min exceeds max", value)
	}
	return b, nil
}
