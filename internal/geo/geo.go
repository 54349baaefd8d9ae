package geo

import (
	"fmt"
	"math"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ring is an ordered polygon boundary. The closing vertex is implicit: a
// stored ring never repeats its first vertex at the end.
type Ring []Coordinate

// MinRingVertices is the smallest vertex count a committed pond boundary may have.
const MinRingVertices = 3

// NormalizeRing strips a closing duplicate vertex if the drawing surface
// included one, and returns a copy the caller may keep.
func NormalizeRing(raw []Coordinate) Ring {
	if len(raw) > 1 && raw[0] == raw[len(raw)-1] {
		raw = raw[:len(raw)-1]
	}
	out := make(Ring, len(raw))
	copy(out, raw)
	return out
}

// Validate checks the committed-pond invariant: at least three distinct vertices.
func (r Ring) Validate() error {
	distinct := make(map[Coordinate]struct{}, len(r))
	for _, c := range r {
		distinct[c] = struct{}{}
	}
	if len(distinct) < MinRingVertices {
		return fmt.Errorf("ring has %d distinct vertices, need at least %d", len(distinct), MinRingVertices)
	}
	return nil
}

// Centroid is the arithmetic mean of the ring's vertices.
func (r Ring) Centroid() Coordinate {
	if len(r) == 0 {
		return Coordinate{}
	}
	var lat, lng float64
	for _, c := range r {
		lat += c.Lat
		lng += c.Lng
	}
	n := float64(len(r))
	return Coordinate{Lat: lat / n, Lng: lng / n}
}

// Bounds is an axis-aligned geographic bounding box.
type Bounds struct {
	SouthWest Coordinate `json:"south_west"`
	NorthEast Coordinate `json:"north_east"`
}

// BoundsOf computes the bounding box covering every point. ok is false when
// pts is empty.
func BoundsOf(pts []Coordinate) (b Bounds, ok bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		SouthWest: Coordinate{Lat: math.Inf(1), Lng: math.Inf(1)},
		NorthEast: Coordinate{Lat: math.Inf(-1), Lng: math.Inf(-1)},
	}
	for _, p := range pts {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
	}
	return b, true
}

// Contains reports whether p lies within the box, edges included.
func (b Bounds) Contains(p Coordinate) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}
