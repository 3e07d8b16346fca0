package surface

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// AcceptPlane reports whether a region of the given area is large enough to be
// kept as a plane. A zero or negative minimum accepts everything.
func (f FilterConfig) AcceptPlane(area float64) bool {
	return f.PlaneArea.Min <= 0 || area >= f.PlaneArea.Min
}

// AcceptHole reports whether an interior ring becomes an obstacle. The ring
// needs strictly more than HoleVertices.Min vertices, and, when HoleArea.Min is
// positive, an area in [HoleArea.Min, HoleArea.Max). A non-positive
// HoleArea.Max leaves the range open above.
func (f FilterConfig) AcceptHole(vertexCount int, area float64) bool {
	if vertexCount <= f.HoleVertices.Min {
		return false
	}
	if f.HoleArea.Min <= 0 {
		return true
	}
	return area >= f.HoleArea.Min && (f.HoleArea.Max <= 0 || area < f.HoleArea.Max)
}

// RejectRegion returns ErrDegenerateGeometry when the exterior ring of p has
// fewer than three distinct vertices or encloses no area.
func RejectRegion(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("region has no rings: %w", ErrDegenerateGeometry)
	}
	return rejectRing(p[0])
}

func rejectRing(r orb.Ring) error {
	if n := distinctVertices(r); n < 3 {
		return fmt.Errorf("ring has %d distinct vertices: %w", n, ErrDegenerateGeometry)
	}
	if enclosedArea(r) == 0 {
		return fmt.Errorf("ring has zero area: %w", ErrDegenerateGeometry)
	}
	return nil
}

// enclosedArea is the unsigned area of r, whatever its winding.
func enclosedArea(r orb.Ring) float64 {
	return math.Abs(planar.Area(closeRing(r.Clone())))
}

// vertexCount is the number of ring vertices, excluding the closing duplicate.
func vertexCount(r orb.Ring) int {
	return len(openRing(r))
}

func distinctVertices(r orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}
