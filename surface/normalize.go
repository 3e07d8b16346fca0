package surface

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// Normalize runs the 2D geometry pipeline on a working polygon:
// simplify, positive buffer, negative buffer, simplify again. Each step is
// skipped when its setting is zero. The negative buffer may split the polygon,
// so the result is a list of regions; it may also be empty when every part
// was eroded away. changed reports whether any step ran, meaning vertex
// coordinates can no longer be matched one-to-one with the input.
func Normalize(p orb.Polygon, cfg PostprocessConfig) (regions []orb.Polygon, changed bool) {
	return normalize(p, cfg, nil)
}

// normalize is Normalize with per-step durations added to t when it is non-nil.
func normalize(p orb.Polygon, cfg PostprocessConfig, t *Timings) ([]orb.Polygon, bool) {
	if cfg.Simplify <= 0 && cfg.PositiveBuffer <= 0 && cfg.NegativeBuffer <= 0 {
		return []orb.Polygon{p}, false
	}

	if t == nil {
		t = &Timings{}
	}
	regions := []orb.Polygon{p}
	start := time.Now()
	if cfg.Simplify > 0 {
		regions[0] = SimplifyPreserveTopology(p, cfg.Simplify)
	}
	start = lap(&t.Simplify1, start)
	if cfg.PositiveBuffer > 0 {
		regions = bufferAll(regions, cfg.PositiveBuffer, cfg.MitreLimit)
	}
	start = lap(&t.PositiveBuffer, start)
	if cfg.NegativeBuffer > 0 {
		regions = bufferAll(regions, -cfg.NegativeBuffer, cfg.MitreLimit)
	}
	start = lap(&t.NegativeBuffer, start)
	if cfg.Simplify > 0 {
		for i := range regions {
			regions[i] = SimplifyPreserveTopology(regions[i], cfg.Simplify)
		}
	}
	lap(&t.Simplify2, start)
	return regions, true
}

func bufferAll(regions []orb.Polygon, distance, mitreLimit float64) []orb.Polygon {
	var out []orb.Polygon
	for _, r := range regions {
		out = append(out, Buffer(r, distance, mitreLimit)...)
	}
	return out
}

// SimplifyPreserveTopology applies Douglas-Peucker to each ring of p. A
// simplified ring replaces the original only if it still has at least three
// distinct vertices, does not self-intersect, and does not cross any other
// ring of the polygon; otherwise the ring is kept as it was. Rings are never
// dropped.
func SimplifyPreserveTopology(p orb.Polygon, tolerance float64) orb.Polygon {
	if tolerance <= 0 || len(p) == 0 {
		return p
	}
	dp := simplify.DouglasPeucker(tolerance)

	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		out[i] = closeRing(ring.Clone())
	}

	for i := range out {
		candidate := dp.Ring(closeRing(out[i].Clone()))
		if len(openRing(candidate)) < 3 || ringSelfIntersects(candidate) {
			continue
		}
		crosses := false
		for j := range out {
			if j != i && ringsIntersect(candidate, out[j]) {
				crosses = true
				break
			}
		}
		if !crosses {
			out[i] = candidate
		}
	}
	return out
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r[0].Equal(r[len(r)-1]) {
		r = append(r, r[0])
	}
	return r
}

// ringSelfIntersects reports whether any two non-adjacent edges of the ring
// touch or cross.
func ringSelfIntersects(r orb.Ring) bool {
	pts := openRing(r)
	n := len(pts)
	for i := 0; i < n; i++ {
		a1, a2 := pts[i], pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(a1, a2, pts[j], pts[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

// ringsIntersect reports whether any edge of a touches or crosses any edge of b.
func ringsIntersect(a, b orb.Ring) bool {
	pa, pb := openRing(a), openRing(b)
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for i := range pa {
		a1, a2 := pa[i], pa[(i+1)%len(pa)]
		for j := range pb {
			if segmentsIntersect(a1, a2, pb[j], pb[(j+1)%len(pb)]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}
