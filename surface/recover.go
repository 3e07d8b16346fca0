package surface

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
)

// Recover3D lifts a 2D polygon back into 3D. Each vertex takes the z of the
// nearest original vertex in idx. With a nil idx every vertex gets fallbackZ,
// which must then be a real number.
func Recover3D(p orb.Polygon, idx *SpatialIndex, fallbackZ float64) (Polygon3D, error) {
	if len(p) == 0 {
		return Polygon3D{}, fmt.Errorf("recovering empty polygon: %w", ErrDegenerateGeometry)
	}

	var zAt func(pt orb.Point) (float64, error)
	switch {
	case idx != nil:
		if idx.Len() == 0 {
			return Polygon3D{}, fmt.Errorf("spatial index has no vertices: %w", ErrDegenerateGeometry)
		}
		zAt = func(pt orb.Point) (float64, error) {
			nearest, ok := idx.Nearest(pt[0], pt[1])
			if !ok {
				return 0, fmt.Errorf("no neighbour for (%g, %g): %w", pt[0], pt[1], ErrDegenerateGeometry)
			}
			return nearest.Z, nil
		}
	case math.IsNaN(fallbackZ) || math.IsInf(fallbackZ, 0):
		return Polygon3D{}, ErrMissingReference
	default:
		zAt = func(orb.Point) (float64, error) { return fallbackZ, nil }
	}

	lift := func(ring orb.Ring) (Ring3D, error) {
		pts := openRing(ring)
		out := make(Ring3D, len(pts))
		for i, pt := range pts {
			z, err := zAt(pt)
			if err != nil {
				return nil, err
			}
			out[i] = r3.Vector{X: pt[0], Y: pt[1], Z: z}
		}
		return out, nil
	}

	exterior, err := lift(p[0])
	if err != nil {
		return Polygon3D{}, err
	}
	out := Polygon3D{Exterior: exterior}
	for _, h := range p[1:] {
		hole, err := lift(h)
		if err != nil {
			return Polygon3D{}, err
		}
		out.Holes = append(out.Holes, hole)
	}
	return out, nil
}

// toOrbPolygon projects a 3D polygon onto XY, closing every ring.
func toOrbPolygon(p Polygon3D) orb.Polygon {
	out := make(orb.Polygon, 0, 1+len(p.Holes))
	out = append(out, toOrbRing(p.Exterior))
	for _, h := range p.Holes {
		out = append(out, toOrbRing(h))
	}
	return out
}

func toOrbRing(r Ring3D) orb.Ring {
	ring := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	return closeRing(ring)
}
