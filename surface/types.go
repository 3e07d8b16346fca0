package surface

import (
	"math"

	"github.com/golang/geo/r3"
)

// Ring3D is an ordered ring of 3D coordinates. The closing vertex is implicit:
// the first coordinate is not repeated at the end.
type Ring3D []r3.Vector

// Polygon3D is a planar polygon expressed with 3D vertices: an exterior ring
// and zero or more interior rings (holes).
type Polygon3D struct {
	Exterior Ring3D   `json:"exterior"`
	Holes    []Ring3D `json:"holes,omitempty"`
}

// Area returns the surface area of the polygon, holes excluded. The rings
// need not lie in the XY plane.
func (p Polygon3D) Area() float64 {
	area := ringArea(p.Exterior)
	for _, h := range p.Holes {
		area -= ringArea(h)
	}
	return math.Max(area, 0)
}

// ringArea uses Newell's method, which works for planar rings of any orientation.
func ringArea(r Ring3D) float64 {
	var sum r3.Vector
	for i := range r {
		sum = sum.Add(r[i].Cross(r[(i+1)%len(r)]))
	}
	return sum.Norm() / 2
}

// PolygonBoundary is a raw polygon produced by the upstream polygon extraction
// stage. Shell and Holes are ordered index sequences into the frame's point cloud.
type PolygonBoundary struct {
	Shell []int   `json:"shell"`
	Holes [][]int `json:"holes,omitempty"`
}

// Plane is an accepted planar region. Polygon is in the scene frame, ZValue is
// the height of the region along the dominant normal it was extracted with.
type Plane struct {
	Polygon     Polygon3D `json:"polygon"`
	ZValue      float64   `json:"zValue"`
	SourceIndex int       `json:"sourceIndex"`
}

// Obstacle is an accepted hole of an accepted plane (e.g. a curb drop or an
// object standing on the ground plane).
type Obstacle struct {
	Polygon     Polygon3D `json:"polygon"`
	ZValue      float64   `json:"zValue"`
	SourceIndex int       `json:"sourceIndex"`
}

// Rejection records why a raw polygon, or one region produced from it, was
// dropped from the output.
type Rejection struct {
	SourceIndex int    `json:"sourceIndex"`
	Reason      string `json:"reason"`
	Err         error  `json:"-"`
}

// Intrinsics are pinhole camera parameters for the depth stream.
type Intrinsics struct {
	Width  int     `yaml:"width" json:"width"`
	Height int     `yaml:"height" json:"height"`
	Fx     float64 `yaml:"fx" json:"fx"`
	Fy     float64 `yaml:"fy" json:"fy"`
	Ppx    float64 `yaml:"ppx" json:"ppx"`
	Ppy    float64 `yaml:"ppy" json:"ppy"`
}

// ringValid reports whether every coordinate of the ring is finite.
func ringValid(r Ring3D) bool {
	for _, p := range r {
		if !finite(p) {
			return false
		}
	}
	return true
}

func finite(p r3.Vector) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}
