package surface

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// orthonormalTolerance bounds |R*Rᵀ - I| for a matrix to count as a rotation.
const orthonormalTolerance = 1e-6

// RotationTransform maps scene coordinates into a frame where a planar
// polygon lies (nearly) parallel to the XY plane, and back. It is immutable
// and safe to share across goroutines. A nil *RotationTransform is the
// identity: Apply and Invert copy their input unchanged.
type RotationTransform struct {
	forward mgl64.Mat3
	inverse mgl64.Mat3
}

// NewRotationTransform validates that m is orthonormal and precomputes its inverse.
func NewRotationTransform(m mgl64.Mat3) (*RotationTransform, error) {
	if !m.Mul3(m.Transpose()).ApproxEqualThreshold(mgl64.Ident3(), orthonormalTolerance) {
		return nil, fmt.Errorf("rotation matrix is not orthonormal: %v", m)
	}
	return &RotationTransform{forward: m, inverse: m.Transpose()}, nil
}

// RotationFromRows builds a transform from a row-major 3x3 matrix, the layout
// used by the frame JSON format and most numerical libraries.
func RotationFromRows(rows [3][3]float64) (*RotationTransform, error) {
	m := mgl64.Mat3FromRows(
		mgl64.Vec3(rows[0]),
		mgl64.Vec3(rows[1]),
		mgl64.Vec3(rows[2]),
	)
	return NewRotationTransform(m)
}

// RotationFromNormal returns the rotation taking the dominant plane normal to +Z,
// so polygons extracted for that normal become flat in XY after Apply.
func RotationFromNormal(normal r3.Vector) (*RotationTransform, error) {
	n := normal.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("invalid plane normal %v", normal)
	}
	start := mgl64.Vec3{normal.X / n, normal.Y / n, normal.Z / n}
	q := mgl64.QuatBetweenVectors(start, mgl64.Vec3{0, 0, 1}).Normalize()
	return NewRotationTransform(q.Mat4().Mat3())
}

// Matrix returns the forward rotation.
func (rt *RotationTransform) Matrix() mgl64.Mat3 {
	if rt == nil {
		return mgl64.Ident3()
	}
	return rt.forward
}

// Apply rotates points into the plane-aligned frame. Output order matches input order.
func (rt *RotationTransform) Apply(points []r3.Vector) []r3.Vector {
	if rt == nil {
		return append([]r3.Vector(nil), points...)
	}
	return transformVectors(rt.forward, points)
}

// Invert rotates plane-aligned points back into the scene frame.
func (rt *RotationTransform) Invert(points []r3.Vector) []r3.Vector {
	if rt == nil {
		return append([]r3.Vector(nil), points...)
	}
	return transformVectors(rt.inverse, points)
}

// ApplyPolygon rotates every ring of p.
func (rt *RotationTransform) ApplyPolygon(p Polygon3D) Polygon3D {
	return mapPolygon(p, rt.Apply)
}

// InvertPolygon rotates every ring of p back into the scene frame.
func (rt *RotationTransform) InvertPolygon(p Polygon3D) Polygon3D {
	return mapPolygon(p, rt.Invert)
}

func mapPolygon(p Polygon3D, fn func([]r3.Vector) []r3.Vector) Polygon3D {
	out := Polygon3D{Exterior: fn(p.Exterior)}
	if len(p.Holes) > 0 {
		out.Holes = make([]Ring3D, len(p.Holes))
		for i, h := range p.Holes {
			out.Holes[i] = fn(h)
		}
	}
	return out
}

func transformVectors(m mgl64.Mat3, points []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(points))
	for i, p := range points {
		v := m.Mul3x1(mgl64.Vec3{p.X, p.Y, p.Z})
		out[i] = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	}
	return out
}
