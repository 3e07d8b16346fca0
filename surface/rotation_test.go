package surface

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVectorsInDelta(t *testing.T, want, got []r3.Vector, delta float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, delta, "point %d X", i)
		assert.InDelta(t, want[i].Y, got[i].Y, delta, "point %d Y", i)
		assert.InDelta(t, want[i].Z, got[i].Z, delta, "point %d Z", i)
	}
}

func TestRotationTransform_NilIsPassThrough(t *testing.T) {
	var rt *RotationTransform
	pts := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -4, Y: 5, Z: 6}}

	got := rt.Apply(pts)
	assert.Equal(t, pts, got)
	got[0].X = 99
	assert.Equal(t, 1.0, pts[0].X, "Apply must copy its input")

	assert.Equal(t, pts, rt.Invert(pts))
	assert.Equal(t, mgl64.Ident3(), rt.Matrix())
}

func TestNewRotationTransform_RejectsNonOrthonormal(t *testing.T) {
	_, err := NewRotationTransform(mgl64.Mat3{2, 0, 0, 0, 1, 0, 0, 0, 1})
	assert.Error(t, err)

	_, err = RotationFromRows([3][3]float64{{1, 1, 0}, {0, 1, 0}, {0, 0, 1}})
	assert.Error(t, err)
}

func TestRotationFromRows_QuarterTurnAboutZ(t *testing.T) {
	rt, err := RotationFromRows([3][3]float64{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	})
	require.NoError(t, err)

	got := rt.Apply([]r3.Vector{{X: 1}, {Y: 1}})
	assertVectorsInDelta(t, []r3.Vector{{Y: 1}, {X: -1}}, got, 1e-12)
}

func TestRotationFromNormal(t *testing.T) {
	tests := []struct {
		name   string
		normal r3.Vector
	}{
		{"already up", r3.Vector{Z: 1}},
		{"camera ground plane", r3.Vector{X: 0.05, Y: -0.95, Z: -0.3}},
		{"pointing down", r3.Vector{Z: -1}},
		{"unnormalized", r3.Vector{X: 3, Y: 4, Z: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := RotationFromNormal(tt.normal)
			require.NoError(t, err)

			unit := tt.normal.Normalize()
			got := rt.Apply([]r3.Vector{unit})
			assertVectorsInDelta(t, []r3.Vector{{Z: 1}}, got, 1e-9)
		})
	}
}

func TestRotationFromNormal_Invalid(t *testing.T) {
	_, err := RotationFromNormal(r3.Vector{})
	assert.Error(t, err)

	_, err = RotationFromNormal(r3.Vector{X: math.NaN(), Z: 1})
	assert.Error(t, err)
}

func TestRotationTransform_RoundTrip(t *testing.T) {
	rt, err := RotationFromNormal(r3.Vector{X: 0.2, Y: -0.9, Z: 0.3})
	require.NoError(t, err)

	original := Polygon3D{
		Exterior: Ring3D{{X: 0.1, Y: 1.2, Z: 2.5}, {X: 2.3, Y: 1.1, Z: 2.7}, {X: 2.2, Y: 0.9, Z: 4.1}, {X: -0.4, Y: 1.0, Z: 3.9}},
		Holes:    []Ring3D{{{X: 1, Y: 1, Z: 3}, {X: 1.2, Y: 1, Z: 3}, {X: 1.1, Y: 1.05, Z: 3.2}}},
	}

	rotated := rt.ApplyPolygon(original)
	back := rt.InvertPolygon(rotated)

	assertVectorsInDelta(t, original.Exterior, back.Exterior, 1e-9)
	require.Len(t, back.Holes, 1)
	assertVectorsInDelta(t, original.Holes[0], back.Holes[0], 1e-9)
}
