package surface

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover3D_NearestVertex(t *testing.T) {
	idx := NewSpatialIndex([]r3.Vector{
		{X: 0, Y: 0, Z: 1.0},
		{X: 2, Y: 0, Z: 1.5},
		{X: 2, Y: 2, Z: 2.0},
		{X: 0, Y: 2, Z: 2.5},
	}, nil)

	// Slightly shrunk square: each vertex stays closest to its original corner.
	p := orb.Polygon{{{0.1, 0.1}, {1.9, 0.1}, {1.9, 1.9}, {0.1, 1.9}, {0.1, 0.1}}}
	got, err := Recover3D(p, idx, math.NaN())
	require.NoError(t, err)

	require.Len(t, got.Exterior, 4, "output rings are open")
	wantZ := []float64{1.0, 1.5, 2.0, 2.5}
	for i, v := range got.Exterior {
		assert.Equal(t, p[0][i][0], v.X)
		assert.Equal(t, p[0][i][1], v.Y)
		assert.Equal(t, wantZ[i], v.Z)
	}
	assert.Empty(t, got.Holes)
}

func TestRecover3D_Holes(t *testing.T) {
	idx := NewSpatialIndex(
		[]r3.Vector{{X: 0, Y: 0, Z: 1}, {X: 4, Y: 0, Z: 1}, {X: 4, Y: 4, Z: 1}, {X: 0, Y: 4, Z: 1}},
		[]Ring3D{{{X: 1.5, Y: 1.5, Z: 7}, {X: 2.5, Y: 1.5, Z: 7}, {X: 2, Y: 2.5, Z: 7}}},
	)
	p := orb.Polygon{square(0, 0, 4), {{1.6, 1.6}, {2, 2.4}, {2.4, 1.6}, {1.6, 1.6}}}

	got, err := Recover3D(p, idx, 0)
	require.NoError(t, err)
	require.Len(t, got.Holes, 1)
	require.Len(t, got.Holes[0], 3)
	for _, v := range got.Holes[0] {
		assert.Equal(t, 7.0, v.Z)
	}
	for _, v := range got.Exterior {
		assert.Equal(t, 1.0, v.Z)
	}
}

func TestRecover3D_Fallback(t *testing.T) {
	p := orb.Polygon{square(0, 0, 1)}

	t.Run("finite fallback", func(t *testing.T) {
		got, err := Recover3D(p, nil, 0.75)
		require.NoError(t, err)
		require.Len(t, got.Exterior, 4)
		for _, v := range got.Exterior {
			assert.Equal(t, 0.75, v.Z)
		}
	})

	t.Run("missing reference", func(t *testing.T) {
		for _, z := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := Recover3D(p, nil, z)
			assert.True(t, errors.Is(err, ErrMissingReference), "fallback %v: got %v", z, err)
		}
	})
}

func TestRecover3D_Degenerate(t *testing.T) {
	_, err := Recover3D(orb.Polygon{}, nil, 1)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)

	_, err = Recover3D(orb.Polygon{square(0, 0, 1)}, NewSpatialIndex(nil, nil), 1)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestToOrbPolygon_ClosesRings(t *testing.T) {
	p := Polygon3D{
		Exterior: Ring3D{{X: 0, Y: 0, Z: 9}, {X: 1, Y: 0, Z: 9}, {X: 1, Y: 1, Z: 9}},
		Holes:    []Ring3D{{{X: 0.5, Y: 0.2}, {X: 0.7, Y: 0.2}, {X: 0.7, Y: 0.4}}},
	}
	got := toOrbPolygon(p)
	require.Len(t, got, 2)
	assert.Equal(t, orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, got[0])
	assert.Len(t, got[1], 4)
	assert.True(t, got[1].Closed())
}
