package surface

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPointCloud(t *testing.T) {
	pts := make([]r3.Vector, 6)

	pc, err := NewPointCloud(2, 3, pts)
	require.NoError(t, err)
	assert.Equal(t, 6, pc.Len())

	_, err = NewPointCloud(4, 2, pts)
	assert.Error(t, err)

	var nilCloud *PointCloud
	assert.Equal(t, 0, nilCloud.Len())
}

func TestPointCloud_Ring(t *testing.T) {
	pc, err := NewPointCloud(1, 3, []r3.Vector{{X: 1}, {X: 2}, {X: 3}})
	require.NoError(t, err)

	ring, err := pc.Ring([]int{2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, Ring3D{{X: 3}, {X: 1}, {X: 2}}, ring)

	for _, bad := range [][]int{{0, 3}, {-1}} {
		_, err := pc.Ring(bad)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}

	var nilCloud *PointCloud
	_, err = nilCloud.Ring([]int{0})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestDepthToPointCloud(t *testing.T) {
	intr := Intrinsics{Width: 4, Height: 4, Fx: 2, Fy: 4, Ppx: 1, Ppy: 2}
	depth := make([]uint16, 16)
	for i := range depth {
		depth[i] = 1500
	}
	depth[1*4+3] = 0

	t.Run("full resolution", func(t *testing.T) {
		pc, err := DepthToPointCloud(depth, intr, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, pc.Rows)
		assert.Equal(t, 4, pc.Cols)

		// u=3, v=2: x = (3-1)*1.5/2, y = (2-2)*1.5/4
		p := pc.At(2, 3)
		assert.InDelta(t, 1.5, p.X, 1e-12)
		assert.InDelta(t, 0.0, p.Y, 1e-12)
		assert.InDelta(t, 1.5, p.Z, 1e-12)

		missing := pc.At(1, 3)
		assert.True(t, math.IsNaN(missing.Z))
		assert.False(t, finite(missing))
	})

	t.Run("stride", func(t *testing.T) {
		pc, err := DepthToPointCloud(depth, intr, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, pc.Rows)
		assert.Equal(t, 2, pc.Cols)

		// Row 1, column 1 samples pixel u=2, v=2.
		p := pc.At(1, 1)
		assert.InDelta(t, 0.75, p.X, 1e-12)
		assert.InDelta(t, 0.0, p.Y, 1e-12)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := DepthToPointCloud(depth[:10], intr, 1)
		assert.Error(t, err)

		_, err = DepthToPointCloud(depth, Intrinsics{Width: 4, Height: 4}, 1)
		assert.Error(t, err)

		_, err = DepthToPointCloud(nil, Intrinsics{}, 1)
		assert.Error(t, err)
	})
}

func TestValidFrame(t *testing.T) {
	tests := []struct {
		name     string
		depth    []uint16
		minValid float64
		want     bool
	}{
		{"all valid", []uint16{1, 2, 3, 4}, 0.5, true},
		{"exactly at threshold", []uint16{1, 2, 0, 0}, 0.5, false},
		{"above threshold", []uint16{1, 2, 3, 0}, 0.5, true},
		{"no valid pixels", []uint16{0, 0, 0, 0}, 0, false},
		{"empty", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFrame(tt.depth, tt.minValid); got != tt.want {
				t.Errorf("ValidFrame() = %v, want %v", got, tt.want)
			}
		})
	}
}
