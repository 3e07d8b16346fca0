package surface

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// PointCloud is an organized point cloud: Points holds Rows*Cols entries in
// row-major order. Invalid points (no depth) are NaN.
type PointCloud struct {
	Rows   int
	Cols   int
	Points []r3.Vector
}

// NewPointCloud wraps points as an organized cloud. Rows*Cols must equal len(points);
// pass rows=1 for an unorganized cloud.
func NewPointCloud(rows, cols int, points []r3.Vector) (*PointCloud, error) {
	if rows*cols != len(points) {
		return nil, fmt.Errorf("point cloud shape %dx%d does not match %d points", rows, cols, len(points))
	}
	return &PointCloud{Rows: rows, Cols: cols, Points: points}, nil
}

// Len returns the number of points, valid or not.
func (pc *PointCloud) Len() int {
	if pc == nil {
		return 0
	}
	return len(pc.Points)
}

// At returns the point at row r, column c.
func (pc *PointCloud) At(r, c int) r3.Vector {
	return pc.Points[r*pc.Cols+c]
}

// Ring resolves an index sequence into coordinates.
func (pc *PointCloud) Ring(indices []int) (Ring3D, error) {
	ring := make(Ring3D, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= pc.Len() {
			return nil, fmt.Errorf("index %d (cloud has %d points): %w", idx, pc.Len(), ErrIndexOutOfRange)
		}
		ring[i] = pc.Points[idx]
	}
	return ring, nil
}

// DepthToPointCloud back-projects a depth image (millimetres, row-major,
// intr.Width*intr.Height values) into an organized point cloud in the camera
// frame. Every stride-th pixel in each direction is kept; a zero depth reading
// produces a NaN point so the organized layout is preserved.
func DepthToPointCloud(depth []uint16, intr Intrinsics, stride int) (*PointCloud, error) {
	if intr.Width <= 0 || intr.Height <= 0 {
		return nil, fmt.Errorf("invalid depth image size %dx%d", intr.Width, intr.Height)
	}
	if len(depth) != intr.Width*intr.Height {
		return nil, fmt.Errorf("depth image has %d values, want %d", len(depth), intr.Width*intr.Height)
	}
	if intr.Fx == 0 || intr.Fy == 0 {
		return nil, fmt.Errorf("invalid focal length fx=%g fy=%g", intr.Fx, intr.Fy)
	}
	if stride <= 0 {
		stride = 1
	}

	rows := intr.Height / stride
	cols := intr.Width / stride
	points := make([]r3.Vector, 0, rows*cols)
	nan := r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

	for r := 0; r < rows; r++ {
		v := r * stride
		for c := 0; c < cols; c++ {
			u := c * stride
			d := depth[v*intr.Width+u]
			if d == 0 {
				points = append(points, nan)
				continue
			}
			z := float64(d) / 1000.0
			points = append(points, r3.Vector{
				X: (float64(u) - intr.Ppx) * z / intr.Fx,
				Y: (float64(v) - intr.Ppy) * z / intr.Fy,
				Z: z,
			})
		}
	}

	return &PointCloud{Rows: rows, Cols: cols, Points: points}, nil
}

// ValidFrame reports whether more than minValid of the depth pixels carry a reading.
func ValidFrame(depth []uint16, minValid float64) bool {
	if len(depth) == 0 {
		return false
	}
	count := 0
	for _, d := range depth {
		if d != 0 {
			count++
		}
	}
	return float64(count)/float64(len(depth)) > minValid
}
