package surface

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/golang/geo/r3"
)

// frameFile is the JSON layout of a captured frame. A null point, or a point
// with null coordinates, marks a pixel without a depth reading.
type frameFile struct {
	ID         string      `json:"id"`
	Cloud      *cloudFile  `json:"cloud,omitempty"`
	Depth      []uint16    `json:"depth,omitempty"`
	Intrinsics *Intrinsics `json:"intrinsics,omitempty"`
	Clusters   []Cluster   `json:"clusters"`
}

type cloudFile struct {
	Rows   int          `json:"rows"`
	Cols   int          `json:"cols"`
	Points [][]*float64 `json:"points"`
}

// ParseFrameFile reads and parses a frame JSON file
func ParseFrameFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseFrame(data)
}

// ParseFrame parses frame JSON data
func ParseFrame(data []byte) (*Frame, error) {
	var ff frameFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	f := &Frame{
		ID:         ff.ID,
		Depth:      ff.Depth,
		Intrinsics: ff.Intrinsics,
		Clusters:   ff.Clusters,
	}

	switch {
	case ff.Cloud != nil:
		cloud, err := ff.Cloud.pointCloud()
		if err != nil {
			return nil, err
		}
		f.Cloud = cloud
	case ff.Intrinsics == nil:
		return nil, fmt.Errorf("frame %q has neither cloud nor intrinsics", ff.ID)
	}
	return f, nil
}

func (c *cloudFile) pointCloud() (*PointCloud, error) {
	points := make([]r3.Vector, len(c.Points))
	for i, p := range c.Points {
		if p == nil {
			points[i] = r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
			continue
		}
		if len(p) != 3 {
			return nil, fmt.Errorf("point %d has %d coordinates, want 3", i, len(p))
		}
		points[i] = r3.Vector{X: coord(p[0]), Y: coord(p[1]), Z: coord(p[2])}
	}
	rows, cols := c.Rows, c.Cols
	if rows == 0 && cols == 0 {
		rows, cols = 1, len(points)
	}
	return NewPointCloud(rows, cols, points)
}

func coord(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// FrameSummary provides a summary of a processed frame
type FrameSummary struct {
	FrameID    string             `json:"frameId"`
	Clusters   int                `json:"clusters"`
	Planes     int                `json:"planes"`
	Obstacles  int                `json:"obstacles"`
	Rejections int                `json:"rejections"`
	PlaneArea  float64            `json:"planeArea"`
	Timings    map[string]float64 `json:"timings"`
}

// Summarize extracts counts, total plane area and timings from a frame result
func Summarize(fr *FrameResult) FrameSummary {
	summary := FrameSummary{
		FrameID:  fr.FrameID,
		Clusters: len(fr.Clusters),
		Timings:  fr.Timings,
	}
	for _, c := range fr.Clusters {
		summary.Planes += len(c.Planes)
		summary.Obstacles += len(c.Obstacles)
		summary.Rejections += len(c.Rejections)
		for _, p := range c.Planes {
			summary.PlaneArea += p.Polygon.Area()
		}
	}
	return summary
}
