package surface

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"
)

// Cluster is the set of raw polygons extracted for one dominant plane normal.
// The plane-aligned frame is given either as an explicit row-major rotation
// or as the normal itself; with neither, the polygons are taken as flat in XY.
type Cluster struct {
	Normal   *[3]float64       `json:"normal,omitempty"`
	Rotation *[3][3]float64    `json:"rotation,omitempty"`
	Polygons []PolygonBoundary `json:"polygons"`
}

// Transform returns the cluster's rotation, or nil for the identity.
func (c Cluster) Transform() (*RotationTransform, error) {
	switch {
	case c.Rotation != nil:
		return RotationFromRows(*c.Rotation)
	case c.Normal != nil:
		n := *c.Normal
		return RotationFromNormal(r3.Vector{X: n[0], Y: n[1], Z: n[2]})
	default:
		return nil, nil
	}
}

// Frame is one capture: either a ready point cloud or a depth image with its
// intrinsics, plus the polygons found in it.
type Frame struct {
	ID         string
	Cloud      *PointCloud
	Depth      []uint16
	Intrinsics *Intrinsics
	Clusters   []Cluster
}

// FrameResult holds one Result per cluster, in cluster order, and the
// frame's timing metrics in milliseconds.
type FrameResult struct {
	FrameID  string             `json:"frameId"`
	Clusters []*Result          `json:"clusters"`
	Timings  map[string]float64 `json:"timings"`
}

// Planes returns every cluster's planes, in cluster order.
func (fr *FrameResult) Planes() []Plane {
	var out []Plane
	for _, c := range fr.Clusters {
		out = append(out, c.Planes...)
	}
	return out
}

// Obstacles returns every cluster's obstacles, in cluster order.
func (fr *FrameResult) Obstacles() []Obstacle {
	var out []Obstacle
	for _, c := range fr.Clusters {
		out = append(out, c.Obstacles...)
	}
	return out
}

// Processor runs the per-frame pipeline: point cloud generation, one filter
// pass per cluster, and timing bookkeeping.
type Processor struct {
	cfg    Config
	filter *Filter
	stats  *TimingStats
	log    *zap.SugaredLogger
}

// NewProcessor creates a Processor. cfg.Workers sets the default worker count.
func NewProcessor(cfg Config, opts ...Option) *Processor {
	o := buildOptions(append([]Option{WithWorkers(cfg.Workers)}, opts...))
	return &Processor{
		cfg:    cfg,
		filter: &Filter{cfg: cfg.Polygon.Postprocess, workers: o.workers, log: o.log},
		stats:  NewTimingStats(),
		log:    o.log,
	}
}

// Stats returns the running timing statistics over processed frames.
func (p *Processor) Stats() *TimingStats {
	return p.stats
}

// ProcessFrame filters every cluster of f. Depth frames with too few valid
// pixels return ErrFrameSkipped.
func (p *Processor) ProcessFrame(f *Frame) (*FrameResult, error) {
	start := time.Now()
	cloud := f.Cloud
	var cloudTime time.Duration
	if cloud == nil {
		if f.Intrinsics == nil {
			return nil, fmt.Errorf("frame %s has neither a point cloud nor intrinsics", f.ID)
		}
		if !ValidFrame(f.Depth, p.cfg.Polygon.FrameSkip.DepthMinValid) {
			return nil, fmt.Errorf("frame %s: %w", f.ID, ErrFrameSkipped)
		}
		var err error
		cloud, err = DepthToPointCloud(f.Depth, *f.Intrinsics, p.cfg.Mesh.Stride)
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", f.ID, err)
		}
		cloudTime = time.Since(start)
	}

	result := &FrameResult{FrameID: f.ID}
	var timings Timings
	for ci, cluster := range f.Clusters {
		rot, err := cluster.Transform()
		if err != nil {
			return nil, fmt.Errorf("frame %s cluster %d: %w", f.ID, ci, err)
		}
		res, err := p.filter.FilterPlanesAndHoles(cluster.Polygons, cloud, rot)
		if err != nil {
			return nil, fmt.Errorf("frame %s cluster %d: %w", f.ID, ci, err)
		}
		result.Clusters = append(result.Clusters, res)
		timings.Add(res.Timings)
	}

	result.Timings = timings.Millis()
	result.Timings["pointCloud"] = ms(cloudTime)
	result.Timings["frame"] = ms(time.Since(start))
	p.stats.Record(result.Timings)

	p.log.Infof("[FILTER] frame %s: %d clusters, %d planes, %d obstacles in %.2fms",
		f.ID, len(f.Clusters), len(result.Planes()), len(result.Obstacles()), result.Timings["frame"])
	return result, nil
}
