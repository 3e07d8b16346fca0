package surface

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of filtering one cluster's raw polygons.
// PlaneIndices[k] is the raw polygon index Planes[k] came from; a polygon
// split by the negative buffer appears once per surviving region.
type Result struct {
	Planes       []Plane     `json:"planes"`
	Obstacles    []Obstacle  `json:"obstacles"`
	PlaneIndices []int       `json:"planeIndices"`
	Rejections   []Rejection `json:"rejections,omitempty"`
	Timings      Timings     `json:"timings"`
}

// Filter turns raw polygon boundaries into validated planes and obstacles.
// A Filter holds no per-call state and may be shared between goroutines.
type Filter struct {
	cfg     PostprocessConfig
	workers int
	log     *zap.SugaredLogger
}

// Option configures a Filter or Processor.
type Option func(*options)

type options struct {
	log     *zap.SugaredLogger
	workers int
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l.Sugar()
		}
	}
}

// WithWorkers processes up to n polygons concurrently. Output order does not
// depend on n.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop().Sugar(), workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// NewFilter creates a Filter for the given post-processing settings.
func NewFilter(cfg PostprocessConfig, opts ...Option) *Filter {
	o := buildOptions(opts)
	return &Filter{cfg: cfg, workers: o.workers, log: o.log}
}

// polygonResult holds what one raw polygon contributed.
type polygonResult struct {
	planes     []Plane
	obstacles  []Obstacle
	rejections []Rejection
	timings    Timings
}

// FilterPlanesAndHoles resolves each raw polygon against cloud, rotates it
// into the plane-aligned frame with rot (nil means the polygons are already
// flat in XY), normalizes and filters it, and rotates the accepted planes and
// obstacles back into the scene frame.
//
// Rejected polygons and regions are listed in Result.Rejections and never
// stop the remaining polygons from being processed. The only error returned
// is a contract violation such as ErrMissingReference.
func (f *Filter) FilterPlanesAndHoles(polygons []PolygonBoundary, cloud *PointCloud, rot *RotationTransform) (*Result, error) {
	start := time.Now()
	slots := make([]polygonResult, len(polygons))

	if f.workers > 1 && len(polygons) > 1 {
		var g errgroup.Group
		g.SetLimit(f.workers)
		for i := range polygons {
			i := i
			g.Go(func() error {
				res, err := f.filterPolygon(i, polygons[i], cloud, rot)
				if err != nil {
					return err
				}
				slots[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range polygons {
			res, err := f.filterPolygon(i, polygons[i], cloud, rot)
			if err != nil {
				return nil, err
			}
			slots[i] = res
		}
	}

	result := &Result{}
	for _, s := range slots {
		for _, p := range s.planes {
			result.Planes = append(result.Planes, p)
			result.PlaneIndices = append(result.PlaneIndices, p.SourceIndex)
		}
		result.Obstacles = append(result.Obstacles, s.obstacles...)
		result.Rejections = append(result.Rejections, s.rejections...)
		result.Timings.Add(s.timings)
	}

	if rot != nil {
		t := time.Now()
		for i := range result.Planes {
			result.Planes[i].Polygon = rot.InvertPolygon(result.Planes[i].Polygon)
		}
		for i := range result.Obstacles {
			result.Obstacles[i].Polygon = rot.InvertPolygon(result.Obstacles[i].Polygon)
		}
		result.Timings.InverseRotation = time.Since(t)
		f.log.Debugf("[FILTER] revert rotation: %.2fms", ms(result.Timings.InverseRotation))
	}

	result.Timings.Total = time.Since(start)
	f.log.Debugf("[FILTER] %d polygons -> %d planes, %d obstacles, %d rejected in %.2fms",
		len(polygons), len(result.Planes), len(result.Obstacles), len(result.Rejections), ms(result.Timings.Total))
	return result, nil
}

func (f *Filter) filterPolygon(i int, boundary PolygonBoundary, cloud *PointCloud, rot *RotationTransform) (polygonResult, error) {
	var res polygonResult
	reject := func(err error) {
		f.log.Debugf("[FILTER] polygon %d rejected: %v", i, err)
		res.rejections = append(res.rejections, Rejection{SourceIndex: i, Reason: err.Error(), Err: err})
	}

	if len(boundary.Shell) == 0 {
		reject(ErrEmptyInput)
		return res, nil
	}

	t0 := time.Now()
	scene, err := resolvePolygon(boundary, cloud)
	if err != nil {
		reject(err)
		return res, nil
	}
	original := rot.ApplyPolygon(scene)
	t1 := lap(&res.timings.Rotation, t0)

	working := toOrbPolygon(original)
	lap(&res.timings.PolygonCreation, t1)

	cfg := f.cfg.Filter
	if area := planar.Area(working); !cfg.AcceptPlane(area) {
		reject(fmt.Errorf("area %.4f below plane minimum %.4f", area, cfg.PlaneArea.Min))
		return res, nil
	}
	zValue := original.Exterior[0].Z

	regions, changed := normalize(working, f.cfg, &res.timings)
	f.log.Debugf("[FILTER] polygon %d: rotation %.2fms; creation %.2fms; simplify 1 %.2fms; positive buffer %.2fms; negative buffer %.2fms; simplify 2 %.2fms",
		i, ms(res.timings.Rotation), ms(res.timings.PolygonCreation), ms(res.timings.Simplify1),
		ms(res.timings.PositiveBuffer), ms(res.timings.NegativeBuffer), ms(res.timings.Simplify2))
	if len(regions) == 0 {
		reject(fmt.Errorf("polygon eroded by negative buffer: %w", ErrDegenerateGeometry))
		return res, nil
	}

	var index *SpatialIndex
	for _, region := range regions {
		if err := RejectRegion(region); err != nil {
			reject(err)
			continue
		}
		if area := planar.Area(region); !cfg.AcceptPlane(area) {
			reject(fmt.Errorf("region area %.4f below plane minimum %.4f", area, cfg.PlaneArea.Min))
			continue
		}

		lifted := original
		if changed {
			t8 := time.Now()
			if index == nil {
				index = NewSpatialIndex(original.Exterior, original.Holes)
			}
			t9 := lap(&res.timings.KDTree, t8)
			lifted, err = Recover3D(region, index, zValue)
			lap(&res.timings.Recover3D, t9)
			if errors.Is(err, ErrMissingReference) {
				return res, fmt.Errorf("polygon %d: %w", i, err)
			}
			if err != nil {
				reject(err)
				continue
			}
		}

		res.planes = append(res.planes, Plane{
			Polygon:     Polygon3D{Exterior: lifted.Exterior},
			ZValue:      zValue,
			SourceIndex: i,
		})

		for h, hole := range region[1:] {
			if rejectRing(hole) != nil || h >= len(lifted.Holes) {
				continue
			}
			if !cfg.AcceptHole(vertexCount(hole), enclosedArea(hole)) {
				continue
			}
			ring := lifted.Holes[h]
			res.obstacles = append(res.obstacles, Obstacle{
				Polygon:     Polygon3D{Exterior: ring},
				ZValue:      ring[0].Z,
				SourceIndex: i,
			})
		}
	}
	if changed {
		f.log.Debugf("[FILTER] polygon %d: kd-tree %.2fms; recover 3D %.2fms",
			i, ms(res.timings.KDTree), ms(res.timings.Recover3D))
	}
	return res, nil
}

// resolvePolygon looks up the coordinates of a raw polygon. Out-of-range
// indices and invalid points make the whole polygon degenerate.
func resolvePolygon(boundary PolygonBoundary, cloud *PointCloud) (Polygon3D, error) {
	shell, err := cloud.Ring(boundary.Shell)
	if err != nil {
		return Polygon3D{}, fmt.Errorf("resolving shell: %w", err)
	}
	if !ringValid(shell) {
		return Polygon3D{}, fmt.Errorf("shell has invalid points: %w", ErrDegenerateGeometry)
	}
	p := Polygon3D{Exterior: shell}
	for h, indices := range boundary.Holes {
		hole, err := cloud.Ring(indices)
		if err != nil {
			return Polygon3D{}, fmt.Errorf("resolving hole %d: %w", h, err)
		}
		if !ringValid(hole) {
			return Polygon3D{}, fmt.Errorf("hole %d has invalid points: %w", h, ErrDegenerateGeometry)
		}
		p.Holes = append(p.Holes, hole)
	}
	return p, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
