package surface

import (
	"sort"
	"sync"
	"time"
)

// Timings accumulates the time spent in each filtering stage. Durations are
// summed over every polygon of a call.
type Timings struct {
	Rotation        time.Duration `json:"rotation"`
	PolygonCreation time.Duration `json:"polygonCreation"`
	Simplify1       time.Duration `json:"simplify1"`
	PositiveBuffer  time.Duration `json:"positiveBuffer"`
	NegativeBuffer  time.Duration `json:"negativeBuffer"`
	Simplify2       time.Duration `json:"simplify2"`
	KDTree          time.Duration `json:"kdTree"`
	Recover3D       time.Duration `json:"recover3D"`
	InverseRotation time.Duration `json:"inverseRotation"`
	Total           time.Duration `json:"total"`
}

// Add sums o into t.
func (t *Timings) Add(o Timings) {
	t.Rotation += o.Rotation
	t.PolygonCreation += o.PolygonCreation
	t.Simplify1 += o.Simplify1
	t.PositiveBuffer += o.PositiveBuffer
	t.NegativeBuffer += o.NegativeBuffer
	t.Simplify2 += o.Simplify2
	t.KDTree += o.KDTree
	t.Recover3D += o.Recover3D
	t.InverseRotation += o.InverseRotation
	t.Total += o.Total
}

// Millis returns each stage in milliseconds, keyed by its JSON name.
func (t Timings) Millis() map[string]float64 {
	return map[string]float64{
		"rotation":        ms(t.Rotation),
		"polygonCreation": ms(t.PolygonCreation),
		"simplify1":       ms(t.Simplify1),
		"positiveBuffer":  ms(t.PositiveBuffer),
		"negativeBuffer":  ms(t.NegativeBuffer),
		"simplify2":       ms(t.Simplify2),
		"kdTree":          ms(t.KDTree),
		"recover3D":       ms(t.Recover3D),
		"inverseRotation": ms(t.InverseRotation),
		"total":           ms(t.Total),
	}
}

// lap adds the time since start to *d and returns the current time.
func lap(d *time.Duration, start time.Time) time.Time {
	now := time.Now()
	*d += now.Sub(start)
	return now
}

// TimingStats keeps a running mean of per-frame timing metrics (milliseconds
// keyed by metric name). It is safe for concurrent use.
type TimingStats struct {
	mu     sync.RWMutex
	frames int
	sums   map[string]float64
}

// NewTimingStats creates an empty TimingStats.
func NewTimingStats() *TimingStats {
	return &TimingStats{sums: make(map[string]float64)}
}

// Record adds one frame's metrics. A metric missing from a frame counts as zero.
func (s *TimingStats) Record(metrics map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	for k, v := range metrics {
		s.sums[k] += v
	}
}

// Frames returns the number of recorded frames.
func (s *TimingStats) Frames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Mean returns the mean of every metric over the recorded frames.
func (s *TimingStats) Mean() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.sums))
	if s.frames == 0 {
		return out
	}
	for k, v := range s.sums {
		out[k] = v / float64(s.frames)
	}
	return out
}

// Keys returns the metric names in sorted order.
func (s *TimingStats) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.sums))
	for k := range s.sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
