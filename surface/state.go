package surface

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ResultTracker keeps the latest frame result and per-run counters for the
// HTTP endpoints. It is safe for concurrent use.
type ResultTracker struct {
	mu        sync.RWMutex
	last      *FrameResult
	updated   time.Time
	processed int
	skipped   int
	failed    int
	lastError string
	stats     *TimingStats
	cachePath string // path to the last-result cache file; empty disables persistence
}

// TrackerStatus is a snapshot of the tracker counters
type TrackerStatus struct {
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	LastError string    `json:"lastError,omitempty"`
	Updated   time.Time `json:"updated,omitempty"`
	FrameID   string    `json:"frameId,omitempty"`
}

// NewResultTracker creates a tracker that reports timing means from stats
func NewResultTracker(stats *TimingStats) *ResultTracker {
	if stats == nil {
		stats = NewTimingStats()
	}
	return &ResultTracker{stats: stats}
}

// NewResultTrackerWithCache creates a tracker that persists the last result
// to cachePath. If the file exists, the cached result is loaded on creation.
func NewResultTrackerWithCache(stats *TimingStats, cachePath string) *ResultTracker {
	rt := NewResultTracker(stats)
	rt.cachePath = cachePath
	if cachePath != "" {
		if fr, err := LoadFrameResult(cachePath); err == nil {
			rt.last = fr
		}
	}
	return rt
}

// Update records a frame outcome. ErrFrameSkipped counts as skipped, any
// other error as failed; a nil error stores fr as the latest result.
func (rt *ResultTracker) Update(fr *FrameResult, err error) error {
	rt.mu.Lock()
	switch {
	case err == nil:
		rt.last = fr
		rt.updated = time.Now()
		rt.processed++
	case isSkipped(err):
		rt.skipped++
	default:
		rt.failed++
		rt.lastError = err.Error()
	}
	cachePath := rt.cachePath
	rt.mu.Unlock()

	if err == nil && cachePath != "" {
		if err := SaveFrameResult(fr, cachePath); err != nil {
			return fmt.Errorf("caching frame result: %w", err)
		}
	}
	return nil
}

// Last returns the latest successfully processed frame, or nil
func (rt *ResultTracker) Last() *FrameResult {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.last
}

// Status returns the current counters
func (rt *ResultTracker) Status() TrackerStatus {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	s := TrackerStatus{
		Processed: rt.processed,
		Skipped:   rt.skipped,
		Failed:    rt.failed,
		LastError: rt.lastError,
		Updated:   rt.updated,
	}
	if rt.last != nil {
		s.FrameID = rt.last.FrameID
	}
	return s
}

// Stats returns the timing statistics the tracker reports
func (rt *ResultTracker) Stats() *TimingStats {
	return rt.stats
}

// SaveFrameResult writes a FrameResult to disk as JSON.
func SaveFrameResult(fr *FrameResult, path string) error {
	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal frame result: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write frame result: %w", err)
	}
	return nil
}

// LoadFrameResult reads a FrameResult from a JSON file on disk.
func LoadFrameResult(path string) (*FrameResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame result: %w", err)
	}
	var fr FrameResult
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("unmarshal frame result: %w", err)
	}
	return &fr, nil
}
