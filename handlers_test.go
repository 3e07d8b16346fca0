package main

import (
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/surfacemesh/surface"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func testFrameResult() *surface.FrameResult {
	ground := surface.Polygon3D{Exterior: surface.Ring3D{
		{X: -1, Y: 1.5, Z: 1}, {X: 1, Y: 1.5, Z: 1}, {X: 1, Y: 1.5, Z: 3}, {X: -1, Y: 1.5, Z: 3},
	}}
	hole := surface.Polygon3D{Exterior: surface.Ring3D{
		{X: -0.2, Y: 1.5, Z: 1.8}, {X: 0.2, Y: 1.5, Z: 1.8}, {X: 0, Y: 1.5, Z: 2.2},
	}}
	return &surface.FrameResult{
		FrameID: "frame-0007",
		Clusters: []*surface.Result{{
			Planes:       []surface.Plane{{Polygon: ground, ZValue: -1.5}},
			Obstacles:    []surface.Obstacle{{Polygon: hole, ZValue: -1.5}},
			PlaneIndices: []int{0},
		}},
		Timings: map[string]float64{"frame": 1.25},
	}
}

func emptyTracker() *surface.ResultTracker {
	return surface.NewResultTracker(surface.NewTimingStats())
}

func populatedTracker(t *testing.T) *surface.ResultTracker {
	t.Helper()
	stats := surface.NewTimingStats()
	stats.Record(map[string]float64{"frame": 2, "total": 1})
	stats.Record(map[string]float64{"frame": 4, "total": 3})
	tracker := surface.NewResultTracker(stats)
	if err := tracker.Update(testFrameResult(), nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return tracker
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealth_NoResult(t *testing.T) {
	handler := newHTTPServer(emptyTracker(), surface.ProjectTopDown, zap.NewNop())
	w := get(t, handler, "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("/health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Status    string `json:"status"`
		HasResult bool   `json:"hasResult"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.HasResult {
		t.Error("hasResult = true, want false before any frame")
	}
}

func TestHealth_WithResult(t *testing.T) {
	tracker := populatedTracker(t)
	_ = tracker.Update(nil, errors.New("bad frame"))
	handler := newHTTPServer(tracker, surface.ProjectTopDown, zap.NewNop())
	w := get(t, handler, "/health")

	var body struct {
		HasResult bool                  `json:"hasResult"`
		Tracker   surface.TrackerStatus `json:"tracker"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /health response: %v", err)
	}
	if !body.HasResult {
		t.Error("hasResult = false, want true")
	}
	if body.Tracker.Processed != 1 || body.Tracker.Failed != 1 {
		t.Errorf("tracker = %+v, want 1 processed and 1 failed", body.Tracker)
	}
	if body.Tracker.FrameID != "frame-0007" {
		t.Errorf("frameId = %q, want frame-0007", body.Tracker.FrameID)
	}
}

// ---------------------------------------------------------------------------
// Result endpoints
// ---------------------------------------------------------------------------

func TestEndpoints_NoResult_503(t *testing.T) {
	handler := newHTTPServer(emptyTracker(), surface.ProjectTopDown, zap.NewNop())

	for _, path := range []string{"/planes.geojson", "/frame.svg", "/frame.png"} {
		t.Run(path, func(t *testing.T) {
			w := get(t, handler, path)
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("%s status = %d, want %d", path, w.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

func TestPlanesGeoJSON(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), surface.ProjectTopDown, zap.NewNop())
	w := get(t, handler, "/planes.geojson")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q, want application/geo+json", ct)
	}

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("invalid GeoJSON: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("len(Features) = %d, want 2", len(fc.Features))
	}
	if kind := fc.Features[1].Properties.MustString("kind"); kind != surface.KindObstacle {
		t.Errorf("second feature kind = %q, want %q", kind, surface.KindObstacle)
	}
	// Top-down projection: the ground spans z from 1 to 3.
	b := fc.Features[0].Geometry.Bound()
	if b.Min[1] != 1 || b.Max[1] != 3 {
		t.Errorf("ground bound = %v, want z range [1, 3]", b)
	}
}

func TestPlanesGeoJSON_Projection(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), surface.ProjectXY, zap.NewNop())
	w := get(t, handler, "/planes.geojson")

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("invalid GeoJSON: %v", err)
	}
	b := fc.Features[0].Geometry.Bound()
	if b.Min[1] != 1.5 || b.Max[1] != 1.5 {
		t.Errorf("ground bound = %v, want constant y of 1.5", b)
	}
}

func TestFrameSVG(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), surface.ProjectTopDown, zap.NewNop())
	w := get(t, handler, "/frame.svg")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if !strings.Contains(w.Body.String(), "<svg") {
		t.Error("body is not an SVG document")
	}
}

func TestFramePNG(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), surface.ProjectTopDown, zap.NewNop())
	w := get(t, handler, "/frame.png")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Errorf("invalid PNG: %v", err)
	}
}

// ---------------------------------------------------------------------------
// /timings
// ---------------------------------------------------------------------------

func TestTimings(t *testing.T) {
	handler := newHTTPServer(populatedTracker(t), surface.ProjectTopDown, zap.NewNop())
	w := get(t, handler, "/timings")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body struct {
		Frames int                `json:"frames"`
		Mean   map[string]float64 `json:"mean"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /timings response: %v", err)
	}
	if body.Frames != 2 {
		t.Errorf("frames = %d, want 2", body.Frames)
	}
	if body.Mean["frame"] != 3 || body.Mean["total"] != 2 {
		t.Errorf("mean = %v, want frame 3 and total 2", body.Mean)
	}
}

func TestUnknownPath_404(t *testing.T) {
	handler := newHTTPServer(emptyTracker(), surface.ProjectTopDown, zap.NewNop())
	if w := get(t, handler, "/floorplan.png"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
