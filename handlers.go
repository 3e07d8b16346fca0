package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kwv/surfacemesh/surface"
	"go.uber.org/zap"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(tracker *surface.ResultTracker, projection surface.Projection, logger *zap.Logger) http.Handler {
	log := logger.Sugar()
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Errorf("[HTTP] Error encoding response: %v", err)
		}
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string                `json:"status"`
			Timestamp time.Time             `json:"timestamp"`
			HasResult bool                  `json:"hasResult"`
			Tracker   surface.TrackerStatus `json:"tracker"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasResult: tracker.Last() != nil,
			Tracker:   tracker.Status(),
		}
		writeJSON(w, status)
	})

	// Latest planes and obstacles as GeoJSON
	mux.HandleFunc("/planes.geojson", func(w http.ResponseWriter, r *http.Request) {
		result := tracker.Last()
		if result == nil {
			http.Error(w, "No frame processed yet", http.StatusServiceUnavailable)
			return
		}
		data, err := surface.ResultToFeatureCollection(result, projection).MarshalJSON()
		if err != nil {
			log.Errorf("[HTTP] Error marshaling GeoJSON: %v", err)
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})

	// Rendered views of the latest result
	render := func(contentType string, fn func(*surface.ResultRenderer, io.Writer) error) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			result := tracker.Last()
			if result == nil {
				http.Error(w, "No frame processed yet", http.StatusServiceUnavailable)
				return
			}
			renderer := surface.NewResultRenderer(result)
			renderer.Projection = projection

			// Render to a buffer first so a failure can still return an error status
			var buf bytes.Buffer
			if err := fn(renderer, &buf); err != nil {
				log.Errorf("[HTTP] Error rendering %s: %v", r.URL.Path, err)
				http.Error(w, "Failed to render", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write(buf.Bytes())
		}
	}
	mux.HandleFunc("/frame.svg", render("image/svg+xml", (*surface.ResultRenderer).RenderToSVG))
	mux.HandleFunc("/frame.png", render("image/png", (*surface.ResultRenderer).RenderToPNG))

	// Mean per-stage timings over all processed frames
	mux.HandleFunc("/timings", func(w http.ResponseWriter, r *http.Request) {
		stats := tracker.Stats()
		writeJSON(w, struct {
			Frames int                `json:"frames"`
			Mean   map[string]float64 `json:"mean"`
		}{
			Frames: stats.Frames(),
			Mean:   stats.Mean(),
		})
	})

	return mux
}
