package surface

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
)

func TestResultRenderer_RenderToSVG(t *testing.T) {
	r := NewResultRenderer(sampleFrameResult())

	var buf bytes.Buffer
	if err := r.RenderToSVG(&buf); err != nil {
		t.Fatalf("Failed to render to SVG: %v", err)
	}

	svgContent := buf.String()
	if len(svgContent) == 0 {
		t.Fatal("SVG output is empty")
	}
	if !strings.Contains(svgContent, "<svg") {
		t.Errorf("Output does not contain <svg tag")
	}
	// Background, grid lines, two planes and one obstacle.
	if n := strings.Count(svgContent, "<path"); n < 4 {
		t.Errorf("expected at least 4 path elements, got %d", n)
	}
}

func TestResultRenderer_RenderToPNG(t *testing.T) {
	r := NewResultRenderer(sampleFrameResult())
	r.Resolution = canvas.DPMM(1)

	var buf bytes.Buffer
	if err := r.RenderToPNG(&buf); err != nil {
		t.Fatalf("Failed to render to PNG: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Failed to decode PNG: %v", err)
	}

	// Top-down extent is x in [-1, 2], z in [1, 3], plus 0.5m padding each side.
	bounds := img.Bounds()
	if bounds.Dx() != 400 || bounds.Dy() != 300 {
		t.Errorf("image size = %dx%d, want 400x300", bounds.Dx(), bounds.Dy())
	}
}

func TestResultRenderer_NoResult(t *testing.T) {
	r := NewResultRenderer(nil)

	var buf bytes.Buffer
	if err := r.RenderToSVG(&buf); err != nil {
		t.Fatalf("RenderToSVG with nil result: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("<svg")) {
		t.Error("expected an empty grid SVG")
	}

	buf.Reset()
	r.Resolution = canvas.DPMM(1)
	if err := r.RenderToPNG(&buf); err != nil {
		t.Fatalf("RenderToPNG with nil result: %v", err)
	}
}

func TestResultRenderer_Bounds(t *testing.T) {
	tests := []struct {
		name       string
		result     *FrameResult
		projection Projection
		want       orb.Bound
	}{
		{"nil result", nil, nil, orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}},
		{"no planes", &FrameResult{}, nil, orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}},
		{"top down", sampleFrameResult(), ProjectTopDown, orb.Bound{Min: orb.Point{-1, 1}, Max: orb.Point{2, 3}}},
		{"xy", sampleFrameResult(), ProjectXY, orb.Bound{Min: orb.Point{-1, 1.35}, Max: orb.Point{2, 1.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResultRenderer(tt.result)
			r.Projection = tt.projection
			if got := r.bounds(); got != tt.want {
				t.Errorf("bounds() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNrgbaToRGBA(t *testing.T) {
	tests := []struct {
		name string
		in   color.NRGBA
		want color.RGBA
	}{
		{"opaque", color.NRGBA{R: 10, G: 20, B: 30, A: 255}, color.RGBA{R: 10, G: 20, B: 30, A: 255}},
		{"transparent", color.NRGBA{R: 255, G: 255, B: 255, A: 0}, color.RGBA{}},
		{"half", color.NRGBA{R: 255, G: 0, B: 100, A: 128}, color.RGBA{R: 128, G: 0, B: 50, A: 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nrgbaToRGBA(tt.in); got != tt.want {
				t.Errorf("nrgbaToRGBA(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
