package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
// This is needed for the canvas library which expects premultiplied RGBA
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

// ResultRenderer draws a frame result from above: planes filled green,
// obstacles red, on a metric grid
type ResultRenderer struct {
	Result        *FrameResult
	Projection    Projection
	PlaneColor    color.NRGBA
	ObstacleColor color.NRGBA
	Scale         float64           // Canvas millimetres per metre
	Padding       float64           // Padding in metres
	GridSpacing   float64           // Grid line spacing in metres; 0 disables
	Resolution    canvas.Resolution // Resolution for PNG output
	Caption       bool              // Draw frame ID and counts on PNG output
}

// NewResultRenderer creates a renderer with default settings
func NewResultRenderer(fr *FrameResult) *ResultRenderer {
	return &ResultRenderer{
		Result:        fr,
		Projection:    ProjectTopDown,
		PlaneColor:    color.NRGBA{R: 46, G: 160, B: 67, A: 180},
		ObstacleColor: color.NRGBA{R: 215, G: 38, B: 61, A: 220},
		Scale:         100.0, // 1m = 10cm of canvas
		Padding:       0.5,
		GridSpacing:   1.0,
		Resolution:    canvas.DPMM(4),
		Caption:       true,
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the result as an SVG to the provided writer
func (r *ResultRenderer) RenderToSVG(w io.Writer) error {
	b := r.bounds()
	width, height := r.canvasSize(b)

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, b, width, height)
	if err := svgRenderer.Close(); err != nil {
		return fmt.Errorf("closing svg: %w", err)
	}
	return nil
}

// RenderToPNG writes the result as a PNG to the provided writer
func (r *ResultRenderer) RenderToPNG(w io.Writer) error {
	b := r.bounds()
	width, height := r.canvasSize(b)

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, b, width, height)

	if r.Caption && r.Result != nil {
		s := Summarize(r.Result)
		caption := fmt.Sprintf("frame %s: %d planes, %d obstacles", s.FrameID, s.Planes, s.Obstacles)
		drawText(rast, 8, 16, caption, color.RGBA{A: 255})
	}

	return png.Encode(w, rast)
}

func (r *ResultRenderer) canvasSize(b orb.Bound) (width, height float64) {
	width = (b.Max[0] - b.Min[0] + 2*r.Padding) * r.Scale
	height = (b.Max[1] - b.Min[1] + 2*r.Padding) * r.Scale
	return width, height
}

// renderToCanvas renders the result to a canvas renderer (shared logic for SVG and PNG)
func (r *ResultRenderer) renderToCanvas(renderer canvasRenderer, b orb.Bound, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(p orb.Point) (float64, float64) {
		return (p[0] - b.Min[0] + r.Padding) * r.Scale, (p[1] - b.Min[1] + r.Padding) * r.Scale
	}

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Lightgray}
		gridStyle.StrokeWidth = 0.3
		gridStyle.Dashes = []float64{2.0, 2.0}

		for x := math.Floor(b.Min[0]/r.GridSpacing) * r.GridSpacing; x <= b.Max[0]; x += r.GridSpacing {
			line := &canvas.Path{}
			line.MoveTo(toCanvas(orb.Point{x, b.Min[1] - r.Padding}))
			line.LineTo(toCanvas(orb.Point{x, b.Max[1] + r.Padding}))
			renderer.RenderPath(line, gridStyle, canvas.Identity)
		}
		for y := math.Floor(b.Min[1]/r.GridSpacing) * r.GridSpacing; y <= b.Max[1]; y += r.GridSpacing {
			line := &canvas.Path{}
			line.MoveTo(toCanvas(orb.Point{b.Min[0] - r.Padding, y}))
			line.LineTo(toCanvas(orb.Point{b.Max[0] + r.Padding, y}))
			renderer.RenderPath(line, gridStyle, canvas.Identity)
		}
	}

	if r.Result == nil {
		return
	}

	polygonPath := func(p Polygon3D) *canvas.Path {
		cp := &canvas.Path{}
		for _, ring := range PolygonToGeometry(p, r.projection()) {
			for i, pt := range ring {
				if i == 0 {
					cp.MoveTo(toCanvas(pt))
				} else {
					cp.LineTo(toCanvas(pt))
				}
			}
			cp.Close()
		}
		return cp
	}

	planeStyle := canvas.DefaultStyle
	planeStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(r.PlaneColor)}
	planeStyle.Stroke = canvas.Paint{Color: canvas.Darkgreen}
	planeStyle.StrokeWidth = 0.5
	for _, p := range r.Result.Planes() {
		renderer.RenderPath(polygonPath(p.Polygon), planeStyle, canvas.Identity)
	}

	obstacleStyle := canvas.DefaultStyle
	obstacleStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(r.ObstacleColor)}
	obstacleStyle.Stroke = canvas.Paint{Color: canvas.Darkred}
	obstacleStyle.StrokeWidth = 0.5
	for _, o := range r.Result.Obstacles() {
		renderer.RenderPath(polygonPath(o.Polygon), obstacleStyle, canvas.Identity)
	}
}

func (r *ResultRenderer) projection() Projection {
	if r.Projection == nil {
		return ProjectTopDown
	}
	return r.Projection
}

// bounds returns the projected extent of every plane, or a 2m square around
// the origin when there is nothing to draw.
func (r *ResultRenderer) bounds() orb.Bound {
	var b orb.Bound
	found := false
	if r.Result != nil {
		for _, p := range r.Result.Planes() {
			pb := PolygonToGeometry(p.Polygon, r.projection()).Bound()
			if !found {
				b, found = pb, true
			} else {
				b = b.Union(pb)
			}
		}
	}
	if !found {
		return orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}
	}
	return b
}

// drawText renders text onto an image at the specified position
func drawText(img *rasterizer.Rasterizer, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
