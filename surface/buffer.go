package surface

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tdewolff/canvas"
)

// booleanMu serializes path boolean operations; the clipper records the
// inputs of its last run in package state.
var booleanMu sync.Mutex

// Buffer offsets a polygon by distance using mitred joins. A positive
// distance grows the shell and shrinks holes. A negative distance does the
// opposite and may split the polygon into several parts or erase it.
// Corners whose mitre would extend more than mitreLimit*|distance| from the
// vertex are bevelled. The input need not be valid; the output is.
//
// The offset is the union (growing) or difference (shrinking) of the polygon
// with the region swept by its edges: one band per edge plus a mitre or bevel
// wedge at each corner where neighbouring bands diverge.
func Buffer(p orb.Polygon, distance, mitreLimit float64) orb.MultiPolygon {
	if len(p) == 0 || len(openRing(p[0])) < 3 {
		return nil
	}
	if mitreLimit <= 0 {
		mitreLimit = DefaultMitreLimit
	}

	d := math.Abs(distance)
	grow := distance > 0

	var pieces canvas.Paths
	if distance != 0 {
		for i, ring := range p {
			pts := dedupe(openRing(ring))
			if len(pts) < 3 || signedArea(pts) == 0 {
				if i == 0 {
					return nil
				}
				continue
			}
			// Material on the left: shell counter-clockwise, holes clockwise.
			if (i == 0) != (signedArea(pts) > 0) {
				reverse(pts)
			}
			pieces = append(pieces, ringPieces(pts, d, grow, mitreLimit)...)
		}
	}

	booleanMu.Lock()
	defer booleanMu.Unlock()

	subject := polygonPaths(p).Settle(canvas.Positive)
	switch {
	case len(pieces) == 0:
		return toMultiPolygon(subject)
	case grow:
		return toMultiPolygon(subject.Or(pieces))
	default:
		return toMultiPolygon(subject.Not(pieces))
	}
}

// ringPieces returns the edge bands and corner wedges swept by offsetting one
// ring. With grow set they lie outside the material, otherwise inside it.
// Every piece is a separate counter-clockwise path.
func ringPieces(pts []orb.Point, d float64, grow bool, mitreLimit float64) canvas.Paths {
	n := len(pts)
	side := -1.0 // right of the edge, away from the material
	if !grow {
		side = 1.0
	}

	normals := make([]orb.Point, n)
	var pieces canvas.Paths

	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		dx, dy := b[0]-a[0], b[1]-a[1]
		length := math.Hypot(dx, dy)
		tx, ty := dx/length, dy/length
		nx, ny := -ty*side, tx*side
		normals[i] = orb.Point{nx, ny}

		b1 := orb.Point{b[0] + nx*d, b[1] + ny*d}
		a1 := orb.Point{a[0] + nx*d, a[1] + ny*d}
		pieces = appendPiece(pieces, a, b, b1, a1)
	}

	// Corners where the offset edges diverge need a wedge to close the gap:
	// convex corners when growing, reflex corners when shrinking.
	for i := 0; i < n; i++ {
		in := (i - 1 + n) % n
		n1, n2 := normals[in], normals[i]
		e1 := orb.Point{pts[i][0] - pts[in][0], pts[i][1] - pts[in][1]}
		e2 := orb.Point{pts[(i+1)%n][0] - pts[i][0], pts[(i+1)%n][1] - pts[i][1]}
		turn := e1[0]*e2[1] - e1[1]*e2[0]
		if grow && turn <= 0 || !grow && turn >= 0 {
			continue
		}

		v := pts[i]
		p1 := orb.Point{v[0] + n1[0]*d, v[1] + n1[1]*d}
		p2 := orb.Point{v[0] + n2[0]*d, v[1] + n2[1]*d}
		cos := n1[0]*n2[0] + n1[1]*n2[1]
		if 1+cos > 1e-12 && math.Sqrt(2/(1+cos)) <= mitreLimit {
			scale := d / (1 + cos)
			m := orb.Point{v[0] + (n1[0]+n2[0])*scale, v[1] + (n1[1]+n2[1])*scale}
			pieces = appendPiece(pieces, v, p1, m, p2)
		} else {
			pieces = appendPiece(pieces, v, p1, p2)
		}
	}
	return pieces
}

// appendPiece adds the closed path through pts, oriented counter-clockwise so
// that overlapping pieces add up under the non-zero fill rule. Pieces without
// area are dropped.
func appendPiece(pieces canvas.Paths, pts ...orb.Point) canvas.Paths {
	area := signedArea(pts)
	if area == 0 {
		return pieces
	}
	if area < 0 {
		reverse(pts)
	}
	return append(pieces, ringPath(pts))
}

func ringPath(pts []orb.Point) *canvas.Path {
	path := &canvas.Path{}
	path.MoveTo(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		path.LineTo(pt[0], pt[1])
	}
	path.Close()
	return path
}

// polygonPaths converts p to one path per ring, the shell counter-clockwise
// and holes clockwise, so a hole cancels the shell under the positive fill
// rule.
func polygonPaths(p orb.Polygon) canvas.Paths {
	paths := make(canvas.Paths, 0, len(p))
	for i, ring := range p {
		pts := dedupe(openRing(ring))
		if len(pts) < 3 || signedArea(pts) == 0 {
			continue
		}
		if (i == 0) != (signedArea(pts) > 0) {
			reverse(pts)
		}
		paths = append(paths, ringPath(pts))
	}
	return paths
}

// toMultiPolygon converts the result of a path boolean operation, one path
// per filled region with its holes as further subpaths, into polygons with
// counter-clockwise shells and clockwise holes. Rings without area are
// dropped, and a region whose shell has none is dropped with its holes.
func toMultiPolygon(paths canvas.Paths) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, path := range paths {
		var poly orb.Polygon
		for j, sub := range path.Split() {
			ring := pathRing(sub)
			if len(ring) < 4 || planar.Area(ring) == 0 {
				if j == 0 {
					break
				}
				continue
			}
			want := orb.CW
			if j == 0 {
				want = orb.CCW
			}
			if ring.Orientation() != want {
				ring.Reverse()
			}
			poly = append(poly, ring)
		}
		if len(poly) > 0 {
			mp = append(mp, poly)
		}
	}
	return mp
}

// pathRing returns the vertices of one closed subpath as a closed ring.
func pathRing(sub *canvas.Path) orb.Ring {
	coords := sub.Coords()
	pts := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, orb.Point{c.X, c.Y})
	}
	pts = dropCollinear(dedupe(openRing(orb.Ring(pts))))
	return closeRing(orb.Ring(pts))
}

// collinearTolerance bounds the sine of the turn at a vertex that is treated
// as straight. It is well above the clipper's snapping noise.
const collinearTolerance = 1e-7

// dropCollinear removes vertices where the ring continues straight on.
func dropCollinear(pts []orb.Point) []orb.Point {
	for removed := true; removed && len(pts) > 3; {
		removed = false
		for i := 0; i < len(pts) && len(pts) > 3; i++ {
			prev, next := pts[(i-1+len(pts))%len(pts)], pts[(i+1)%len(pts)]
			ax, ay := pts[i][0]-prev[0], pts[i][1]-prev[1]
			bx, by := next[0]-pts[i][0], next[1]-pts[i][1]
			cross := ax*by - ay*bx
			dot := ax*bx + ay*by
			if dot > 0 && math.Abs(cross) <= collinearTolerance*math.Hypot(ax, ay)*math.Hypot(bx, by) {
				pts = append(pts[:i], pts[i+1:]...)
				removed = true
				i--
			}
		}
	}
	return pts
}

// dedupe drops consecutive repeated vertices, including a last vertex equal
// to the first.
func dedupe(pts []orb.Point) []orb.Point {
	out := pts[:0]
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0].Equal(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

// openRing returns the ring's vertices without the closing duplicate.
func openRing(r orb.Ring) []orb.Point {
	pts := []orb.Point(r)
	if len(pts) > 1 && pts[0].Equal(pts[len(pts)-1]) {
		pts = pts[:len(pts)-1]
	}
	return append([]orb.Point(nil), pts...)
}

// signedArea is positive for counter-clockwise vertex order.
func signedArea(pts []orb.Point) float64 {
	sum := 0.0
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		sum += a[0]*b[1] - b[0]*a[1]
	}
	return sum / 2
}

func reverse(pts []orb.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
