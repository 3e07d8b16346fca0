package surface

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// SpatialIndex answers nearest-vertex queries in the XY plane over the
// original 3D vertices of one polygon (shell and holes). It is built once per
// polygon and never updated.
type SpatialIndex struct {
	tree *kdtree.Tree
	size int
}

// NewSpatialIndex indexes every finite vertex of shell and holes by (x, y).
func NewSpatialIndex(shell Ring3D, holes []Ring3D) *SpatialIndex {
	n := len(shell)
	for _, h := range holes {
		n += len(h)
	}
	verts := make(vertices, 0, n)
	for _, p := range shell {
		if finite(p) {
			verts = append(verts, vertex(p))
		}
	}
	for _, h := range holes {
		for _, p := range h {
			if finite(p) {
				verts = append(verts, vertex(p))
			}
		}
	}
	idx := &SpatialIndex{size: len(verts)}
	if len(verts) > 0 {
		idx.tree = kdtree.New(verts, false)
	}
	return idx
}

// Len returns the number of indexed vertices.
func (s *SpatialIndex) Len() int {
	if s == nil {
		return 0
	}
	return s.size
}

// Nearest returns the indexed vertex closest to (x, y). ok is false when the
// index is empty.
func (s *SpatialIndex) Nearest(x, y float64) (p r3.Vector, ok bool) {
	if s == nil || s.tree == nil {
		return r3.Vector{}, false
	}
	got, _ := s.tree.Nearest(vertex{X: x, Y: y})
	if got == nil {
		return r3.Vector{}, false
	}
	return r3.Vector(got.(vertex)), true
}

// vertex is a 3D point compared only on its X and Y coordinates.
type vertex r3.Vector

func (v vertex) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(vertex)
	if d == 0 {
		return v.X - q.X
	}
	return v.Y - q.Y
}

func (v vertex) Dims() int { return 2 }

func (v vertex) Distance(c kdtree.Comparable) float64 {
	q := c.(vertex)
	dx, dy := v.X-q.X, v.Y-q.Y
	return dx*dx + dy*dy
}

type vertices []vertex

func (v vertices) Index(i int) kdtree.Comparable         { return v[i] }
func (v vertices) Len() int                              { return len(v) }
func (v vertices) Slice(start, end int) kdtree.Interface { return v[start:end] }
func (v vertices) Pivot(d kdtree.Dim) int {
	return vertexPlane{vertices: v, dim: d}.pivot()
}

// vertexPlane sorts vertices along one dimension for median partitioning.
type vertexPlane struct {
	vertices
	dim kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	return p.vertices[i].Compare(p.vertices[j], p.dim) < 0
}

func (p vertexPlane) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertices: p.vertices[start:end], dim: p.dim}
}

func (p vertexPlane) pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
