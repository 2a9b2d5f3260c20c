// Package geom holds the geometry primitives fields are sampled on: axis
// aligned boxes, regular grids of cells, and batched point sets.
//
// The field core needs only two capabilities from a geometry: mapping a
// global point into the geometry's local frame, and reporting bounds and
// resolution for grid-shaped geometries.
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
)

// ErrInvalidGeometry is returned when a geometry cannot be constructed
// from its inputs.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Kind names a family of supports. Fields register how they rasterize
// onto each kind.
type Kind string

const (
	// KindGrid is a regular grid of cells (GridCell).
	KindGrid Kind = "grid"
	// KindPoints is an unordered set of points (PointSet).
	KindPoints Kind = "points"
)

// Geometry is a set of elements with positions in a rank-dimensional
// space.
type Geometry interface {
	Kind() Kind
	Rank() int
	// Batch is the size of the leading batch dimension, 1 when unbatched.
	Batch() int
	// ElementCount is the number of elements per batch entry.
	ElementCount() int
}

// Box is an axis-aligned box [Lower, Upper].
type Box struct {
	lower []float64
	upper []float64
}

// NewBox creates a box. Upper must exceed lower on every axis.
func NewBox(lower, upper []float64) (Box, error) {
	if len(lower) == 0 || len(lower) != len(upper) {
		return Box{}, fmt.Errorf("%w: box corners of rank %d and %d", ErrInvalidGeometry, len(lower), len(upper))
	}
	for a := range lower {
		if !(upper[a] > lower[a]) || math.IsInf(upper[a]-lower[a], 0) {
			return Box{}, fmt.Errorf("%w: box axis %d spans [%g, %g]", ErrInvalidGeometry, a, lower[a], upper[a])
		}
	}
	return Box{
		lower: append([]float64(nil), lower...),
		upper: append([]float64(nil), upper...),
	}, nil
}

// MustBox is NewBox for fixtures. It panics on error.
func MustBox(lower, upper []float64) Box {
	b, err := NewBox(lower, upper)
	if err != nil {
		panic(err)
	}
	return b
}

// Rank returns the number of axes.
func (b Box) Rank() int { return len(b.lower) }

// Lower returns a copy of the lower corner.
func (b Box) Lower() []float64 { return append([]float64(nil), b.lower...) }

// Upper returns a copy of the upper corner.
func (b Box) Upper() []float64 { return append([]float64(nil), b.upper...) }

// Size returns the extent along every axis.
func (b Box) Size() []float64 {
	s := make([]float64, len(b.lower))
	for a := range s {
		s[a] = b.upper[a] - b.lower[a]
	}
	return s
}

// Contains reports whether p lies inside the closed box. Points with a
// NaN coordinate are never inside.
func (b Box) Contains(p []float64) bool {
	if len(p) != len(b.lower) {
		return false
	}
	for a, v := range p {
		if !(v >= b.lower[a] && v <= b.upper[a]) {
			return false
		}
	}
	return true
}

// GlobalToLocal maps p into the box frame, where the box spans [0, 1] on
// every axis.
func (b Box) GlobalToLocal(p []float64) []float64 {
	l := make([]float64, len(b.lower))
	for a := range l {
		l[a] = (p[a] - b.lower[a]) / (b.upper[a] - b.lower[a])
	}
	return l
}

// LocalToGlobal is the inverse of GlobalToLocal.
func (b Box) LocalToGlobal(l []float64) []float64 {
	p := make([]float64, len(b.lower))
	for a := range p {
		p[a] = b.lower[a] + l[a]*(b.upper[a]-b.lower[a])
	}
	return p
}

// Equal reports whether both boxes have identical corners.
func (b Box) Equal(o Box) bool {
	if len(b.lower) != len(o.lower) {
		return false
	}
	for a := range b.lower {
		if b.lower[a] != o.lower[a] || b.upper[a] != o.upper[a] {
			return false
		}
	}
	return true
}

func (b Box) String() string {
	return fmt.Sprintf("Box%v..%v", b.lower, b.upper)
}

// GridCell is a regular grid of cells covering a box.
type GridCell struct {
	bounds     Box
	resolution []int
}

// NewGridCell creates a grid with resolution[a] cells along axis a.
func NewGridCell(bounds Box, resolution []int) (GridCell, error) {
	if len(resolution) != bounds.Rank() {
		return GridCell{}, fmt.Errorf("%w: resolution %v for rank-%d box", ErrInvalidGeometry, resolution, bounds.Rank())
	}
	for a, r := range resolution {
		if r <= 0 {
			return GridCell{}, fmt.Errorf("%w: resolution %d on axis %d", ErrInvalidGeometry, r, a)
		}
	}
	return GridCell{bounds: bounds, resolution: append([]int(nil), resolution...)}, nil
}

// MustGridCell is NewGridCell for fixtures. It panics on error.
func MustGridCell(bounds Box, resolution []int) GridCell {
	g, err := NewGridCell(bounds, resolution)
	if err != nil {
		panic(err)
	}
	return g
}

// Kind implements Geometry.
func (g GridCell) Kind() Kind { return KindGrid }

// Rank implements Geometry.
func (g GridCell) Rank() int { return len(g.resolution) }

// Batch implements Geometry. Grids carry no batch dimension.
func (g GridCell) Batch() int { return 1 }

// ElementCount implements Geometry.
func (g GridCell) ElementCount() int {
	n := 1
	for _, r := range g.resolution {
		n *= r
	}
	return n
}

// Bounds returns the box the grid covers.
func (g GridCell) Bounds() Box { return g.bounds }

// Resolution returns a copy of the per-axis cell counts.
func (g GridCell) Resolution() []int { return append([]int(nil), g.resolution...) }

// CellSize returns the extent of one cell along every axis.
func (g GridCell) CellSize() []float64 {
	s := g.bounds.Size()
	for a := range s {
		s[a] /= float64(g.resolution[a])
	}
	return s
}

// Center returns the global position of the centre of cell idx.
func (g GridCell) Center(idx []int) []float64 {
	l := make([]float64, len(idx))
	for a, i := range idx {
		l[a] = (float64(i) + 0.5) / float64(g.resolution[a])
	}
	return g.bounds.LocalToGlobal(l)
}

// Centers returns all cell centres in row-major order as a
// (1, cells, rank) point set.
func (g GridCell) Centers() PointSet {
	rank := g.Rank()
	count := g.ElementCount()
	data := make([]float64, 0, count*rank)
	idx := make([]int, rank)
	for flat := 0; flat < count; flat++ {
		g.Unravel(flat, idx)
		data = append(data, g.Center(idx)...)
	}
	ps, _ := NewPointSet(backend.MustNew(backend.Shape{1, count, rank}, data), 0)
	return ps
}

// Ravel returns the row-major flat index of idx, or -1 when idx falls
// outside the grid.
func (g GridCell) Ravel(idx []int) int {
	flat := 0
	for a, i := range idx {
		if i < 0 || i >= g.resolution[a] {
			return -1
		}
		flat = flat*g.resolution[a] + i
	}
	return flat
}

// Unravel writes the multi-index of flat into idx.
func (g GridCell) Unravel(flat int, idx []int) {
	for a := len(g.resolution) - 1; a >= 0; a-- {
		idx[a] = flat % g.resolution[a]
		flat /= g.resolution[a]
	}
}

// Equal reports whether both grids share bounds and resolution.
func (g GridCell) Equal(o GridCell) bool {
	if !g.bounds.Equal(o.bounds) || len(g.resolution) != len(o.resolution) {
		return false
	}
	for a := range g.resolution {
		if g.resolution[a] != o.resolution[a] {
			return false
		}
	}
	return true
}

func (g GridCell) String() string {
	return fmt.Sprintf("GridCell%v over %v", g.resolution, g.bounds)
}

// PointSet is a batch of unordered points, each with an optional radius.
type PointSet struct {
	positions backend.Tensor
	radius    float64
}

// NewPointSet wraps a (batch, count, rank) or (count, rank) positions
// tensor.
func NewPointSet(positions backend.Tensor, radius float64) (PointSet, error) {
	switch positions.Rank() {
	case 2:
		reshaped, err := positions.Reshape(1, positions.Dim(0), positions.Dim(1))
		if err != nil {
			return PointSet{}, err
		}
		positions = reshaped
	case 3:
	default:
		return PointSet{}, fmt.Errorf("%w: positions of shape %v, want (batch, count, rank)", ErrInvalidGeometry, positions.Shape())
	}
	if positions.Dim(2) < 1 || positions.Dim(0) < 1 {
		return PointSet{}, fmt.Errorf("%w: positions of shape %v", ErrInvalidGeometry, positions.Shape())
	}
	if radius < 0 || math.IsNaN(radius) {
		return PointSet{}, fmt.Errorf("%w: radius %g", ErrInvalidGeometry, radius)
	}
	return PointSet{positions: positions, radius: radius}, nil
}

// Kind implements Geometry.
func (p PointSet) Kind() Kind { return KindPoints }

// Rank implements Geometry.
func (p PointSet) Rank() int { return p.positions.Dim(2) }

// Batch implements Geometry.
func (p PointSet) Batch() int { return p.positions.Dim(0) }

// ElementCount implements Geometry.
func (p PointSet) ElementCount() int { return p.positions.Dim(1) }

// Positions returns the (batch, count, rank) positions tensor.
func (p PointSet) Positions() backend.Tensor { return p.positions }

// Radius returns the element extent, zero for pure points.
func (p PointSet) Radius() float64 { return p.radius }

// Point returns the position of point i in batch entry b.
func (p PointSet) Point(b, i int) []float64 {
	rank := p.Rank()
	out := make([]float64, rank)
	for a := range out {
		out[a] = p.positions.At(b, i, a)
	}
	return out
}

func (p PointSet) String() string {
	return fmt.Sprintf("PointSet(batch=%d, count=%d, rank=%d)", p.Batch(), p.ElementCount(), p.Rank())
}
