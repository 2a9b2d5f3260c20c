package field

import (
	"fmt"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

// StaggeredGrid stores one vector component per axis on the cell faces
// normal to that axis. Component i has shape (batch, R + e_i): along axis
// i it carries one more sample than there are cells.
type StaggeredGrid struct {
	be         backend.Backend
	cell       geom.GridCell
	components []backend.Tensor
	ext        extrapolation.Extrapolation
}

var (
	_ Sampled      = (*StaggeredGrid)(nil)
	_ GridSampler  = (*StaggeredGrid)(nil)
	_ PointSampler = (*StaggeredGrid)(nil)
)

// NewStaggeredGrid validates that there is one component per axis, that
// component i has the face shape of axis i and that all components share
// a batch size.
func NewStaggeredGrid(be backend.Backend, cell geom.GridCell, components []backend.Tensor, ext extrapolation.Extrapolation) (*StaggeredGrid, error) {
	if be == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}
	if ext == nil {
		ext = extrapolation.Zero
	}
	rank := cell.Rank()
	if len(components) != rank {
		return nil, fmt.Errorf("%w: %d components for rank-%d grid", ErrShapeMismatch, len(components), rank)
	}
	res := cell.Resolution()
	batch := -1
	for i, c := range components {
		want := faceShape(res, i)
		shape := c.Shape()
		if len(shape) != rank+1 || !backend.Shape(shape[1:]).Equal(want) {
			return nil, fmt.Errorf("%w: component %d has shape %v, want (batch, %v)", ErrShapeMismatch, i, shape, want)
		}
		if batch >= 0 && shape[0] != batch {
			return nil, fmt.Errorf("%w: component %d has batch %d, component 0 has %d", ErrShapeMismatch, i, shape[0], batch)
		}
		batch = shape[0]
	}
	return &StaggeredGrid{
		be:         be,
		cell:       cell,
		components: append([]backend.Tensor(nil), components...),
		ext:        ext,
	}, nil
}

func faceShape(res []int, axis int) backend.Shape {
	s := backend.Shape(append([]int(nil), res...))
	s[axis]++
	return s
}

// Elements implements Sampled.
func (s *StaggeredGrid) Elements() geom.Geometry { return s.cell }

// Extrapolation implements Sampled.
func (s *StaggeredGrid) Extrapolation() extrapolation.Extrapolation { return s.ext }

// Cell returns the grid geometry shared by all components.
func (s *StaggeredGrid) Cell() geom.GridCell { return s.cell }

// Component returns the face values normal to axis.
func (s *StaggeredGrid) Component(axis int) backend.Tensor { return s.components[axis] }

// Batch returns the batch size shared by the components.
func (s *StaggeredGrid) Batch() int { return s.components[0].Dim(0) }

// AtCenters averages the two faces bounding each cell along every axis
// and returns the result as a vector grid with one channel per axis.
func (s *StaggeredGrid) AtCenters() (*CenteredGrid, error) {
	rank := s.cell.Rank()
	res := s.cell.Resolution()
	cells := s.cell.ElementCount()
	batch := s.Batch()

	out := make([]float64, batch*cells*rank)
	idx := make([]int, rank)
	for axis, comp := range s.components {
		data := comp.Data()
		fs := faceShape(res, axis)
		faces := fs.Size()
		step := 1
		for a := rank - 1; a > axis; a-- {
			step *= fs[a]
		}
		for b := 0; b < batch; b++ {
			for c := 0; c < cells; c++ {
				s.cell.Unravel(c, idx)
				lo := b*faces + ravel(fs, idx)
				out[(b*cells+c)*rank+axis] = 0.5 * (data[lo] + data[lo+step])
			}
		}
	}
	shape := append(append([]int{batch}, res...), rank)
	values, err := backend.New(shape, out)
	if err != nil {
		return nil, err
	}
	return NewCenteredGrid(s.be, s.cell, values, s.ext)
}

func ravel(shape backend.Shape, idx []int) int {
	flat := 0
	for a, i := range idx {
		flat = flat*shape[a] + i
	}
	return flat
}

// SampleAt implements Field.
func (s *StaggeredGrid) SampleAt(target geom.Geometry, reduceChannels bool) (backend.Tensor, error) {
	return SampleAt(s, target, reduceChannels)
}

// SampleGrid resamples the centred values onto target.
func (s *StaggeredGrid) SampleGrid(target geom.GridCell) (*CenteredGrid, error) {
	centered, err := s.AtCenters()
	if err != nil {
		return nil, err
	}
	return centered.SampleGrid(target)
}

// SamplePoints returns (batch, count, rank) vectors. With reduceChannels
// each component is interpolated on its own face lattice instead of on
// the centred grid.
func (s *StaggeredGrid) SamplePoints(points geom.PointSet, reduceChannels bool) (backend.Tensor, error) {
	if !reduceChannels {
		centered, err := s.AtCenters()
		if err != nil {
			return backend.Tensor{}, err
		}
		return centered.SamplePoints(points, false)
	}
	rank := s.cell.Rank()
	if points.Rank() != rank {
		return backend.Tensor{}, fmt.Errorf("%w: rank-%d points for rank-%d grid", ErrShapeMismatch, points.Rank(), rank)
	}
	batch, err := jointBatch(s.Batch(), points.Batch())
	if err != nil {
		return backend.Tensor{}, err
	}
	n := points.ElementCount()
	pos := points.Positions()
	out := make([]backend.Tensor, batch)
	for b := 0; b < batch; b++ {
		bp := pos.Index(pick(b, pos.Dim(0)))
		vec := make([]float64, n*rank)
		for axis, comp := range s.components {
			data, err := comp.Index(pick(b, comp.Dim(0))).Reshape(append(faceShape(s.cell.Resolution(), axis), 1)...)
			if err != nil {
				return backend.Tensor{}, err
			}
			v, err := faceLattice(data, s.cell, axis).sample(s.be, bp, s.ext)
			if err != nil {
				return backend.Tensor{}, err
			}
			for i := 0; i < n; i++ {
				vec[i*rank+axis] = v.Flat(i)
			}
		}
		if out[b], err = backend.New(backend.Shape{n, rank}, vec); err != nil {
			return backend.Tensor{}, err
		}
	}
	return s.be.Stack(out)
}

func (s *StaggeredGrid) String() string {
	return fmt.Sprintf("StaggeredGrid[%d components on %v, %s]", len(s.components), s.cell, s.ext.Name())
}
