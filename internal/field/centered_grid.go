package field

import (
	"fmt"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

// CenteredGrid holds one value per cell of a regular grid, sampled at the
// cell centres.
type CenteredGrid struct {
	SampledField
	cell geom.GridCell
}

var (
	_ Sampled      = (*CenteredGrid)(nil)
	_ GridSampler  = (*CenteredGrid)(nil)
	_ PointSampler = (*CenteredGrid)(nil)
)

// NewCenteredGrid wraps values of shape (batch, resolution..., channels),
// or a single broadcast value, as a grid field over cell.
func NewCenteredGrid(be backend.Backend, cell geom.GridCell, values backend.Tensor, ext extrapolation.Extrapolation) (*CenteredGrid, error) {
	if !values.IsScalar() {
		res := cell.Resolution()
		shape := values.Shape()
		if len(shape) != len(res)+2 {
			return nil, fmt.Errorf("%w: grid values %v for resolution %v", ErrShapeMismatch, shape, res)
		}
		for a, r := range res {
			if shape[a+1] != r {
				return nil, fmt.Errorf("%w: grid values %v for resolution %v", ErrShapeMismatch, shape, res)
			}
		}
	}
	sf, err := newSampledField(be, cell, values, ext)
	if err != nil {
		return nil, err
	}
	return &CenteredGrid{SampledField: sf, cell: cell}, nil
}

// Cell returns the grid geometry.
func (g *CenteredGrid) Cell() geom.GridCell { return g.cell }

// Dense returns the values as a full (batch, resolution..., channels)
// tensor with any scalar broadcast expanded.
func (g *CenteredGrid) Dense() backend.Tensor {
	if !g.values.IsScalar() {
		return g.values
	}
	shape := append([]int{1}, g.cell.Resolution()...)
	return backend.Full(g.values.Flat(0), append(shape, 1)...)
}

// batchLattice returns batch entry b as a (resolution..., channels) tensor.
func (g *CenteredGrid) batchLattice(b int) lattice {
	dense := g.Dense()
	return centerLattice(dense.Index(pick(b, dense.Dim(0))), g.cell)
}

// SampleAt implements Field.
func (g *CenteredGrid) SampleAt(target geom.Geometry, reduceChannels bool) (backend.Tensor, error) {
	return SampleAt(g, target, reduceChannels)
}

// SampleGrid returns g itself when target matches its grid, otherwise the
// grid interpolated at the target cell centres.
func (g *CenteredGrid) SampleGrid(target geom.GridCell) (*CenteredGrid, error) {
	if target.Equal(g.cell) {
		return g, nil
	}
	if target.Rank() != g.cell.Rank() {
		return nil, fmt.Errorf("%w: rank-%d grid sampled on rank-%d grid", ErrShapeMismatch, g.cell.Rank(), target.Rank())
	}
	vals, err := g.SamplePoints(target.Centers(), false)
	if err != nil {
		return nil, err
	}
	shape := append([]int{vals.Dim(0)}, target.Resolution()...)
	dense, err := vals.Reshape(append(shape, vals.Dim(-1))...)
	if err != nil {
		return nil, err
	}
	return NewCenteredGrid(g.be, target, dense, g.ext)
}

// SamplePoints interpolates the grid multilinearly between cell centres.
// The result has shape (batch, count, channels).
func (g *CenteredGrid) SamplePoints(points geom.PointSet, _ bool) (backend.Tensor, error) {
	if points.Rank() != g.cell.Rank() {
		return backend.Tensor{}, fmt.Errorf("%w: rank-%d points for rank-%d grid", ErrShapeMismatch, points.Rank(), g.cell.Rank())
	}
	batch, err := jointBatch(g.Batch(), points.Batch())
	if err != nil {
		return backend.Tensor{}, err
	}
	pos := points.Positions()
	out := make([]backend.Tensor, batch)
	for b := 0; b < batch; b++ {
		v, err := g.batchLattice(b).sample(g.be, pos.Index(pick(b, pos.Dim(0))), g.ext)
		if err != nil {
			return backend.Tensor{}, err
		}
		out[b] = v
	}
	return g.be.Stack(out)
}

func (g *CenteredGrid) String() string {
	return fmt.Sprintf("CenteredGrid[%v on %v, %s]", g.values, g.cell, g.ext.Name())
}
