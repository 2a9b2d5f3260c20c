package field

import (
	"fmt"
	"time"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
)

// Scatter rasterizes the cloud onto cell.
//
// Each element goes to the cell whose centre is nearest to it. Elements
// outside the closed box are dropped and reported on the diag stream.
// Elements sharing a cell are reduced as a group, summed when
// addOverlapping is set and averaged otherwise, so the result does not
// depend on element order. Empty cells are zero.
func (p *PointCloud) Scatter(cell geom.GridCell) (*CenteredGrid, error) {
	start := time.Now()
	if p.points.Rank() != cell.Rank() {
		return nil, fmt.Errorf("%w: rank-%d points scattered onto rank-%d grid", ErrShapeMismatch, p.points.Rank(), cell.Rank())
	}
	mode := backend.CombineMean
	if p.addOverlapping {
		mode = backend.CombineSum
	}
	res := cell.Resolution()
	channels := p.Channels()
	cellShape := append(append([]int(nil), res...), channels)
	pos := p.points.Positions()

	batch := p.Batch()
	grids := make([]backend.Tensor, batch)
	total, dropped := 0, 0
	for b := 0; b < batch; b++ {
		indices, nDropped, err := p.cellIndices(pos.Index(pick(b, pos.Dim(0))), cell)
		if err != nil {
			return nil, err
		}
		reduced, err := p.be.Scatter(indices, p.valuesAt(b), cell.ElementCount(), mode)
		if err != nil {
			return nil, fmt.Errorf("scatter batch %d: %w", b, err)
		}
		if grids[b], err = reduced.Reshape(cellShape...); err != nil {
			return nil, err
		}
		total += len(indices)
		dropped += nDropped
	}

	dense, err := p.be.Stack(grids)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		monitoring.Diagf("scatter: dropped %d of %d points outside %v", dropped, total, cell.Bounds())
	}
	monitoring.ObserveScatter(total, dropped, time.Since(start))
	return NewCenteredGrid(p.be, cell, dense, p.ext)
}

// cellIndices maps (count, rank) positions to flat cell indices, -1 for
// positions outside the grid.
func (p *PointCloud) cellIndices(positions backend.Tensor, cell geom.GridCell) ([]int, int, error) {
	n, rank := positions.Dim(0), positions.Dim(1)
	res := cell.Resolution()
	box := cell.Bounds()
	pos := positions.Data()

	scaled := make([]float64, n*rank)
	for i := 0; i < n; i++ {
		loc := box.GlobalToLocal(pos[i*rank : (i+1)*rank])
		for a := range loc {
			scaled[i*rank+a] = loc[a] * float64(res[a])
		}
	}
	st, err := backend.New(backend.Shape{n, rank}, scaled)
	if err != nil {
		return nil, 0, err
	}
	raw := p.be.ToInt(p.be.Floor(st))

	indices := make([]int, n)
	idx := make([]int, rank)
	dropped := 0
	for i := range indices {
		for a := range idx {
			idx[a] = raw[i*rank+a]
			// The upper face belongs to the last cell.
			if idx[a] == res[a] && scaled[i*rank+a] == float64(res[a]) {
				idx[a] = res[a] - 1
			}
		}
		indices[i] = cell.Ravel(idx)
		if indices[i] < 0 {
			dropped++
		}
	}
	return indices, dropped, nil
}
