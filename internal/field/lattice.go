package field

import (
	"fmt"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

// lattice is one batch entry of regularly spaced samples over a box.
// Sample k along axis a sits at local coordinate (k - offset[a]) / res[a],
// so offset 0.5 places samples at cell centres and 0 on cell faces.
type lattice struct {
	data   backend.Tensor // (spatial..., channels)
	box    geom.Box
	res    []int
	offset []float64
}

func centerLattice(data backend.Tensor, cell geom.GridCell) lattice {
	off := make([]float64, cell.Rank())
	for a := range off {
		off[a] = 0.5
	}
	return lattice{data: data, box: cell.Bounds(), res: cell.Resolution(), offset: off}
}

func faceLattice(data backend.Tensor, cell geom.GridCell, axis int) lattice {
	l := centerLattice(data, cell)
	l.offset[axis] = 0
	return l
}

func (l lattice) indexCoords(p []float64) []float64 {
	loc := l.box.GlobalToLocal(p)
	for a := range loc {
		loc[a] = loc[a]*float64(l.res[a]) - l.offset[a]
	}
	return loc
}

// sample evaluates the lattice at (count, rank) global positions. Points
// outside the box resolve through ext.
func (l lattice) sample(be backend.Backend, positions backend.Tensor, ext extrapolation.Extrapolation) (backend.Tensor, error) {
	if positions.Rank() != 2 || positions.Dim(1) != l.box.Rank() {
		return backend.Tensor{}, fmt.Errorf("%w: positions %v for rank-%d box", ErrShapeMismatch, positions.Shape(), l.box.Rank())
	}
	n, rank := positions.Dim(0), positions.Dim(1)
	channels := l.data.Dim(-1)
	pos := positions.Data()

	data, shift := l.data, 0.0
	if ext == extrapolation.Periodic {
		data, shift = l.wrapped(), 1
	}

	coords := make([]float64, 0, n*rank)
	rows := make([]int, 0, n)
	fixed := make(map[int][]float64)
	for i := 0; i < n; i++ {
		p := pos[i*rank : (i+1)*rank]
		if !l.box.Contains(p) {
			r := ext.Outside(p, l.box, channels)
			if !r.Remapped() {
				fixed[i] = r.Value
				continue
			}
			p = r.Point
		}
		for _, c := range l.indexCoords(p) {
			coords = append(coords, c+shift)
		}
		rows = append(rows, i)
	}

	out := make([]float64, n*channels)
	if len(rows) > 0 {
		ct, err := backend.New(backend.Shape{len(rows), rank}, coords)
		if err != nil {
			return backend.Tensor{}, err
		}
		vals, err := be.Multilinear(data, ct)
		if err != nil {
			return backend.Tensor{}, fmt.Errorf("interpolate: %w", err)
		}
		flat := vals.Data()
		for k, i := range rows {
			copy(out[i*channels:(i+1)*channels], flat[k*channels:(k+1)*channels])
		}
	}
	for i, v := range fixed {
		copy(out[i*channels:(i+1)*channels], v)
	}
	return backend.New(backend.Shape{n, channels}, out)
}

// wrapped returns the lattice data with one ghost sample on both ends of
// every axis, taken from the opposite side of a period of res[a] cells.
// Index coordinates into it are shifted by one.
func (l lattice) wrapped() backend.Tensor {
	rank := len(l.res)
	shape := l.data.Shape()
	channels := shape[rank]
	padded := shape.Clone()
	for a := 0; a < rank; a++ {
		padded[a] += 2
	}

	src := l.data.Data()
	srcStrides := rowStrides(shape[:rank])
	out := make([]float64, padded.Size())
	idx := make([]int, rank)
	for k := 0; k < len(out)/channels; k++ {
		rem, off := k, 0
		for a := rank - 1; a >= 0; a-- {
			idx[a] = rem % padded[a]
			rem /= padded[a]
		}
		for a := 0; a < rank; a++ {
			j := idx[a] - 1
			if j < 0 || j >= shape[a] {
				j = ((j % l.res[a]) + l.res[a]) % l.res[a]
			}
			off += j * srcStrides[a]
		}
		copy(out[k*channels:(k+1)*channels], src[off*channels:(off+1)*channels])
	}
	return backend.MustNew(padded, out)
}

func rowStrides(dims []int) []int {
	strides := make([]int, len(dims))
	acc := 1
	for a := len(dims) - 1; a >= 0; a-- {
		strides[a] = acc
		acc *= dims[a]
	}
	return strides
}

// jointBatch resolves the batch size of two broadcastable operands.
func jointBatch(a, b int) (int, error) {
	switch {
	case a == b, b == 1:
		return a, nil
	case a == 1:
		return b, nil
	}
	return 0, fmt.Errorf("%w: batch sizes %d and %d", ErrShapeMismatch, a, b)
}

func pick(b, size int) int {
	if size == 1 {
		return 0
	}
	return b
}
