package field

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
)

// VecSquared returns the squared magnitude of f over its channels as a
// one-channel field of the same kind. Staggered grids are centred first.
func VecSquared(f Field) (Field, error) {
	switch v := f.(type) {
	case *CenteredGrid:
		sq, err := squaredChannels(v.Dense())
		if err != nil {
			return nil, err
		}
		return NewCenteredGrid(v.be, v.cell, sq, v.ext)
	case *StaggeredGrid:
		c, err := v.AtCenters()
		if err != nil {
			return nil, err
		}
		return VecSquared(c)
	case *PointCloud:
		if v.values.IsScalar() {
			x := v.values.Flat(0)
			return v.WithValues(backend.Scalar(x * x))
		}
		sq, err := squaredChannels(v.values)
		if err != nil {
			return nil, err
		}
		return v.WithValues(sq)
	}
	return nil, fmt.Errorf("%w: squared magnitude of %T", ErrUnsupportedGeometry, f)
}

// squaredChannels reduces the trailing channel axis to its squared norm.
func squaredChannels(t backend.Tensor) (backend.Tensor, error) {
	channels := t.Dim(-1)
	data := t.Data()
	out := make([]float64, len(data)/channels)
	for i := range out {
		row := data[i*channels : (i+1)*channels]
		out[i] = floats.Dot(row, row)
	}
	shape := t.Shape()
	shape[len(shape)-1] = 1
	return backend.New(shape, out)
}
