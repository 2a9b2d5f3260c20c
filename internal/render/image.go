// Package render turns sampled fields into pictures: ASCII heatmaps for
// the console, PNG heatmaps via gonum/plot and interactive HTML heatmaps
// via go-echarts.
package render

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

// ErrNotPlanar is returned for fields that do not live on a 1-D or 2-D grid.
var ErrNotPlanar = errors.New("field is not planar")

// Image is a 2-D array of cell values over a box. Z is laid out x-major:
// Z[x*NY+y].
type Image struct {
	NX, NY int
	Z      []float64
	Bounds geom.Box
}

// At returns the value of cell (x, y).
func (im Image) At(x, y int) float64 { return im.Z[x*im.NY+y] }

// Range returns the smallest and largest value.
func (im Image) Range() (lo, hi float64) {
	if len(im.Z) == 0 {
		return 0, 0
	}
	return floats.Min(im.Z), floats.Max(im.Z)
}

// extentY returns the y interval covered by the image. A 1-D box spans
// the unit interval in y.
func (im Image) extentY() (float64, float64) {
	if im.Bounds.Rank() < 2 {
		return 0, 1
	}
	return im.Bounds.Lower()[1], im.Bounds.Upper()[1]
}

// GridValues reduces f to the squared magnitude of its first batch entry
// on a grid. Staggered grids are averaged to cell centres first. Fields
// without a grid of their own (point clouds) are rasterized onto cell.
func GridValues(f field.Field, cell geom.GridCell) (Image, error) {
	var (
		g   *field.CenteredGrid
		err error
	)
	switch v := f.(type) {
	case *field.CenteredGrid:
		g = v
	case *field.StaggeredGrid:
		g, err = v.AtCenters()
	case field.GridSampler:
		g, err = v.SampleGrid(cell)
	default:
		return Image{}, fmt.Errorf("%w: %T", field.ErrUnsupportedGeometry, f)
	}
	if err != nil {
		return Image{}, err
	}

	sq, err := field.VecSquared(g)
	if err != nil {
		return Image{}, err
	}
	g = sq.(*field.CenteredGrid)

	res := g.Cell().Resolution()
	switch len(res) {
	case 1:
		res = append(res, 1)
	case 2:
	default:
		return Image{}, fmt.Errorf("%w: rank %d", ErrNotPlanar, len(res))
	}

	dense := g.Dense()
	n := res[0] * res[1]
	im := Image{NX: res[0], NY: res[1], Z: make([]float64, n), Bounds: g.Cell().Bounds()}
	// One channel after VecSquared, so batch 0 is the first n values.
	for i := 0; i < n; i++ {
		im.Z[i] = dense.Flat(i)
	}
	return im, nil
}
