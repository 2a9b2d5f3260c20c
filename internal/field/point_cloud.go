package field

import (
	"fmt"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

// PointCloud is a field over unordered elements at arbitrary positions.
//
// When rasterized onto a grid, elements that land in the same cell are
// summed if addOverlapping is set and averaged otherwise.
type PointCloud struct {
	SampledField
	points         geom.PointSet
	addOverlapping bool
}

var (
	_ Sampled     = (*PointCloud)(nil)
	_ GridSampler = (*PointCloud)(nil)
)

// NewPointCloud attaches values of shape (batch, count, channels), or a
// single broadcast value, to points.
func NewPointCloud(be backend.Backend, points geom.PointSet, values backend.Tensor, ext extrapolation.Extrapolation, addOverlapping bool) (*PointCloud, error) {
	if !values.IsScalar() && values.Rank() != 3 {
		return nil, fmt.Errorf("%w: point values %v, want (batch, count, channels)", ErrShapeMismatch, values.Shape())
	}
	sf, err := newSampledField(be, points, values, ext)
	if err != nil {
		return nil, err
	}
	return &PointCloud{SampledField: sf, points: points, addOverlapping: addOverlapping}, nil
}

// Points returns the element positions.
func (p *PointCloud) Points() geom.PointSet { return p.points }

// AddOverlapping reports whether coinciding elements are summed.
func (p *PointCloud) AddOverlapping() bool { return p.addOverlapping }

// Mask returns an indicator cloud over the same elements: every value is
// 1, the extrapolation is Zero, and overlapping elements are averaged.
func (p *PointCloud) Mask() *PointCloud {
	sf := SampledField{be: p.be, elements: p.points, values: backend.Scalar(1), ext: extrapolation.Zero}
	return &PointCloud{SampledField: sf, points: p.points}
}

// WithAddOverlapping returns a copy with the duplicate-resolution flag set.
func (p *PointCloud) WithAddOverlapping(add bool) *PointCloud {
	c := *p
	c.addOverlapping = add
	return &c
}

// WithValues returns a cloud over the same points carrying new values.
func (p *PointCloud) WithValues(values backend.Tensor) (*PointCloud, error) {
	return NewPointCloud(p.be, p.points, values, p.ext, p.addOverlapping)
}

// SampleAt implements Field. Only grid targets are supported.
func (p *PointCloud) SampleAt(target geom.Geometry, reduceChannels bool) (backend.Tensor, error) {
	return SampleAt(p, target, reduceChannels)
}

// SampleGrid scatters the cloud onto cell.
func (p *PointCloud) SampleGrid(cell geom.GridCell) (*CenteredGrid, error) {
	return p.Scatter(cell)
}

func (p *PointCloud) String() string {
	return fmt.Sprintf("PointCloud[%v at %v]", p.values, p.points)
}
