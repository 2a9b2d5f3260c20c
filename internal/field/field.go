package field

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

var (
	// ErrUnsupportedGeometry is returned when a field has no rule for
	// rasterizing onto the requested support kind.
	ErrUnsupportedGeometry = errors.New("unsupported geometry")

	// ErrShapeMismatch is returned when element, value or batch counts
	// disagree.
	ErrShapeMismatch = backend.ErrShapeMismatch

	// ErrInvalidArgument is returned for malformed scalar arguments.
	ErrInvalidArgument = backend.ErrInvalidArgument
)

// Field maps points or whole supports to values, independent of how the
// field is stored.
type Field interface {
	// SampleAt returns one value per element of target. Grid targets
	// yield (batch, resolution..., channels); point targets yield
	// (batch, count, channels).
	SampleAt(target geom.Geometry, reduceChannels bool) (backend.Tensor, error)
}

// Sampled is a Field backed by explicit elements and an extrapolation.
type Sampled interface {
	Field
	Elements() geom.Geometry
	Extrapolation() extrapolation.Extrapolation
}

// GridSampler is implemented by fields that can produce a CenteredGrid on
// a regular grid.
type GridSampler interface {
	SampleGrid(cell geom.GridCell) (*CenteredGrid, error)
}

// PointSampler is implemented by fields that can be evaluated at
// arbitrary points.
type PointSampler interface {
	SamplePoints(points geom.PointSet, reduceChannels bool) (backend.Tensor, error)
}

// Rasterizer evaluates f on a target of one support kind.
type Rasterizer func(f Field, target geom.Geometry, reduceChannels bool) (backend.Tensor, error)

var (
	rasterizersMu sync.RWMutex
	rasterizers   = map[geom.Kind]Rasterizer{
		geom.KindGrid:   rasterizeGrid,
		geom.KindPoints: rasterizePoints,
	}
)

// RegisterRasterizer installs the rule for a support kind, replacing any
// previous rule. New kinds extend SampleAt without touching field types.
func RegisterRasterizer(kind geom.Kind, r Rasterizer) {
	rasterizersMu.Lock()
	defer rasterizersMu.Unlock()
	rasterizers[kind] = r
}

// SampleAt dispatches on the target's support kind.
func SampleAt(f Field, target geom.Geometry, reduceChannels bool) (backend.Tensor, error) {
	if target == nil {
		return backend.Tensor{}, fmt.Errorf("%w: nil target", ErrUnsupportedGeometry)
	}
	rasterizersMu.RLock()
	r, ok := rasterizers[target.Kind()]
	rasterizersMu.RUnlock()
	if !ok {
		return backend.Tensor{}, fmt.Errorf("%w: no rasterizer for %q", ErrUnsupportedGeometry, target.Kind())
	}
	return r(f, target, reduceChannels)
}

func rasterizeGrid(f Field, target geom.Geometry, _ bool) (backend.Tensor, error) {
	cell, ok := target.(geom.GridCell)
	if !ok {
		return backend.Tensor{}, fmt.Errorf("%w: %T reported kind %q", ErrUnsupportedGeometry, target, target.Kind())
	}
	gs, ok := f.(GridSampler)
	if !ok {
		return backend.Tensor{}, fmt.Errorf("%w: %T cannot be sampled on a grid", ErrUnsupportedGeometry, f)
	}
	g, err := gs.SampleGrid(cell)
	if err != nil {
		return backend.Tensor{}, err
	}
	return g.Dense(), nil
}

func rasterizePoints(f Field, target geom.Geometry, reduceChannels bool) (backend.Tensor, error) {
	ps, ok := target.(geom.PointSet)
	if !ok {
		return backend.Tensor{}, fmt.Errorf("%w: %T reported kind %q", ErrUnsupportedGeometry, target, target.Kind())
	}
	sampler, ok := f.(PointSampler)
	if !ok {
		return backend.Tensor{}, fmt.Errorf("%w: %T cannot be sampled at points", ErrUnsupportedGeometry, f)
	}
	return sampler.SamplePoints(ps, reduceChannels)
}

// SampledField is the shared base of fields backed by a geometry, a
// values tensor and an extrapolation.
//
// Values are laid out (batch, element dims..., channels). A single-value
// tensor broadcasts to every element.
type SampledField struct {
	be       backend.Backend
	elements geom.Geometry
	values   backend.Tensor
	ext      extrapolation.Extrapolation
}

func newSampledField(be backend.Backend, elements geom.Geometry, values backend.Tensor, ext extrapolation.Extrapolation) (SampledField, error) {
	if be == nil {
		return SampledField{}, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}
	if elements == nil {
		return SampledField{}, fmt.Errorf("%w: nil geometry", ErrInvalidArgument)
	}
	if ext == nil {
		ext = extrapolation.Zero
	}
	if values.Len() == 0 && values.Rank() == 0 {
		return SampledField{}, fmt.Errorf("%w: no values", ErrShapeMismatch)
	}
	if !values.IsScalar() {
		shape := values.Shape()
		if len(shape) < 3 {
			return SampledField{}, fmt.Errorf("%w: values %v, want (batch, elements..., channels)", ErrShapeMismatch, shape)
		}
		count := backend.Shape(shape[1 : len(shape)-1]).Size()
		if count != elements.ElementCount() {
			return SampledField{}, fmt.Errorf("%w: %d values for %d elements", ErrShapeMismatch, count, elements.ElementCount())
		}
		if eb := elements.Batch(); eb != 1 && shape[0] != 1 && shape[0] != eb {
			return SampledField{}, fmt.Errorf("%w: values batch %d for geometry batch %d", ErrShapeMismatch, shape[0], eb)
		}
		if shape[len(shape)-1] < 1 {
			return SampledField{}, fmt.Errorf("%w: values %v have no channels", ErrShapeMismatch, shape)
		}
	}
	return SampledField{be: be, elements: elements, values: values, ext: ext}, nil
}

// Elements returns the geometry the values are attached to.
func (f SampledField) Elements() geom.Geometry { return f.elements }

// Values returns the values tensor as given at construction.
func (f SampledField) Values() backend.Tensor { return f.values }

// Extrapolation returns the outside-of-domain policy.
func (f SampledField) Extrapolation() extrapolation.Extrapolation { return f.ext }

// Backend returns the numeric backend the field computes with.
func (f SampledField) Backend() backend.Backend { return f.be }

// Channels returns the number of value channels, 1 for broadcast scalars.
func (f SampledField) Channels() int {
	if f.values.IsScalar() {
		return 1
	}
	return f.values.Dim(-1)
}

// Batch returns the batch size shared by values and elements.
func (f SampledField) Batch() int {
	b := f.elements.Batch()
	if !f.values.IsScalar() && f.values.Dim(0) > b {
		b = f.values.Dim(0)
	}
	return b
}

// valuesAt returns the (count, channels) values of batch entry b with
// scalar and batch broadcasting resolved.
func (f SampledField) valuesAt(b int) backend.Tensor {
	count := f.elements.ElementCount()
	if f.values.IsScalar() {
		return backend.Full(f.values.Flat(0), count, 1)
	}
	if f.values.Dim(0) == 1 {
		b = 0
	}
	v, _ := f.values.Index(b).Reshape(count, f.Channels())
	return v
}
