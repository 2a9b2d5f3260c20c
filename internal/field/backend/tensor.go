package backend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShapeMismatch is returned when tensor shapes or element counts
	// disagree.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidArgument is returned for malformed arguments such as
	// negative dimensions or unknown combine modes.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Unknown marks a dimension whose size is only known at run time.
const Unknown = -1

// Shape lists the size of each tensor dimension.
type Shape []int

// Size returns the number of elements described by the shape. Unknown
// dimensions count as zero.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		if d < 0 {
			return 0
		}
		n *= d
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	return append(Shape(nil), s...)
}

// String formats the shape as "(2, 3, 1)", printing unknown dimensions as "?".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d == Unknown {
			parts[i] = "?"
			continue
		}
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// strides returns row-major strides in elements.
func (s Shape) strides() []int {
	st := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= s[i]
	}
	return st
}

// Tensor is an immutable dense row-major float64 array.
type Tensor struct {
	shape Shape
	data  []float64

	// dynamic marks the leading dimension as unknown until run time.
	dynamic bool
}

// New copies data into a tensor of the given shape.
func New(shape Shape, data []float64) (Tensor, error) {
	for _, d := range shape {
		if d < 0 {
			return Tensor{}, fmt.Errorf("%w: negative dimension in %v", ErrInvalidArgument, shape)
		}
	}
	if shape.Size() != len(data) {
		return Tensor{}, fmt.Errorf("%w: %d values do not fill shape %v", ErrShapeMismatch, len(data), shape)
	}
	return Tensor{shape: shape.Clone(), data: append([]float64(nil), data...)}, nil
}

// MustNew is New for literals in tests and fixtures. It panics on error.
func MustNew(shape Shape, data []float64) Tensor {
	t, err := New(shape, data)
	if err != nil {
		panic(err)
	}
	return t
}

// wrap adopts data without copying. Callers must not retain data.
func wrap(shape Shape, data []float64) Tensor {
	return Tensor{shape: shape.Clone(), data: data}
}

// Zeros returns a tensor of zeros.
func Zeros(shape ...int) Tensor {
	s := Shape(shape)
	return wrap(s, make([]float64, s.Size()))
}

// Full returns a tensor with every element set to v.
func Full(v float64, shape ...int) Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Scalar returns a single-element tensor of shape (1), used for
// broadcast values.
func Scalar(v float64) Tensor {
	return wrap(Shape{1}, []float64{v})
}

// Shape returns a copy of the tensor's shape.
func (t Tensor) Shape() Shape { return t.shape.Clone() }

// Rank returns the number of dimensions.
func (t Tensor) Rank() int { return len(t.shape) }

// Dim returns the size of dimension i. Negative i counts from the end.
func (t Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Len returns the number of elements.
func (t Tensor) Len() int { return len(t.data) }

// IsScalar reports whether the tensor holds exactly one value.
func (t Tensor) IsScalar() bool { return len(t.data) == 1 }

// Data returns a copy of the backing values in row-major order.
func (t Tensor) Data() []float64 { return append([]float64(nil), t.data...) }

// Flat returns the i-th value in row-major order.
func (t Tensor) Flat(i int) float64 { return t.data[i] }

// At returns the value at the given multi-index.
func (t Tensor) At(idx ...int) float64 {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("backend: index rank %d for tensor of rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, s := range t.shape.strides() {
		off += idx[i] * s
	}
	return t.data[off]
}

// Index returns a copy of the sub-tensor at position i of the leading
// dimension.
func (t Tensor) Index(i int) Tensor {
	if len(t.shape) == 0 || i < 0 || i >= t.shape[0] {
		panic(fmt.Sprintf("backend: index %d out of range for shape %v", i, t.shape))
	}
	inner := t.shape[1:]
	n := inner.Size()
	return wrap(inner, append([]float64(nil), t.data[i*n:(i+1)*n]...))
}

// Reshape returns the same values viewed with a new shape.
func (t Tensor) Reshape(shape ...int) (Tensor, error) {
	s := Shape(shape)
	if s.Size() != len(t.data) {
		return Tensor{}, fmt.Errorf("%w: cannot reshape %v to %v", ErrShapeMismatch, t.shape, s)
	}
	return wrap(s, append([]float64(nil), t.data...)), nil
}

// WithDynamicBatch returns a copy whose leading dimension is reported as
// Unknown by static shape introspection.
func (t Tensor) WithDynamicBatch() Tensor {
	out := wrap(t.shape, append([]float64(nil), t.data...))
	out.dynamic = true
	return out
}

// String summarises the tensor for logs.
func (t Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
