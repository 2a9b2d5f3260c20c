package backend

// Combine selects how a grouped scatter reduces values that share a
// destination.
type Combine int

const (
	// CombineSum adds all values routed to the same destination.
	CombineSum Combine = iota
	// CombineMean takes the equal-weight mean of the values routed to the
	// same destination.
	CombineMean
)

// String returns the mode name.
func (c Combine) String() string {
	switch c {
	case CombineSum:
		return "sum"
	case CombineMean:
		return "mean"
	default:
		return "unknown"
	}
}

// Backend is the numeric engine used by the field core. Implementations
// must be safe for concurrent use.
type Backend interface {
	// Round rounds every element to the nearest integer, halves away from zero.
	Round(t Tensor) Tensor
	// Floor rounds every element down.
	Floor(t Tensor) Tensor
	// ToInt truncates every element to an int.
	ToInt(t Tensor) []int

	// WhereGreater returns the multi-indices of all elements greater than
	// threshold as a (count, rank) tensor, in row-major order.
	WhereGreater(t Tensor, threshold float64) Tensor

	// RandomUniform draws independent samples from [0, 1).
	RandomUniform(shape Shape) Tensor

	// Concat joins tensors along an existing axis.
	Concat(ts []Tensor, axis int) (Tensor, error)
	// Stack joins equally shaped tensors along a new leading axis.
	Stack(ts []Tensor) (Tensor, error)

	// StaticShape returns the shape known ahead of run time, with Unknown
	// marking dynamic dimensions.
	StaticShape(t Tensor) Shape
	// DynamicShape returns the actual shape.
	DynamicShape(t Tensor) Shape

	// Scatter groups the rows of values (count, channels) by destination
	// index and reduces each group with mode into a (size, channels)
	// tensor. Negative indices are skipped. Destinations without rows
	// are zero.
	Scatter(indices []int, values Tensor, size int, mode Combine) (Tensor, error)

	// Multilinear interpolates grid (spatial..., channels) at coords
	// (count, rank) given in index space. Coordinates are clamped to the
	// grid. The result has shape (count, channels).
	Multilinear(grid Tensor, coords Tensor) (Tensor, error)
}
