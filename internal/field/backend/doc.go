// Package backend owns the numeric array layer consumed by the field core.
//
// Responsibilities: dense float64 tensors, elementwise rounding, boolean
// masking, uniform sampling, concatenation and stacking, shape
// introspection, grouped scatter reductions and multilinear
// interpolation.
// Key types: Tensor, Shape, Backend, Numeric.
//
// Dependency rule: backend depends on nothing else in this module. Field
// code receives a Backend explicitly and never reaches for a global one.
package backend
