// Package testutil provides shared test helpers for numeric fields.
//
// Helpers take *testing.T and mark themselves with t.Helper so failures
// point at the caller.
package testutil

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

// Tolerance is the default absolute and relative tolerance for float
// comparisons.
const Tolerance = 1e-9

// Close reports whether got and want agree within Tolerance.
func Close(got, want float64) bool {
	return scalar.EqualWithinAbsOrRel(got, want, Tolerance, Tolerance)
}

// AssertClose fails the test if got and want differ beyond Tolerance.
func AssertClose(t *testing.T, got, want float64) {
	t.Helper()
	if !Close(got, want) {
		t.Errorf("got %g, want %g", got, want)
	}
}

// AssertSliceClose compares two slices element by element.
func AssertSliceClose(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d (got %v)", len(got), len(want), got)
	}
	for i := range got {
		if !Close(got[i], want[i]) {
			t.Errorf("[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}
