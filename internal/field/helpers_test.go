package field

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

func newBackend() *backend.Numeric {
	return backend.NewNumeric(backend.WithSeed(7), backend.WithWorkers(2))
}

// pointSet builds a (batch, n, rank) point set from flat coordinates.
func pointSet(t *testing.T, batch, rank int, coords ...float64) geom.PointSet {
	t.Helper()
	n := len(coords) / (batch * rank)
	ps, err := geom.NewPointSet(backend.MustNew(backend.Shape{batch, n, rank}, coords), 0)
	require.NoError(t, err)
	return ps
}

func gridCell(t *testing.T, lower, upper []float64, res ...int) geom.GridCell {
	t.Helper()
	box, err := geom.NewBox(lower, upper)
	require.NoError(t, err)
	cell, err := geom.NewGridCell(box, res)
	require.NoError(t, err)
	return cell
}

// column wraps per-element scalars as (1, n, 1) values.
func column(vs ...float64) backend.Tensor {
	return backend.MustNew(backend.Shape{1, len(vs), 1}, vs)
}
