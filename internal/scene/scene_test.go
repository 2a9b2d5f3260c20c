package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
)

func testDefaults() Defaults {
	return Defaults{ParticlesPerCell: 1, Distribution: field.DistributionCenter}
}

func newBackend() backend.Backend {
	return backend.NewNumeric(backend.WithSeed(3), backend.WithWorkers(1))
}

func TestRegistry_GetField(t *testing.T) {
	reg := NewRegistry()
	g, err := field.NewCenteredGrid(newBackend(), mustCell(t), backend.Scalar(1), nil)
	require.NoError(t, err)

	require.NoError(t, reg.Add("pressure", g))
	require.NoError(t, reg.Add("density", g))
	assert.ErrorIs(t, reg.Add("density", g), ErrDuplicateField)
	assert.ErrorIs(t, reg.Add(" ", g), field.ErrInvalidArgument)

	got, err := reg.GetField("density")
	require.NoError(t, err)
	assert.Same(t, g, got)

	_, err = reg.GetField("temperature")
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.Contains(t, err.Error(), "available fields are [pressure, density]")
}

func TestRegistry_OrderedNames(t *testing.T) {
	reg := NewRegistry()
	g, err := field.NewCenteredGrid(newBackend(), mustCell(t), backend.Scalar(1), nil)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, reg.Add(name, g))
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, reg.OrderedNames(nil))
	_, ok := reg.Grid()
	assert.False(t, ok)
	assert.Equal(t, []string{"c", "a", "b", "d"}, reg.OrderedNames([]string{"c", "missing", "a", "c"}))
}

func TestRegistry_PutReplacesInPlace(t *testing.T) {
	reg := NewRegistry()
	be := newBackend()
	one, _ := field.NewCenteredGrid(be, mustCell(t), backend.Scalar(1), nil)
	two, _ := field.NewCenteredGrid(be, mustCell(t), backend.Scalar(2), nil)

	require.NoError(t, reg.Add("x", one))
	require.NoError(t, reg.Add("y", one))
	require.NoError(t, reg.Put("x", two))
	require.NoError(t, reg.Put("z", two))

	assert.Equal(t, []string{"x", "y", "z"}, reg.Names())
	got, _ := reg.GetField("x")
	assert.Same(t, two, got)
}

func TestDefault_BuildsDemoScene(t *testing.T) {
	reg, err := Default(newBackend(), testDefaults())
	require.NoError(t, err)
	assert.Equal(t, []string{"density", "velocity", "smoke", "smoke_density", "probes"}, reg.Names())
	cell, ok := reg.Grid()
	require.True(t, ok)
	assert.Equal(t, []int{32, 16}, cell.Resolution())

	f, err := reg.GetField("velocity")
	require.NoError(t, err)
	stag, ok := f.(*field.StaggeredGrid)
	require.True(t, ok)
	assert.Equal(t, "boundary", stag.Extrapolation().Name())

	smoke, err := reg.GetField("smoke")
	require.NoError(t, err)
	pc := smoke.(*field.PointCloud)

	// Two particles per active cell of the blob, all scattered back.
	dens, _ := reg.GetField("density")
	active := 0
	for _, v := range dens.(*field.CenteredGrid).Dense().Data() {
		if v > 0 {
			active++
		}
	}
	require.Positive(t, active)
	assert.Equal(t, 2*active, pc.Points().ElementCount())

	sd, err := reg.GetField("smoke_density")
	require.NoError(t, err)
	var total float64
	for _, v := range sd.(*field.CenteredGrid).Dense().Data() {
		total += v
	}
	assert.InDelta(t, float64(2*active), total, 1e-9)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "name: x\ncolour: red\n"},
		{"bad grid", "grid: {lower: [0], upper: [0], resolution: [1]}\n"},
		{"unknown kind", grid + "fields:\n  - {name: a, kind: spline}\n"},
		{"missing source", grid + "fields:\n  - {name: a, kind: scattered, from: nowhere}\n"},
		{"wrong source kind", grid + "fields:\n  - {name: a, kind: centered, value: 1}\n  - {name: b, kind: scattered, from: a}\n"},
		{"value count", grid + "fields:\n  - {name: a, kind: centered, values: [1, 2, 3]}\n"},
		{"bad extrapolation", grid + "fields:\n  - {name: a, kind: centered, value: 1, extrapolation: wobble}\n"},
		{"duplicate", grid + "fields:\n  - {name: a, kind: centered, value: 1}\n  - {name: a, kind: centered, value: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(newBackend(), []byte(tt.yaml), testDefaults())
			assert.Error(t, err)
		})
	}
}

const grid = "grid: {lower: [0, 0], upper: [2, 2], resolution: [2, 2]}\n"

func TestLoadFS(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	scene := grid + `fields:
  - name: cloud
    kind: points
    points: [[0.5, 0.5], [0.6, 0.4], [1.5, 1.5]]
    values: [1, 3, 5]
  - name: summed
    kind: scattered
    from: cloud
    add_overlapping: true
  - name: blended
    kind: scattered
    from: cloud
    add_overlapping: false
`
	require.NoError(t, mfs.WriteFile("/scenes/small.yaml", []byte(scene), 0o644))

	reg, err := LoadFS(newBackend(), mfs, "/scenes/small.yaml", testDefaults())
	require.NoError(t, err)

	summed, _ := reg.GetField("summed")
	assert.Equal(t, []float64{4, 0, 0, 5}, summed.(*field.CenteredGrid).Dense().Data())
	blended, _ := reg.GetField("blended")
	assert.Equal(t, []float64{2, 0, 0, 5}, blended.(*field.CenteredGrid).Dense().Data())

	_, err = LoadFS(newBackend(), mfs, "/scenes/small.json", testDefaults())
	assert.Error(t, err)
	_, err = LoadFS(newBackend(), mfs, "/scenes/missing.yaml", testDefaults())
	assert.Error(t, err)
}

func mustCell(t *testing.T) geom.GridCell {
	t.Helper()
	box, err := geom.NewBox([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	cell, err := geom.NewGridCell(box, []int{2, 2})
	require.NoError(t, err)
	return cell
}

func TestBuild_DefaultExtrapolation(t *testing.T) {
	d := testDefaults()
	d.Extrapolation = extrapolation.Periodic
	reg, err := Parse(newBackend(), []byte(grid+"fields:\n  - {name: a, kind: centered, value: 1}\n"), d)
	require.NoError(t, err)
	a, _ := reg.GetField("a")
	assert.Equal(t, "periodic", a.(*field.CenteredGrid).Extrapolation().Name())

	reg, err = Parse(newBackend(), []byte(grid+"extrapolation: symmetric\nfields:\n  - {name: a, kind: centered, value: 1}\n"), d)
	require.NoError(t, err)
	a, _ = reg.GetField("a")
	assert.Equal(t, "symmetric", a.(*field.CenteredGrid).Extrapolation().Name())
}
