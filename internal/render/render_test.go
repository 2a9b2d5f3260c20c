package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
)

func newBackend() backend.Backend {
	return backend.NewNumeric(backend.WithSeed(5), backend.WithWorkers(1))
}

func square(t *testing.T, size float64, res ...int) geom.GridCell {
	t.Helper()
	lower := make([]float64, len(res))
	upper := make([]float64, len(res))
	for i := range upper {
		upper[i] = size
	}
	box, err := geom.NewBox(lower, upper)
	require.NoError(t, err)
	cell, err := geom.NewGridCell(box, res)
	require.NoError(t, err)
	return cell
}

func ramp4(t *testing.T) Image {
	return Image{NX: 2, NY: 2, Z: []float64{0, 1, 2, 3}, Bounds: square(t, 2, 2, 2).Bounds()}
}

func TestHeatmap(t *testing.T) {
	im := ramp4(t)

	assert.Equal(t, []string{"-@", " *"}, Heatmap(im, 2, 2))
	assert.Equal(t, []string{"--@@", "  **"}, Heatmap(im, 4, 2))
	assert.Nil(t, Heatmap(im, 0, 3))

	lines := Heatmap(im, 7, 5)
	require.Len(t, lines, 5)
	for _, l := range lines {
		assert.Len(t, l, 7)
	}
}

func TestHeatmap_Constant(t *testing.T) {
	zero := Image{NX: 2, NY: 1, Z: []float64{0, 0}, Bounds: square(t, 1, 2).Bounds()}
	assert.Equal(t, []string{"   "}, Heatmap(zero, 3, 1))

	ones := Image{NX: 2, NY: 1, Z: []float64{4, 4}, Bounds: zero.Bounds}
	assert.Equal(t, []string{"@@@", "@@@"}, Heatmap(ones, 3, 2))

	empty := Heatmap(Image{}, 2, 2)
	assert.Equal(t, []string{"  ", "  "}, empty)
}

func TestGridValues_Centered(t *testing.T) {
	cell := square(t, 2, 2, 1)
	g, err := field.NewCenteredGrid(newBackend(), cell, backend.MustNew(backend.Shape{1, 2, 1, 2}, []float64{3, 4, 0, 1}), nil)
	require.NoError(t, err)

	im, err := GridValues(g, cell)
	require.NoError(t, err)
	assert.Equal(t, 2, im.NX)
	assert.Equal(t, 1, im.NY)
	assert.Equal(t, []float64{25, 1}, im.Z)
}

func TestGridValues_OneDimensional(t *testing.T) {
	cell := square(t, 3, 3)
	g, err := field.NewCenteredGrid(newBackend(), cell, backend.MustNew(backend.Shape{1, 3, 1}, []float64{1, -2, 3}), nil)
	require.NoError(t, err)

	im, err := GridValues(g, cell)
	require.NoError(t, err)
	assert.Equal(t, 3, im.NX)
	assert.Equal(t, 1, im.NY)
	assert.Equal(t, []float64{1, 4, 9}, im.Z)
}

func TestGridValues_Staggered(t *testing.T) {
	cell := square(t, 2, 2, 2)
	be := newBackend()
	sg, err := field.NewStaggeredGrid(be, cell, []backend.Tensor{
		backend.Full(1, 1, 3, 2),
		backend.Full(0, 1, 2, 3),
	}, nil)
	require.NoError(t, err)

	im, err := GridValues(sg, cell)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1}, im.Z)
}

func TestGridValues_PointCloudScattersOntoCell(t *testing.T) {
	cell := square(t, 2, 2, 2)
	be := newBackend()
	ps, err := geom.NewPointSet(backend.MustNew(backend.Shape{1, 1, 2}, []float64{0.5, 0.5}), 0)
	require.NoError(t, err)
	pc, err := field.NewPointCloud(be, ps, backend.Scalar(3), nil, false)
	require.NoError(t, err)

	im, err := GridValues(pc, cell)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 0, 0, 0}, im.Z)
}

type opaque struct{}

func (opaque) SampleAt(geom.Geometry, bool) (backend.Tensor, error) { return backend.Scalar(0), nil }

func TestGridValues_Errors(t *testing.T) {
	cell := square(t, 1, 2, 2)
	_, err := GridValues(opaque{}, cell)
	assert.ErrorIs(t, err, field.ErrUnsupportedGeometry)

	cube := square(t, 1, 2, 2, 2)
	g, err := field.NewCenteredGrid(newBackend(), cube, backend.Scalar(1), nil)
	require.NoError(t, err)
	_, err = GridValues(g, cube)
	assert.ErrorIs(t, err, ErrNotPlanar)
}

func TestWritePNG(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, WritePNG(mfs, "/plots/ramp.png", ramp4(t), PNGOptions{Title: "ramp"}))

	data, err := mfs.ReadFile("/plots/ramp.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")), "not a PNG")

	flat := Image{NX: 2, NY: 2, Z: []float64{1, 1, 1, 1}, Bounds: ramp4(t).Bounds}
	assert.NoError(t, WritePNG(mfs, "/plots/flat.png", flat, PNGOptions{}))

	line := Image{NX: 3, NY: 1, Z: []float64{1, 2, 3}, Bounds: square(t, 1, 3).Bounds()}
	assert.ErrorIs(t, WritePNG(mfs, "/plots/line.png", line, PNGOptions{}), ErrNotPlanar)
}

func TestWriteHTML(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, WriteHTML(mfs, "/plots/ramp.html", ramp4(t), "density"))

	data, err := mfs.ReadFile("/plots/ramp.html")
	require.NoError(t, err)
	page := string(data)
	assert.True(t, strings.Contains(page, "echarts"), "page should load echarts")
	assert.Contains(t, page, "density")
	assert.Contains(t, page, "heatmap")

	assert.ErrorIs(t, WriteHTML(mfs, "/plots/none.html", Image{}, "none"), ErrNotPlanar)
}
