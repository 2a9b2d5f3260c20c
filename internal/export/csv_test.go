package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
)

func testCell(t *testing.T) geom.GridCell {
	t.Helper()
	box, err := geom.NewBox([]float64{0, 0}, []float64{2, 4})
	require.NoError(t, err)
	cell, err := geom.NewGridCell(box, []int{2, 2})
	require.NoError(t, err)
	return cell
}

func TestWritePointCloudCSV(t *testing.T) {
	be := backend.NewNumeric()
	ps, err := geom.NewPointSet(backend.MustNew(backend.Shape{1, 2, 2}, []float64{0.5, 1, 1.5, 3.25}), 0)
	require.NoError(t, err)
	values := backend.MustNew(backend.Shape{1, 2, 2}, []float64{1, -1, 0.5, 2})
	pc, err := field.NewPointCloud(be, ps, values, nil, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePointCloudCSV(&buf, pc))

	want := "batch,index,position,value\n" +
		"0,0,0.5 1,1 -1\n" +
		"0,1,1.5 3.25,0.5 2\n"
	assert.Equal(t, want, buf.String())

	var back []PointRow
	require.NoError(t, gocsv.UnmarshalString(buf.String(), &back))
	if diff := cmp.Diff(PointRows(pc), back); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteGridCSV(t *testing.T) {
	be := backend.NewNumeric()
	g, err := field.NewCenteredGrid(be, testCell(t), backend.MustNew(backend.Shape{1, 2, 2, 1}, []float64{1, 2, 3, 4}), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGridCSV(&buf, g))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "batch,index,cell,center,value", lines[0])
	assert.Equal(t, "0,0,0 0,0.5 1,1", lines[1])
	assert.Equal(t, "0,1,0 1,0.5 3,2", lines[2])
	assert.Equal(t, "0,3,1 1,1.5 3,4", lines[4])
}

func TestCellRows_ScalarBroadcast(t *testing.T) {
	g, err := field.NewCenteredGrid(backend.NewNumeric(), testCell(t), backend.Scalar(7), nil)
	require.NoError(t, err)

	rows := CellRows(g)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, Vector{7}, r.Value)
	}
}

func TestWriteFile(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	be := backend.NewNumeric()

	sg, err := field.NewStaggeredGrid(be, testCell(t), []backend.Tensor{
		backend.Full(2, 1, 3, 2),
		backend.Full(0, 1, 2, 3),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, WriteFile(mfs, "/out/velocity.csv", sg))

	data, err := mfs.ReadFile("/out/velocity.csv")
	require.NoError(t, err)
	var rows []CellRow
	require.NoError(t, gocsv.UnmarshalBytes(data, &rows))
	require.Len(t, rows, 4)
	assert.Equal(t, Vector{2, 0}, rows[0].Value)

	err = WriteFile(mfs, "/out/none.csv", opaque{})
	assert.ErrorIs(t, err, field.ErrUnsupportedGeometry)
}

type opaque struct{}

func (opaque) SampleAt(geom.Geometry, bool) (backend.Tensor, error) { return backend.Tensor{}, nil }
