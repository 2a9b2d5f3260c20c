package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
	"github.com/banshee-data/fieldgrid/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) (*SnapshotStore, *timeutil.MockClock) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "fields.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := timeutil.NewMockClock(epoch)
	be := backend.NewNumeric(backend.WithSeed(11), backend.WithWorkers(1))
	return NewSnapshotStore(db, be, clock), clock
}

func testCell(t *testing.T) geom.GridCell {
	t.Helper()
	box, err := geom.NewBox([]float64{0, 0}, []float64{4, 2})
	require.NoError(t, err)
	cell, err := geom.NewGridCell(box, []int{2, 2})
	require.NoError(t, err)
	return cell
}

func TestOpen_MigratesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fields.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := MigrateVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// A second run is a no-op.
	require.NoError(t, MigrateUp(db))
}

func TestSnapshotStore_CenteredRoundTrip(t *testing.T) {
	store, _ := setupStore(t)
	be := backend.NewNumeric()
	values := backend.MustNew(backend.Shape{1, 2, 2, 1}, []float64{1.5, -2, 0, 8})
	g, err := field.NewCenteredGrid(be, testCell(t), values, extrapolation.Constant(2.5))
	require.NoError(t, err)

	snap, err := store.Save("density", g)
	require.NoError(t, err)
	assert.Len(t, snap.SnapshotID, 36)
	assert.Equal(t, Snapshot{
		SnapshotID:    snap.SnapshotID,
		Name:          "density",
		Kind:          KindCentered,
		Extrapolation: "constant:2.5",
		Batch:         1,
		ElementCount:  4,
		Channels:      1,
		CreatedAt:     epoch.UnixNano(),
	}, snap)

	f, got, err := store.Load(snap.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
	assert.True(t, got.Created().Equal(epoch))

	restored, ok := f.(*field.CenteredGrid)
	require.True(t, ok)
	assert.True(t, restored.Cell().Equal(g.Cell()))
	assert.Equal(t, "constant:2.5", restored.Extrapolation().Name())
	if diff := cmp.Diff(values.Data(), restored.Values().Data()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotStore_PointCloudAndStaggered(t *testing.T) {
	store, _ := setupStore(t)
	be := backend.NewNumeric()

	ps, err := geom.NewPointSet(backend.MustNew(backend.Shape{1, 3, 2}, []float64{0.5, 0.5, 1, 1, 3, 1.5}), 0.25)
	require.NoError(t, err)
	pc, err := field.NewPointCloud(be, ps, backend.Scalar(2), extrapolation.Periodic, true)
	require.NoError(t, err)

	snap, err := store.Save("smoke", pc)
	require.NoError(t, err)
	assert.Equal(t, KindPoints, snap.Kind)
	assert.Equal(t, 3, snap.ElementCount)

	f, _, err := store.Load(snap.SnapshotID)
	require.NoError(t, err)
	got := f.(*field.PointCloud)
	assert.True(t, got.AddOverlapping())
	assert.Equal(t, 0.25, got.Points().Radius())
	assert.Equal(t, "periodic", got.Extrapolation().Name())
	assert.Equal(t, ps.Positions().Data(), got.Points().Positions().Data())
	assert.Equal(t, []float64{2}, got.Values().Data())

	sg, err := field.NewStaggeredGrid(be, testCell(t), []backend.Tensor{
		backend.Full(1, 1, 3, 2),
		backend.Full(-1, 1, 2, 3),
	}, extrapolation.Boundary)
	require.NoError(t, err)
	snap, err = store.Save("velocity", sg)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Channels)

	f, _, err = store.Load(snap.SnapshotID)
	require.NoError(t, err)
	stag := f.(*field.StaggeredGrid)
	assert.Equal(t, backend.Shape{1, 2, 3}, stag.Component(1).Shape())
	assert.Equal(t, "boundary", stag.Extrapolation().Name())
}

func TestSnapshotStore_ListAndDelete(t *testing.T) {
	store, clock := setupStore(t)
	be := backend.NewNumeric()
	g, err := field.NewCenteredGrid(be, testCell(t), backend.Scalar(1), nil)
	require.NoError(t, err)

	first, err := store.Save("a", g)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := store.Save("b", g)
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.SnapshotID, list[0].SnapshotID)
	assert.Equal(t, first.SnapshotID, list[1].SnapshotID)

	require.NoError(t, store.Delete(first.SnapshotID))
	assert.ErrorIs(t, store.Delete(first.SnapshotID), ErrSnapshotNotFound)
	_, _, err = store.Load(first.SnapshotID)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	list, err = store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type unknownField struct{}

func (unknownField) SampleAt(geom.Geometry, bool) (backend.Tensor, error) {
	return backend.Tensor{}, nil
}

func TestSnapshotStore_SaveErrors(t *testing.T) {
	store, _ := setupStore(t)
	g, err := field.NewCenteredGrid(backend.NewNumeric(), testCell(t), backend.Scalar(1), nil)
	require.NoError(t, err)

	_, err = store.Save("  ", g)
	assert.ErrorIs(t, err, field.ErrInvalidArgument)
	_, err = store.Save("x", unknownField{})
	assert.ErrorIs(t, err, field.ErrUnsupportedGeometry)
}

func TestDeserializeField_Errors(t *testing.T) {
	_, err := deserializeField(nil)
	assert.Error(t, err)
	_, err = deserializeField([]byte("not gzip"))
	assert.Error(t, err)
}
