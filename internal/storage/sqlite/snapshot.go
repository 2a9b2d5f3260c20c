package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
	"github.com/banshee-data/fieldgrid/internal/timeutil"
)

// ErrSnapshotNotFound is returned by Load and Delete for unknown ids.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot describes one stored field without its values.
type Snapshot struct {
	SnapshotID    string `json:"snapshot_id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Extrapolation string `json:"extrapolation"`
	Batch         int    `json:"batch"`
	ElementCount  int    `json:"element_count"`
	Channels      int    `json:"channels"`
	CreatedAt     int64  `json:"created_at"` // unix nanoseconds
}

// Created returns CreatedAt as a time.
func (s Snapshot) Created() time.Time { return time.Unix(0, s.CreatedAt).UTC() }

// SnapshotStore provides persistence for field snapshots.
type SnapshotStore struct {
	db    *sql.DB
	be    backend.Backend
	clock timeutil.Clock
}

// NewSnapshotStore creates a store over db. Loaded fields compute on be.
// A nil clock uses the wall clock.
func NewSnapshotStore(db *sql.DB, be backend.Backend, clock timeutil.Clock) *SnapshotStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SnapshotStore{db: db, be: be, clock: clock}
}

// Save persists f under name and returns the new snapshot id.
func (s *SnapshotStore) Save(name string, f field.Field) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Snapshot{}, fmt.Errorf("%w: empty snapshot name", field.ErrInvalidArgument)
	}
	b, ext, err := encodeField(f)
	if err != nil {
		return Snapshot{}, err
	}
	blob, err := serializeField(b)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to serialize field %q: %w", name, err)
	}

	snap := Snapshot{
		SnapshotID:    uuid.New().String(),
		Name:          name,
		Kind:          b.Kind,
		Extrapolation: ext.Name(),
		CreatedAt:     s.clock.Now().UnixNano(),
	}
	snap.Batch, snap.ElementCount, snap.Channels = summarize(f)

	err = retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO field_snapshots (
				snapshot_id, name, kind, extrapolation,
				batch, element_count, channels, values_blob, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.SnapshotID, snap.Name, snap.Kind, snap.Extrapolation,
			snap.Batch, snap.ElementCount, snap.Channels, blob, snap.CreatedAt,
		)
		return err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to insert snapshot %q: %w", name, err)
	}
	monitoring.Opsf("saved snapshot %s (%s %s, %d bytes)", snap.SnapshotID, snap.Kind, snap.Name, len(blob))
	return snap, nil
}

func summarize(f field.Field) (batch, elements, channels int) {
	switch v := f.(type) {
	case *field.CenteredGrid:
		return v.Batch(), v.Cell().ElementCount(), v.Channels()
	case *field.StaggeredGrid:
		return v.Batch(), v.Cell().ElementCount(), v.Cell().Rank()
	case *field.PointCloud:
		return v.Batch(), v.Points().ElementCount(), v.Channels()
	}
	return 0, 0, 0
}

// Load returns the field stored under id along with its metadata.
func (s *SnapshotStore) Load(id string) (field.Field, Snapshot, error) {
	var (
		snap Snapshot
		blob []byte
	)
	err := s.db.QueryRow(`
		SELECT snapshot_id, name, kind, extrapolation,
		       batch, element_count, channels, values_blob, created_at
		FROM field_snapshots WHERE snapshot_id = ?`, id,
	).Scan(&snap.SnapshotID, &snap.Name, &snap.Kind, &snap.Extrapolation,
		&snap.Batch, &snap.ElementCount, &snap.Channels, &blob, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("failed to query snapshot %s: %w", id, err)
	}

	ext, err := extrapolation.ByName(snap.Extrapolation)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("snapshot %s: %w", id, err)
	}
	b, err := deserializeField(blob)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("snapshot %s: %w", id, err)
	}
	f, err := decodeField(s.be, b, ext)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return f, snap, nil
}

// List returns all snapshots, newest first.
func (s *SnapshotStore) List() ([]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT snapshot_id, name, kind, extrapolation,
		       batch, element_count, channels, created_at
		FROM field_snapshots
		ORDER BY created_at DESC, snapshot_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.SnapshotID, &snap.Name, &snap.Kind, &snap.Extrapolation,
			&snap.Batch, &snap.ElementCount, &snap.Channels, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Delete removes the snapshot with the given id.
func (s *SnapshotStore) Delete(id string) error {
	var res sql.Result
	err := retryOnBusy(func() error {
		var err error
		res, err = s.db.Exec(`DELETE FROM field_snapshots WHERE snapshot_id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	monitoring.Opsf("deleted snapshot %s", id)
	return nil
}
