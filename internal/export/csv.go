// Package export writes fields as CSV tables, one row per point or grid
// cell, for analysis outside the console.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
)

// Vector is a space separated list of numbers in one CSV column.
type Vector []float64

// MarshalCSV implements gocsv.TypeMarshaller.
func (v Vector) MarshalCSV() (string, error) {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " "), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (v *Vector) UnmarshalCSV(s string) error {
	fields := strings.Fields(s)
	out := make(Vector, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return err
		}
		out[i] = x
	}
	*v = out
	return nil
}

// PointRow is one point of a point cloud.
type PointRow struct {
	Batch    int    `csv:"batch"`
	Index    int    `csv:"index"`
	Position Vector `csv:"position"`
	Value    Vector `csv:"value"`
}

// CellRow is one cell of a centered grid.
type CellRow struct {
	Batch  int    `csv:"batch"`
	Index  int    `csv:"index"`
	Cell   Vector `csv:"cell"`
	Center Vector `csv:"center"`
	Value  Vector `csv:"value"`
}

// PointRows flattens pc into rows, batch-major.
func PointRows(pc *field.PointCloud) []PointRow {
	points := pc.Points()
	values := pc.Values()
	channels := pc.Channels()

	rows := make([]PointRow, 0, points.Batch()*points.ElementCount())
	for b := 0; b < points.Batch(); b++ {
		for i := 0; i < points.ElementCount(); i++ {
			rows = append(rows, PointRow{
				Batch:    b,
				Index:    i,
				Position: points.Point(b, i),
				Value:    row(values, b, i, channels),
			})
		}
	}
	return rows
}

// CellRows flattens g into rows, batch-major then row-major over cells.
func CellRows(g *field.CenteredGrid) []CellRow {
	cell := g.Cell()
	dense := g.Dense()
	channels := dense.Dim(-1)
	idx := make([]int, cell.Rank())

	rows := make([]CellRow, 0, dense.Dim(0)*cell.ElementCount())
	for b := 0; b < dense.Dim(0); b++ {
		for i := 0; i < cell.ElementCount(); i++ {
			cell.Unravel(i, idx)
			ci := make(Vector, len(idx))
			for a, k := range idx {
				ci[a] = float64(k)
			}
			rows = append(rows, CellRow{
				Batch:  b,
				Index:  i,
				Cell:   ci,
				Center: cell.Center(idx),
				Value:  row(dense, b, i, channels),
			})
		}
	}
	return rows
}

// row returns the channels of element i in batch b of a (batch, n,
// channels) layout. Scalars and batch-1 tensors broadcast.
func row(t backend.Tensor, b, i, channels int) Vector {
	if t.IsScalar() {
		return Vector{t.Flat(0)}
	}
	if t.Dim(0) == 1 {
		b = 0
	}
	perBatch := t.Len() / t.Dim(0)
	start := b*perBatch + i*channels
	out := make(Vector, channels)
	for c := range out {
		out[c] = t.Flat(start + c)
	}
	return out
}

// WritePointCloudCSV writes pc to w with a header row.
func WritePointCloudCSV(w io.Writer, pc *field.PointCloud) error {
	return gocsv.Marshal(PointRows(pc), w)
}

// WriteGridCSV writes g to w with a header row.
func WriteGridCSV(w io.Writer, g *field.CenteredGrid) error {
	return gocsv.Marshal(CellRows(g), w)
}

// WriteFile writes f as CSV to path. Staggered grids are exported at
// their cell centres.
func WriteFile(fsys fsutil.FileSystem, path string, f field.Field) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	out, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	var rows int
	switch v := f.(type) {
	case *field.PointCloud:
		rows = v.Points().Batch() * v.Points().ElementCount()
		err = WritePointCloudCSV(out, v)
	case *field.CenteredGrid:
		rows = v.Dense().Dim(0) * v.Cell().ElementCount()
		err = WriteGridCSV(out, v)
	case *field.StaggeredGrid:
		var g *field.CenteredGrid
		if g, err = v.AtCenters(); err == nil {
			rows = g.Dense().Dim(0) * g.Cell().ElementCount()
			err = WriteGridCSV(out, g)
		}
	default:
		err = fmt.Errorf("%w: cannot export %T", field.ErrUnsupportedGeometry, f)
	}
	if err != nil {
		out.Close()
		return fmt.Errorf("export csv: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	monitoring.Opsf("exported %d rows to %s", rows, path)
	return nil
}
