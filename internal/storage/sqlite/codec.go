package sqlite

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

// Snapshot kinds.
const (
	KindCentered  = "centered"
	KindStaggered = "staggered"
	KindPoints    = "points"
)

// tensorBlob is the gob form of a backend.Tensor.
type tensorBlob struct {
	Shape []int
	Data  []float64
}

func fromTensor(t backend.Tensor) tensorBlob {
	return tensorBlob{Shape: t.Shape(), Data: t.Data()}
}

func (b tensorBlob) tensor() (backend.Tensor, error) {
	return backend.New(b.Shape, b.Data)
}

// fieldBlob is the gob payload of one snapshot. Only the members of the
// snapshot's kind are set.
type fieldBlob struct {
	Kind string

	Lower, Upper []float64
	Resolution   []int

	Values     tensorBlob
	Components []tensorBlob

	Positions      tensorBlob
	Radius         float64
	AddOverlapping bool
}

// encodeField returns the blob for f plus its extrapolation.
func encodeField(f field.Field) (fieldBlob, extrapolation.Extrapolation, error) {
	switch v := f.(type) {
	case *field.CenteredGrid:
		b := gridBlob(KindCentered, v.Cell())
		b.Values = fromTensor(v.Values())
		return b, v.Extrapolation(), nil
	case *field.StaggeredGrid:
		b := gridBlob(KindStaggered, v.Cell())
		for axis := 0; axis < v.Cell().Rank(); axis++ {
			b.Components = append(b.Components, fromTensor(v.Component(axis)))
		}
		return b, v.Extrapolation(), nil
	case *field.PointCloud:
		return fieldBlob{
			Kind:           KindPoints,
			Values:         fromTensor(v.Values()),
			Positions:      fromTensor(v.Points().Positions()),
			Radius:         v.Points().Radius(),
			AddOverlapping: v.AddOverlapping(),
		}, v.Extrapolation(), nil
	}
	return fieldBlob{}, nil, fmt.Errorf("%w: cannot snapshot %T", field.ErrUnsupportedGeometry, f)
}

func gridBlob(kind string, cell geom.GridCell) fieldBlob {
	box := cell.Bounds()
	return fieldBlob{Kind: kind, Lower: box.Lower(), Upper: box.Upper(), Resolution: cell.Resolution()}
}

// decodeField rebuilds the field described by b.
func decodeField(be backend.Backend, b fieldBlob, ext extrapolation.Extrapolation) (field.Field, error) {
	switch b.Kind {
	case KindCentered, KindStaggered:
		box, err := geom.NewBox(b.Lower, b.Upper)
		if err != nil {
			return nil, err
		}
		cell, err := geom.NewGridCell(box, b.Resolution)
		if err != nil {
			return nil, err
		}
		if b.Kind == KindCentered {
			values, err := b.Values.tensor()
			if err != nil {
				return nil, err
			}
			return field.NewCenteredGrid(be, cell, values, ext)
		}
		comps := make([]backend.Tensor, len(b.Components))
		for i, c := range b.Components {
			if comps[i], err = c.tensor(); err != nil {
				return nil, err
			}
		}
		return field.NewStaggeredGrid(be, cell, comps, ext)
	case KindPoints:
		pos, err := b.Positions.tensor()
		if err != nil {
			return nil, err
		}
		points, err := geom.NewPointSet(pos, b.Radius)
		if err != nil {
			return nil, err
		}
		values, err := b.Values.tensor()
		if err != nil {
			return nil, err
		}
		return field.NewPointCloud(be, points, values, ext, b.AddOverlapping)
	}
	return nil, fmt.Errorf("unknown snapshot kind %q", b.Kind)
}

// serializeField compresses b using gob encoding and gzip compression.
func serializeField(b fieldBlob) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(b); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeField decompresses and decodes a gob+gzip blob.
func deserializeField(blob []byte) (fieldBlob, error) {
	var b fieldBlob
	if len(blob) == 0 {
		return b, fmt.Errorf("empty field blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return b, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(&b); err != nil {
		return b, fmt.Errorf("failed to decode field blob: %w", err)
	}
	return b, nil
}
