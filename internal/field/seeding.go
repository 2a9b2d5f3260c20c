package field

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
)

// Distribution places seeded particles inside their cell.
type Distribution int

const (
	// DistributionCenter puts every particle on its cell centre.
	DistributionCenter Distribution = iota
	// DistributionUniform draws an independent uniform offset per particle.
	DistributionUniform
)

func (d Distribution) String() string {
	switch d {
	case DistributionCenter:
		return "center"
	case DistributionUniform:
		return "uniform"
	default:
		return fmt.Sprintf("Distribution(%d)", int(d))
	}
}

// ParseDistribution accepts "center" or "uniform".
func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "center", "centre":
		return DistributionCenter, nil
	case "uniform":
		return DistributionUniform, nil
	}
	return 0, fmt.Errorf("%w: distribution %q", ErrInvalidArgument, s)
}

// DistributePoints seeds particlesPerCell points in every active cell of
// density, a (batch, resolution..., channels) tensor whose channel 0 is
// the occupancy. Cells with occupancy > 0 are active.
//
// The result has shape (batch, particlesPerCell*active, rank) in index
// space, where cell i spans [i, i+1) on each axis. Batch entries are
// seeded independently and must all have the same number of active
// cells.
func DistributePoints(be backend.Backend, density backend.Tensor, particlesPerCell int, distribution Distribution) (backend.Tensor, error) {
	if particlesPerCell <= 0 {
		return backend.Tensor{}, fmt.Errorf("%w: particles per cell must be positive, got %d", ErrInvalidArgument, particlesPerCell)
	}
	if distribution != DistributionCenter && distribution != DistributionUniform {
		return backend.Tensor{}, fmt.Errorf("%w: distribution %v", ErrInvalidArgument, distribution)
	}
	if density.Rank() < 3 {
		return backend.Tensor{}, fmt.Errorf("%w: density %v, want (batch, resolution..., channels)", ErrShapeMismatch, density.Shape())
	}

	batch := be.StaticShape(density)[0]
	if batch == backend.Unknown {
		batch = be.DynamicShape(density)[0]
	}

	seeded := make([]backend.Tensor, batch)
	var g errgroup.Group
	for b := 0; b < batch; b++ {
		g.Go(func() error {
			pts, err := seedBatch(be, density.Index(b), particlesPerCell, distribution)
			if err != nil {
				return fmt.Errorf("seed batch %d: %w", b, err)
			}
			monitoring.Tracef("seed: batch %d produced %d points", b, pts.Dim(0))
			seeded[b] = pts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return backend.Tensor{}, err
	}

	for b := 1; b < batch; b++ {
		if seeded[b].Dim(0) != seeded[0].Dim(0) {
			return backend.Tensor{}, fmt.Errorf("%w: all arrays in the batch must have the same number of active cells (batch 0 has %d points, batch %d has %d)",
				ErrShapeMismatch, seeded[0].Dim(0), b, seeded[b].Dim(0))
		}
	}
	out, err := be.Stack(seeded)
	if err != nil {
		return backend.Tensor{}, err
	}
	if batch > 0 {
		monitoring.ObserveSeeded(batch * seeded[0].Dim(0))
	}
	return out, nil
}

// seedBatch seeds one (resolution..., channels) occupancy array.
func seedBatch(be backend.Backend, density backend.Tensor, particlesPerCell int, distribution Distribution) (backend.Tensor, error) {
	occupancy, err := channelZero(density)
	if err != nil {
		return backend.Tensor{}, err
	}
	indices := be.WhereGreater(occupancy, 0)

	reps := make([]backend.Tensor, particlesPerCell)
	for r := range reps {
		var offset backend.Tensor
		switch distribution {
		case DistributionCenter:
			offset = backend.Full(0.5, indices.Shape()...)
		default:
			offset = be.RandomUniform(indices.Shape())
		}
		if reps[r], err = add(indices, offset); err != nil {
			return backend.Tensor{}, err
		}
	}
	return be.Concat(reps, 0)
}

func channelZero(t backend.Tensor) (backend.Tensor, error) {
	channels := t.Dim(-1)
	spatial := t.Shape()[:t.Rank()-1]
	data := t.Data()
	out := make([]float64, spatial.Size())
	for i := range out {
		out[i] = data[i*channels]
	}
	return backend.New(spatial, out)
}

func add(a, b backend.Tensor) (backend.Tensor, error) {
	if !a.Shape().Equal(b.Shape()) {
		return backend.Tensor{}, fmt.Errorf("%w: add %v and %v", ErrShapeMismatch, a.Shape(), b.Shape())
	}
	out := a.Data()
	for i := range out {
		out[i] += b.Flat(i)
	}
	return backend.New(a.Shape(), out)
}

// SeedPointCloud seeds particles in the active cells of density's first
// channel and returns them as a cloud in the grid's box carrying value.
func SeedPointCloud(be backend.Backend, density *CenteredGrid, particlesPerCell int, distribution Distribution, value float64) (*PointCloud, error) {
	idx, err := DistributePoints(be, density.Dense(), particlesPerCell, distribution)
	if err != nil {
		return nil, err
	}
	cell := density.Cell()
	res := cell.Resolution()
	box := cell.Bounds()
	batch, n, rank := idx.Dim(0), idx.Dim(1), idx.Dim(2)

	data := idx.Data()
	loc := make([]float64, rank)
	for i := 0; i < batch*n; i++ {
		p := data[i*rank : (i+1)*rank]
		for a := range loc {
			loc[a] = p[a] / float64(res[a])
		}
		copy(p, box.LocalToGlobal(loc))
	}
	positions, err := backend.New(backend.Shape{batch, n, rank}, data)
	if err != nil {
		return nil, err
	}
	points, err := geom.NewPointSet(positions, 0)
	if err != nil {
		return nil, err
	}
	return NewPointCloud(be, points, backend.Scalar(value), density.Extrapolation(), false)
}
