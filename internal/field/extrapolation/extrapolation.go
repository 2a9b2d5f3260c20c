// Package extrapolation decides the value of a field outside its sampled
// domain.
//
// A policy sees only the query point and the domain box. It either
// yields a fixed value or maps the query back to a point inside the box
// whose sampled value stands in for it. Remapping policies fall back to
// Zero for queries they cannot map to a finite point, such as NaN or an
// infinite wrap.
package extrapolation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/fieldgrid/internal/field/geom"
)

// ErrUnknownExtrapolation is returned by ByName for unrecognised names.
var ErrUnknownExtrapolation = errors.New("unknown extrapolation")

// Resolution is the outcome of resolving a query outside the domain.
// Exactly one of Value and Point is set.
type Resolution struct {
	// Value is the field value to use directly, one entry per channel.
	Value []float64
	// Point is a position inside the box whose value stands in.
	Point []float64
}

// Remapped reports whether the resolution refers to a point inside the
// box rather than a fixed value.
func (r Resolution) Remapped() bool { return r.Point != nil }

// Extrapolation is an immutable outside-of-domain policy. Values are
// safe to share between fields.
type Extrapolation interface {
	// Name identifies the policy for config files and snapshots.
	Name() string
	// Outside resolves a query point known to lie outside box for a field
	// with the given number of channels.
	Outside(point []float64, box geom.Box, channels int) Resolution
}

var (
	// Zero yields the additive identity of the value type.
	Zero Extrapolation = constant{value: 0, name: "zero"}
	// Boundary clamps queries to the nearest point of the box.
	Boundary Extrapolation = boundary{}
	// Periodic wraps queries into the box. Grids sampled under it also
	// interpolate across the seam between the last and first cell.
	Periodic Extrapolation = periodic{}
	// Symmetric mirrors queries at the box faces.
	Symmetric Extrapolation = symmetric{}
)

// Constant yields v on every channel.
func Constant(v float64) Extrapolation {
	if v == 0 {
		return Zero
	}
	return constant{value: v, name: "constant:" + strconv.FormatFloat(v, 'g', -1, 64)}
}

// ByName resolves a policy from its Name. "constant:<v>" yields Constant(v).
func ByName(name string) (Extrapolation, error) {
	switch name {
	case "", "zero":
		return Zero, nil
	case "boundary":
		return Boundary, nil
	case "periodic":
		return Periodic, nil
	case "symmetric":
		return Symmetric, nil
	}
	if rest, ok := strings.CutPrefix(name, "constant:"); ok {
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrUnknownExtrapolation, name, err)
		}
		return Constant(v), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownExtrapolation, name)
}

type constant struct {
	value float64
	name  string
}

func (c constant) Name() string { return c.name }

func (c constant) Outside(_ []float64, _ geom.Box, channels int) Resolution {
	v := make([]float64, channels)
	for i := range v {
		v[i] = c.value
	}
	return Resolution{Value: v}
}

type boundary struct{}

func (boundary) Name() string { return "boundary" }

func (boundary) Outside(point []float64, box geom.Box, channels int) Resolution {
	l := box.GlobalToLocal(point)
	for a := range l {
		l[a] = math.Max(0, math.Min(1, l[a]))
	}
	return remapped(l, box, channels)
}

type periodic struct{}

func (periodic) Name() string { return "periodic" }

func (periodic) Outside(point []float64, box geom.Box, channels int) Resolution {
	l := box.GlobalToLocal(point)
	for a := range l {
		l[a] -= math.Floor(l[a])
	}
	return remapped(l, box, channels)
}

type symmetric struct{}

func (symmetric) Name() string { return "symmetric" }

func (symmetric) Outside(point []float64, box geom.Box, channels int) Resolution {
	l := box.GlobalToLocal(point)
	for a := range l {
		m := l[a] - 2*math.Floor(l[a]/2)
		if m > 1 {
			m = 2 - m
		}
		l[a] = m
	}
	return remapped(l, box, channels)
}

func remapped(local []float64, box geom.Box, channels int) Resolution {
	for _, v := range local {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Zero.Outside(nil, box, channels)
		}
	}
	return Resolution{Point: box.LocalToGlobal(local)}
}
