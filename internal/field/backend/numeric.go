package backend

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Numeric is the default CPU Backend built on gonum's float kernels.
type Numeric struct {
	workers int

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Numeric backend.
type Option func(*Numeric)

// WithSeed makes RandomUniform deterministic.
func WithSeed(seed uint64) Option {
	return func(n *Numeric) {
		n.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithWorkers bounds the number of goroutines used by Scatter and
// Multilinear. Values below 1 mean GOMAXPROCS.
func WithWorkers(workers int) Option {
	return func(n *Numeric) {
		n.workers = workers
	}
}

// NewNumeric creates a CPU backend.
func NewNumeric(opts ...Option) *Numeric {
	n := &Numeric{}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		seed := uint64(time.Now().UnixNano())
		n.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	if n.workers < 1 {
		n.workers = runtime.GOMAXPROCS(0)
	}
	return n
}

var _ Backend = (*Numeric)(nil)

// Round implements Backend.
func (n *Numeric) Round(t Tensor) Tensor {
	out := make([]float64, len(t.data))
	for i, v := range t.data {
		out[i] = scalar.Round(v, 0)
	}
	return wrap(t.shape, out)
}

// Floor implements Backend.
func (n *Numeric) Floor(t Tensor) Tensor {
	out := make([]float64, len(t.data))
	for i, v := range t.data {
		out[i] = math.Floor(v)
	}
	return wrap(t.shape, out)
}

// ToInt implements Backend.
func (n *Numeric) ToInt(t Tensor) []int {
	out := make([]int, len(t.data))
	for i, v := range t.data {
		out[i] = int(v)
	}
	return out
}

// WhereGreater implements Backend.
func (n *Numeric) WhereGreater(t Tensor, threshold float64) Tensor {
	rank := len(t.shape)
	strides := t.shape.strides()
	var out []float64
	for flat, v := range t.data {
		if !(v > threshold) {
			continue
		}
		rem := flat
		for a := 0; a < rank; a++ {
			out = append(out, float64(rem/strides[a]))
			rem %= strides[a]
		}
	}
	if out == nil {
		out = []float64{}
	}
	return wrap(Shape{len(out) / max(rank, 1), rank}, out)
}

// RandomUniform implements Backend.
func (n *Numeric) RandomUniform(shape Shape) Tensor {
	out := make([]float64, shape.Size())
	n.mu.Lock()
	for i := range out {
		out[i] = n.rng.Float64()
	}
	n.mu.Unlock()
	return wrap(shape, out)
}

// Concat implements Backend.
func (n *Numeric) Concat(ts []Tensor, axis int) (Tensor, error) {
	if len(ts) == 0 {
		return Tensor{}, fmt.Errorf("%w: concat of zero tensors", ErrInvalidArgument)
	}
	rank := len(ts[0].shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return Tensor{}, fmt.Errorf("%w: concat axis %d for rank %d", ErrInvalidArgument, axis, rank)
	}
	outShape := ts[0].shape.Clone()
	outShape[axis] = 0
	for i, t := range ts {
		if len(t.shape) != rank {
			return Tensor{}, fmt.Errorf("%w: concat input %d has rank %d, want %d", ErrShapeMismatch, i, len(t.shape), rank)
		}
		for a := 0; a < rank; a++ {
			if a != axis && t.shape[a] != ts[0].shape[a] {
				return Tensor{}, fmt.Errorf("%w: concat input %d has shape %v, want %v off axis %d", ErrShapeMismatch, i, t.shape, ts[0].shape, axis)
			}
		}
		outShape[axis] += t.shape[axis]
	}

	outer := Shape(outShape[:axis]).Size()
	inner := Shape(outShape[axis+1:]).Size()
	out := make([]float64, 0, outShape.Size())
	for o := 0; o < outer; o++ {
		for _, t := range ts {
			block := t.shape[axis] * inner
			out = append(out, t.data[o*block:(o+1)*block]...)
		}
	}
	return wrap(outShape, out), nil
}

// Stack implements Backend.
func (n *Numeric) Stack(ts []Tensor) (Tensor, error) {
	if len(ts) == 0 {
		return Tensor{}, fmt.Errorf("%w: stack of zero tensors", ErrInvalidArgument)
	}
	for i, t := range ts[1:] {
		if !t.shape.Equal(ts[0].shape) {
			return Tensor{}, fmt.Errorf("%w: stack input %d has shape %v, want %v", ErrShapeMismatch, i+1, t.shape, ts[0].shape)
		}
	}
	outShape := append(Shape{len(ts)}, ts[0].shape...)
	out := make([]float64, 0, outShape.Size())
	for _, t := range ts {
		out = append(out, t.data...)
	}
	return wrap(outShape, out), nil
}

// StaticShape implements Backend.
func (n *Numeric) StaticShape(t Tensor) Shape {
	s := t.shape.Clone()
	if t.dynamic && len(s) > 0 {
		s[0] = Unknown
	}
	return s
}

// DynamicShape implements Backend.
func (n *Numeric) DynamicShape(t Tensor) Shape { return t.shape.Clone() }

// Scatter implements Backend. Rows are bucketed by destination with a
// counting sort, then each bucket is reduced over its sorted values so
// the result does not depend on row order.
func (n *Numeric) Scatter(indices []int, values Tensor, size int, mode Combine) (Tensor, error) {
	if mode != CombineSum && mode != CombineMean {
		return Tensor{}, fmt.Errorf("%w: combine mode %d", ErrInvalidArgument, mode)
	}
	if size < 0 {
		return Tensor{}, fmt.Errorf("%w: scatter size %d", ErrInvalidArgument, size)
	}
	if len(values.shape) != 2 || values.shape[0] != len(indices) {
		return Tensor{}, fmt.Errorf("%w: scatter values %v for %d indices", ErrShapeMismatch, values.shape, len(indices))
	}
	channels := values.shape[1]

	offsets := make([]int, size+1)
	for i, dst := range indices {
		if dst < 0 {
			continue
		}
		if dst >= size {
			return Tensor{}, fmt.Errorf("%w: scatter index %d of row %d outside [0, %d)", ErrInvalidArgument, dst, i, size)
		}
		offsets[dst+1]++
	}
	var occupied []int
	for c := 0; c < size; c++ {
		if offsets[c+1] > 0 {
			occupied = append(occupied, c)
		}
		offsets[c+1] += offsets[c]
	}
	order := make([]int, offsets[size])
	next := append([]int(nil), offsets[:size]...)
	for row, dst := range indices {
		if dst < 0 {
			continue
		}
		order[next[dst]] = row
		next[dst]++
	}

	out := make([]float64, size*channels)
	n.parallelRange(0, len(occupied), func(k int) {
		cell := occupied[k]
		rows := order[offsets[cell]:offsets[cell+1]]
		buf := make([]float64, len(rows))
		for c := 0; c < channels; c++ {
			for j, row := range rows {
				buf[j] = values.data[row*channels+c]
			}
			sort.Float64s(buf)
			v := floats.Sum(buf)
			if mode == CombineMean {
				v /= float64(len(rows))
			}
			out[cell*channels+c] = v
		}
	})
	return wrap(Shape{size, channels}, out), nil
}

// Multilinear implements Backend. Coordinates are clamped to the grid;
// a NaN coordinate yields NaN on every channel.
func (n *Numeric) Multilinear(grid Tensor, coords Tensor) (Tensor, error) {
	if len(coords.shape) != 2 {
		return Tensor{}, fmt.Errorf("%w: coords must be (count, rank), got %v", ErrShapeMismatch, coords.shape)
	}
	rank := coords.shape[1]
	if len(grid.shape) != rank+1 {
		return Tensor{}, fmt.Errorf("%w: grid %v for rank-%d coords", ErrShapeMismatch, grid.shape, rank)
	}
	spatial := grid.shape[:rank]
	for a, s := range spatial {
		if s < 1 {
			return Tensor{}, fmt.Errorf("%w: empty grid axis %d", ErrShapeMismatch, a)
		}
	}
	channels := grid.shape[rank]
	strides := spatial.strides()
	count := coords.shape[0]

	out := make([]float64, count*channels)
	n.parallelRange(0, count, func(p int) {
		dst := out[p*channels : (p+1)*channels]
		base := make([]int, rank)
		frac := make([]float64, rank)
		for a := 0; a < rank; a++ {
			c := coords.data[p*rank+a]
			if math.IsNaN(c) {
				for i := range dst {
					dst[i] = math.NaN()
				}
				return
			}
			hi := float64(spatial[a] - 1)
			u := math.Max(0, math.Min(c, hi))
			i := int(math.Floor(u))
			if i > spatial[a]-2 {
				i = max(spatial[a]-2, 0)
			}
			base[a] = i
			frac[a] = u - float64(i)
		}
		for corner := 0; corner < 1<<rank; corner++ {
			w := 1.0
			off := 0
			for a := 0; a < rank; a++ {
				if corner>>a&1 == 1 {
					w *= frac[a]
					off += (base[a] + 1) * strides[a]
				} else {
					w *= 1 - frac[a]
					off += base[a] * strides[a]
				}
			}
			if w == 0 {
				continue
			}
			floats.AddScaled(dst, w, grid.data[off*channels:(off+1)*channels])
		}
	})
	return wrap(Shape{count, channels}, out), nil
}
