// Package tensor provides the rank-3 numeric arrays used by the acoustic
// feature pipeline. A Tensor is laid out batch x channels x time with a
// contiguous float64 backing slice, which keeps the per-(item,channel) rows
// addressable as plain slices for gonum vector routines.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense rank-3 array (batch x channels x time).
type Tensor struct {
	data     []float64
	batch    int
	channels int
	steps    int
}

// New allocates a zeroed tensor with the given dimensions.
func New(batch, channels, steps int) *Tensor {
	if batch < 0 || channels < 0 || steps < 0 {
		panic(fmt.Sprintf("tensor: negative dimension (%d, %d, %d)", batch, channels, steps))
	}
	return &Tensor{
		data:     make([]float64, batch*channels*steps),
		batch:    batch,
		channels: channels,
		steps:    steps,
	}
}

// Dims returns (batch, channels, steps).
func (t *Tensor) Dims() (int, int, int) {
	return t.batch, t.channels, t.steps
}

// Batch returns the batch dimension.
func (t *Tensor) Batch() int { return t.batch }

// Channels returns the channel dimension.
func (t *Tensor) Channels() int { return t.channels }

// Steps returns the time dimension.
func (t *Tensor) Steps() int { return t.steps }

// At returns the element at (b, c, s).
func (t *Tensor) At(b, c, s int) float64 {
	return t.data[(b*t.channels+c)*t.steps+s]
}

// Set stores v at (b, c, s).
func (t *Tensor) Set(b, c, s int, v float64) {
	t.data[(b*t.channels+c)*t.steps+s] = v
}

// Row returns the time series for (b, c) as a slice aliasing the tensor's
// backing storage. Mutating the slice mutates the tensor.
func (t *Tensor) Row(b, c int) []float64 {
	off := (b*t.channels + c) * t.steps
	return t.data[off : off+t.steps]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{
		data:     make([]float64, len(t.data)),
		batch:    t.batch,
		channels: t.channels,
		steps:    t.steps,
	}
	copy(out.data, t.data)
	return out
}

// Add accumulates other into t elementwise. Dimensions must match.
func (t *Tensor) Add(other *Tensor) error {
	if t.batch != other.batch || t.channels != other.channels || t.steps != other.steps {
		return fmt.Errorf("tensor: add dimension mismatch (%d,%d,%d) vs (%d,%d,%d)",
			t.batch, t.channels, t.steps, other.batch, other.channels, other.steps)
	}
	floats.Add(t.data, other.data)
	return nil
}

// Apply replaces every element x with f(x).
func (t *Tensor) Apply(f func(float64) float64) {
	for i, v := range t.data {
		t.data[i] = f(v)
	}
}

// ZeroFrom zeroes all time positions >= from for batch item b across every
// channel. Positions outside [0, steps) are clamped.
func (t *Tensor) ZeroFrom(b, from int) {
	if from < 0 {
		from = 0
	}
	if from >= t.steps {
		return
	}
	for c := 0; c < t.channels; c++ {
		row := t.Row(b, c)
		for i := from; i < t.steps; i++ {
			row[i] = 0
		}
	}
}

// ShuffleChannels permutes channels by splitting them into groups and
// interleaving, the transpose-of-grouping permutation used after grouped
// pointwise convolutions. channels must divide evenly by groups.
func (t *Tensor) ShuffleChannels(groups int) *Tensor {
	if groups <= 1 {
		return t.Clone()
	}
	if t.channels%groups != 0 {
		panic(fmt.Sprintf("tensor: %d channels not divisible by %d groups", t.channels, groups))
	}
	perGroup := t.channels / groups
	out := New(t.batch, t.channels, t.steps)
	for b := 0; b < t.batch; b++ {
		for g := 0; g < groups; g++ {
			for c := 0; c < perGroup; c++ {
				copy(out.Row(b, c*groups+g), t.Row(b, g*perGroup+c))
			}
		}
	}
	return out
}
