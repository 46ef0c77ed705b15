package nn

import (
	"fmt"

	"github.com/quartzlabs/quartz/internal/tensor"
)

// OutLen is the valid-length arithmetic shared by every masked convolution:
// the number of real (non-padding) time positions that survive a convolution
// with the given geometry. It matches tensor.Conv1D's actual output extent
// exactly, so masks and tensor shapes never diverge.
func OutLen(length, kernel, stride, pad, dilation int) int {
	return tensor.ConvOutLen(length, kernel, tensor.ConvOpts{
		Stride:   stride,
		Pad:      pad,
		Dilation: dilation,
	})
}

// MaskedConv is a 1-D convolution that zeroes padding positions before they
// can be mixed into real values, then recomputes per-item valid lengths.
// Weights are immutable after construction; Forward is a stateless transform.
type MaskedConv struct {
	Weight *tensor.Tensor // outChannels x inChannels/groups x kernel
	Bias   []float64      // nil when the layer has no bias

	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Pad         int
	Dilation    int
	Groups      int
	Mask        bool
}

// ConvOpt sets optional convolution geometry.
type ConvOpt func(*MaskedConv)

func WithStride(s int) ConvOpt   { return func(c *MaskedConv) { c.Stride = s } }
func WithPad(p int) ConvOpt      { return func(c *MaskedConv) { c.Pad = p } }
func WithDilation(d int) ConvOpt { return func(c *MaskedConv) { c.Dilation = d } }
func WithGroups(g int) ConvOpt   { return func(c *MaskedConv) { c.Groups = g } }
func WithBias() ConvOpt {
	return func(c *MaskedConv) { c.Bias = make([]float64, c.OutChannels) }
}

// WithoutMask disables masking and length recomputation; the valid length
// passes through unchanged.
func WithoutMask() ConvOpt { return func(c *MaskedConv) { c.Mask = false } }

// NewMaskedConv builds a masked convolution with zeroed weights; parameters
// are filled in by the model loader.
func NewMaskedConv(inChannels, outChannels, kernel int, opts ...ConvOpt) *MaskedConv {
	c := &MaskedConv{
		InChannels:  inChannels,
		OutChannels: outChannels,
		Kernel:      kernel,
		Stride:      1,
		Dilation:    1,
		Groups:      1,
		Mask:        true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Weight = tensor.New(outChannels, inChannels/c.Groups, kernel)
	return c
}

// Forward masks x per item, convolves, and returns the convolved tensor with
// updated valid lengths. The mask is evaluated at full input resolution so
// padding is removed before strided subsampling can mix it into real values.
func (c *MaskedConv) Forward(x *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error) {
	batch, _, _ := x.Dims()
	if len(lengths) != batch {
		return nil, nil, shapeErrf("length vector has %d entries for batch of %d", len(lengths), batch)
	}

	outLengths := make([]int, batch)
	if c.Mask {
		x = x.Clone()
		for b := 0; b < batch; b++ {
			x.ZeroFrom(b, lengths[b])
			outLengths[b] = OutLen(lengths[b], c.Kernel, c.Stride, c.Pad, c.Dilation)
			if outLengths[b] < 0 {
				// An already-empty item can fall below zero under a
				// dilated kernel; it stays an empty item.
				outLengths[b] = 0
			}
		}
	} else {
		copy(outLengths, lengths)
	}

	out, err := tensor.Conv1D(x, c.Weight, c.Bias, tensor.ConvOpts{
		Stride:   c.Stride,
		Pad:      c.Pad,
		Dilation: c.Dilation,
		Groups:   c.Groups,
	})
	if err != nil {
		return nil, nil, shapeErrf("conv1d: %v", err)
	}
	return out, outLengths, nil
}

func (c *MaskedConv) String() string {
	return fmt.Sprintf("MaskedConv(%d->%d, k=%d, s=%d, p=%d, d=%d, g=%d, mask=%v)",
		c.InChannels, c.OutChannels, c.Kernel, c.Stride, c.Pad, c.Dilation, c.Groups, c.Mask)
}
