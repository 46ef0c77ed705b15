package acoustic

import (
	"gonum.org/v1/gonum/floats"

	"github.com/quartzlabs/quartz/internal/nn"
	"github.com/quartzlabs/quartz/internal/tensor"
)

// Pipeline is the full acoustic feature pipeline: init block, residual
// units, final block, and the 1x1 logit projection. It is stateless across
// calls; the dense history, when active, lives for one Forward only.
type Pipeline struct {
	init    nn.Block
	units   []*ResidualUnit
	final   *FinalBlock
	output  *nn.MaskedConv
	dense   bool
	classes int
}

// Units returns the residual units in order, for inspection.
func (p *Pipeline) Units() []*ResidualUnit { return p.units }

// Classes returns the logit dimensionality (vocabulary plus blank).
func (p *Pipeline) Classes() int { return p.classes }

// Forward maps a (features, valid lengths) batch to per-frame class logits
// shaped batch x time x classes with the final valid lengths.
func (p *Pipeline) Forward(features *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error) {
	x, lengths, err := p.init.Forward(features, lengths)
	if err != nil {
		return nil, nil, err
	}

	var hist *DenseHistory
	if p.dense {
		hist = &DenseHistory{}
	}
	for _, unit := range p.units {
		x, lengths, err = unit.Forward(x, lengths, hist)
		if err != nil {
			return nil, nil, err
		}
	}

	x, lengths, err = p.final.Forward(x, lengths)
	if err != nil {
		return nil, nil, err
	}

	x, lengths, err = p.output.Forward(x, lengths)
	if err != nil {
		return nil, nil, err
	}
	return transposeToTimeMajor(x), lengths, nil
}

// transposeToTimeMajor rearranges batch x classes x time into
// batch x time x classes so each frame's logits are one contiguous row.
func transposeToTimeMajor(x *tensor.Tensor) *tensor.Tensor {
	batch, classes, steps := x.Dims()
	out := tensor.New(batch, steps, classes)
	for b := 0; b < batch; b++ {
		for c := 0; c < classes; c++ {
			row := x.Row(b, c)
			for t := 0; t < steps; t++ {
				out.Set(b, t, c, row[t])
			}
		}
	}
	return out
}

// ArgMax reduces time-major logits to the best class index per frame,
// truncated to each item's valid length.
func ArgMax(logits *tensor.Tensor, lengths []int) [][]int {
	batch, steps, _ := logits.Dims()
	out := make([][]int, batch)
	for b := 0; b < batch; b++ {
		valid := lengths[b]
		if valid > steps {
			valid = steps
		}
		indices := make([]int, valid)
		for t := 0; t < valid; t++ {
			indices[t] = floats.MaxIdx(logits.Row(b, t))
		}
		out[b] = indices
	}
	return out
}
