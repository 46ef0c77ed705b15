package nn

import (
	"math"

	"github.com/quartzlabs/quartz/internal/tensor"
)

// BatchNorm applies frozen batch normalization per channel. The model runs
// inference only, so the running statistics are fixed at construction and
// the transform collapses to an affine scale/shift.
type BatchNorm struct {
	Gamma    []float64
	Beta     []float64
	Mean     []float64
	Variance []float64
	Eps      float64
}

// NewBatchNorm returns identity-initialized frozen statistics for the given
// channel count.
func NewBatchNorm(channels int, eps float64) *BatchNorm {
	bn := &BatchNorm{
		Gamma:    make([]float64, channels),
		Beta:     make([]float64, channels),
		Mean:     make([]float64, channels),
		Variance: make([]float64, channels),
		Eps:      eps,
	}
	for i := range bn.Gamma {
		bn.Gamma[i] = 1
		bn.Variance[i] = 1
	}
	return bn
}

// Apply normalizes x in place.
func (bn *BatchNorm) Apply(x *tensor.Tensor) {
	batch, channels, _ := x.Dims()
	for c := 0; c < channels; c++ {
		scale := bn.Gamma[c] / math.Sqrt(bn.Variance[c]+bn.Eps)
		shift := bn.Beta[c] - bn.Mean[c]*scale
		for b := 0; b < batch; b++ {
			row := x.Row(b, c)
			for i, v := range row {
				row[i] = v*scale + shift
			}
		}
	}
}
