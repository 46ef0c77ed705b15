package nn

import "github.com/quartzlabs/quartz/internal/tensor"

// Activation selects one of the fixed set of pointwise nonlinearities used
// by the feature pipeline.
type Activation int

const (
	ActNone Activation = iota
	ActReLU
	ActReLU6
)

// Apply runs the activation over x in place.
func (a Activation) Apply(x *tensor.Tensor) {
	switch a {
	case ActReLU:
		x.Apply(func(v float64) float64 {
			if v < 0 {
				return 0
			}
			return v
		})
	case ActReLU6:
		x.Apply(func(v float64) float64 {
			if v < 0 {
				return 0
			}
			if v > 6 {
				return 6
			}
			return v
		})
	}
}

func (a Activation) String() string {
	switch a {
	case ActNone:
		return "none"
	case ActReLU:
		return "relu"
	case ActReLU6:
		return "relu6"
	default:
		return "unknown"
	}
}
