package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ConvOpts parameterizes a 1-D convolution.
type ConvOpts struct {
	Stride   int
	Pad      int
	Dilation int
	Groups   int
}

func (o ConvOpts) normalized() ConvOpts {
	if o.Stride == 0 {
		o.Stride = 1
	}
	if o.Dilation == 0 {
		o.Dilation = 1
	}
	if o.Groups == 0 {
		o.Groups = 1
	}
	return o
}

// ConvOutLen is the closed-form output length of a 1-D convolution over an
// input of the given length. The division floors, so a zero-length input
// stays at zero through a strided layer. The result can go non-positive for
// inputs shorter than the effective kernel span; callers decide whether that
// is an error.
func ConvOutLen(length, kernel int, o ConvOpts) int {
	o = o.normalized()
	n := length + 2*o.Pad - o.Dilation*(kernel-1) - 1
	q := n / o.Stride
	if n%o.Stride != 0 && n < 0 {
		q--
	}
	return q + 1
}

// Conv1D computes a grouped, strided, dilated 1-D convolution of x with the
// weight tensor w laid out outChannels x inChannels/groups x kernel. bias may
// be nil; otherwise it must have one entry per output channel.
func Conv1D(x, w *Tensor, bias []float64, o ConvOpts) (*Tensor, error) {
	o = o.normalized()
	outC, wIn, kernel := w.Dims()
	batch, inC, steps := x.Dims()

	if o.Stride < 1 || o.Dilation < 1 || o.Groups < 1 || o.Pad < 0 {
		return nil, fmt.Errorf("tensor: bad conv options %+v", o)
	}
	if inC%o.Groups != 0 || outC%o.Groups != 0 {
		return nil, fmt.Errorf("tensor: channels (%d in, %d out) not divisible by %d groups", inC, outC, o.Groups)
	}
	if wIn != inC/o.Groups {
		return nil, fmt.Errorf("tensor: weight expects %d input channels per group, input has %d", wIn, inC/o.Groups)
	}
	if bias != nil && len(bias) != outC {
		return nil, fmt.Errorf("tensor: bias length %d != %d output channels", len(bias), outC)
	}

	outSteps := ConvOutLen(steps, kernel, o)
	if outSteps < 1 {
		return nil, fmt.Errorf("tensor: conv output length %d for input length %d", outSteps, steps)
	}

	out := New(batch, outC, outSteps)
	inPerGroup := inC / o.Groups
	outPerGroup := outC / o.Groups

	for b := 0; b < batch; b++ {
		for oc := 0; oc < outC; oc++ {
			group := oc / outPerGroup
			dst := out.Row(b, oc)
			for ic := 0; ic < inPerGroup; ic++ {
				src := x.Row(b, group*inPerGroup+ic)
				wRow := w.Row(oc, ic)
				convolveRow(dst, src, wRow, o)
			}
			if bias != nil {
				floats.AddConst(bias[oc], dst)
			}
		}
	}
	return out, nil
}

// convolveRow accumulates the 1-channel convolution of src with wRow into dst.
func convolveRow(dst, src, wRow []float64, o ConvOpts) {
	kernel := len(wRow)
	steps := len(src)
	for t := range dst {
		start := t*o.Stride - o.Pad
		if o.Dilation == 1 && start >= 0 && start+kernel <= steps {
			dst[t] += floats.Dot(wRow, src[start:start+kernel])
			continue
		}
		var sum float64
		for j := 0; j < kernel; j++ {
			pos := start + j*o.Dilation
			if pos < 0 || pos >= steps {
				continue
			}
			sum += wRow[j] * src[pos]
		}
		dst[t] += sum
	}
}
