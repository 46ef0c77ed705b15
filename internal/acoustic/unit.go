package acoustic

import (
	"github.com/quartzlabs/quartz/internal/nn"
	"github.com/quartzlabs/quartz/internal/tensor"
)

// DenseHistory accumulates the (tensor, valid lengths) pair produced before
// each dense-residual unit. It is scoped to a single forward pass: each unit
// appends its own input, and every later unit's shortcut sums a projection
// of every entry.
type DenseHistory struct {
	Tensors []*tensor.Tensor
	Lengths [][]int
}

// Len returns the number of accumulated entries.
func (h *DenseHistory) Len() int { return len(h.Tensors) }

func (h *DenseHistory) append(x *tensor.Tensor, lengths []int) {
	h.Tensors = append(h.Tensors, x)
	h.Lengths = append(h.Lengths, append([]int(nil), lengths...))
}

// UnitConfig describes one residual unit.
type UnitConfig struct {
	// InChannels holds the unit's input width; in dense-residual mode it
	// holds the input width of every unit up to and including this one,
	// oldest first.
	InChannels    []int
	OutChannels   int
	Kernel        int
	NormEps       float64
	DropoutRate   float64
	Repeat        int
	Separable     bool
	DenseResidual bool
}

// ResidualUnit is a group of convolution blocks with a shortcut path. The
// shortcut is either a single 1x1 projection of the unit's input (plain) or
// a sum of per-entry 1x1 projections of the whole dense history. The mode is
// fixed at construction; Forward dispatches on it once, not per block.
type ResidualUnit struct {
	body  []nn.Block
	proj  []*nn.ConvBlock
	dense bool
}

// NewResidualUnit builds a unit. The last body block carries no activation
// or dropout; the residual sum is activated instead.
func NewResidualUnit(cfg UnitConfig) (*ResidualUnit, error) {
	if len(cfg.InChannels) == 0 {
		return nil, configErrf("residual unit needs at least one input width")
	}
	if cfg.Repeat < 1 {
		return nil, configErrf("residual unit repeat must be >= 1, got %d", cfg.Repeat)
	}
	if !cfg.DenseResidual && len(cfg.InChannels) != 1 {
		return nil, configErrf("plain residual unit takes exactly one input width, got %d", len(cfg.InChannels))
	}

	u := &ResidualUnit{dense: cfg.DenseResidual}

	for _, in := range cfg.InChannels {
		u.proj = append(u.proj, nn.NewConvBlock(nn.BlockConfig{
			InChannels:  in,
			OutChannels: cfg.OutChannels,
			Kernel:      1,
			UseNorm:     true,
			NormEps:     cfg.NormEps,
			Activation:  nn.ActNone,
		}))
	}

	in := cfg.InChannels[len(cfg.InChannels)-1]
	for i := 0; i < cfg.Repeat; i++ {
		block := nn.BlockConfig{
			InChannels:  in,
			OutChannels: cfg.OutChannels,
			Kernel:      cfg.Kernel,
			Pad:         cfg.Kernel / 2,
			UseNorm:     true,
			NormEps:     cfg.NormEps,
			Activation:  nn.ActReLU,
			DropoutRate: cfg.DropoutRate,
		}
		if i == cfg.Repeat-1 {
			block.Activation = nn.ActNone
			block.DropoutRate = 0
		}
		if cfg.Separable {
			u.body = append(u.body, nn.NewDwsConvBlock(block))
		} else {
			u.body = append(u.body, nn.NewConvBlock(block))
		}
		in = cfg.OutChannels
	}
	return u, nil
}

// Dense reports whether the unit uses the dense-residual shortcut.
func (u *ResidualUnit) Dense() bool { return u.dense }

// ShortcutTerms returns the number of projections contributing to the
// shortcut sum.
func (u *ResidualUnit) ShortcutTerms() int { return len(u.proj) }

// Forward runs the unit. In dense mode hist must be non-nil; the unit
// appends its input to hist before computing the shortcut, so after unit k
// the history holds exactly k entries.
func (u *ResidualUnit) Forward(x *tensor.Tensor, lengths []int, hist *DenseHistory) (*tensor.Tensor, []int, error) {
	var shortcut *tensor.Tensor
	if u.dense {
		hist.append(x, lengths)
		if hist.Len() != len(u.proj) {
			return nil, nil, configErrf("dense history holds %d entries, unit expects %d", hist.Len(), len(u.proj))
		}
		for i := 0; i < hist.Len(); i++ {
			proj, _, err := u.proj[i].Forward(hist.Tensors[i], hist.Lengths[i])
			if err != nil {
				return nil, nil, err
			}
			if shortcut == nil {
				shortcut = proj
				continue
			}
			if err := shortcut.Add(proj); err != nil {
				return nil, nil, err
			}
		}
	} else {
		var err error
		shortcut, _, err = u.proj[0].Forward(x, lengths)
		if err != nil {
			return nil, nil, err
		}
	}

	var err error
	for _, block := range u.body {
		x, lengths, err = block.Forward(x, lengths)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := x.Add(shortcut); err != nil {
		return nil, nil, err
	}
	nn.ActReLU.Apply(x)
	return x, lengths, nil
}
