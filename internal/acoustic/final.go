package acoustic

import (
	"github.com/quartzlabs/quartz/internal/nn"
	"github.com/quartzlabs/quartz/internal/tensor"
)

// FinalBlock closes the feature pipeline with a dilated convolution block
// followed by a plain one.
type FinalBlock struct {
	conv1 nn.Block
	conv2 *nn.ConvBlock
}

// FinalConfig describes the final block's two stages.
type FinalConfig struct {
	InChannels   int
	Channels     [2]int
	Kernels      [2]int
	NormEps      float64
	DropoutRates [2]float64
	Separable    bool
}

// NewFinalBlock builds the final block. The first convolution uses dilation
// 2 with padding sized to keep the dilated receptive field causal-symmetric.
func NewFinalBlock(cfg FinalConfig) *FinalBlock {
	first := nn.BlockConfig{
		InChannels:  cfg.InChannels,
		OutChannels: cfg.Channels[0],
		Kernel:      cfg.Kernels[0],
		Pad:         2*(cfg.Kernels[0]/2) - 1,
		Dilation:    2,
		UseNorm:     true,
		NormEps:     cfg.NormEps,
		Activation:  nn.ActReLU,
		DropoutRate: cfg.DropoutRates[0],
	}
	fb := &FinalBlock{}
	if cfg.Separable {
		fb.conv1 = nn.NewDwsConvBlock(first)
	} else {
		fb.conv1 = nn.NewConvBlock(first)
	}
	fb.conv2 = nn.NewConvBlock(nn.BlockConfig{
		InChannels:  cfg.Channels[0],
		OutChannels: cfg.Channels[1],
		Kernel:      cfg.Kernels[1],
		Pad:         cfg.Kernels[1] / 2,
		UseNorm:     true,
		NormEps:     cfg.NormEps,
		Activation:  nn.ActReLU,
		DropoutRate: cfg.DropoutRates[1],
	})
	return fb
}

func (fb *FinalBlock) Forward(x *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error) {
	x, lengths, err := fb.conv1.Forward(x, lengths)
	if err != nil {
		return nil, nil, err
	}
	return fb.conv2.Forward(x, lengths)
}
