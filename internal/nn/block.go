package nn

import (
	"github.com/quartzlabs/quartz/internal/tensor"
)

// Block is one stage of the feature pipeline: it consumes a (tensor, valid
// lengths) pair and produces a new one.
type Block interface {
	Forward(x *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error)
}

// BlockConfig carries the shared knobs of a convolution block.
type BlockConfig struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Pad         int
	Dilation    int
	Groups      int
	UseNorm     bool
	NormEps     float64
	Activation  Activation
	DropoutRate float64
}

func (cfg BlockConfig) withDefaults() BlockConfig {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Dilation == 0 {
		cfg.Dilation = 1
	}
	if cfg.Groups == 0 {
		cfg.Groups = 1
	}
	if cfg.NormEps == 0 {
		cfg.NormEps = 1e-5
	}
	return cfg
}

// ConvBlock is masked convolution + frozen batch norm + activation + dropout.
// Dropout is a no-op at inference and exists only so configurations carrying
// a dropout rate stay loadable.
type ConvBlock struct {
	Conv *MaskedConv
	Norm *BatchNorm
	Act  Activation
}

// NewConvBlock builds a plain convolution block.
func NewConvBlock(cfg BlockConfig) *ConvBlock {
	cfg = cfg.withDefaults()
	b := &ConvBlock{
		Conv: NewMaskedConv(cfg.InChannels, cfg.OutChannels, cfg.Kernel,
			WithStride(cfg.Stride), WithPad(cfg.Pad), WithDilation(cfg.Dilation), WithGroups(cfg.Groups)),
		Act: cfg.Activation,
	}
	if cfg.UseNorm {
		b.Norm = NewBatchNorm(cfg.OutChannels, cfg.NormEps)
	}
	return b
}

func (b *ConvBlock) Forward(x *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error) {
	x, lengths, err := b.Conv.Forward(x, lengths)
	if err != nil {
		return nil, nil, err
	}
	if b.Norm != nil {
		b.Norm.Apply(x)
	}
	b.Act.Apply(x)
	return x, lengths, nil
}

// DwsConvBlock is the depthwise-separable variant: a depthwise masked
// convolution (one filter group per channel) followed by a grouped pointwise
// convolution, with a channel shuffle when the pointwise stage is grouped so
// later depthwise stages do not keep seeing the same channel subset.
type DwsConvBlock struct {
	Depthwise *MaskedConv
	Pointwise *MaskedConv
	Shuffle   int // shuffle group count; 0 or 1 means no shuffle
	Norm      *BatchNorm
	Act       Activation
}

// NewDwsConvBlock builds a depthwise-separable block. cfg.Groups applies to
// the pointwise stage; the depthwise stage always uses one group per channel.
func NewDwsConvBlock(cfg BlockConfig) *DwsConvBlock {
	cfg = cfg.withDefaults()
	b := &DwsConvBlock{
		Depthwise: NewMaskedConv(cfg.InChannels, cfg.InChannels, cfg.Kernel,
			WithStride(cfg.Stride), WithPad(cfg.Pad), WithDilation(cfg.Dilation), WithGroups(cfg.InChannels)),
		Pointwise: NewMaskedConv(cfg.InChannels, cfg.OutChannels, 1, WithGroups(cfg.Groups)),
		Act:       cfg.Activation,
	}
	if cfg.Groups > 1 {
		b.Shuffle = cfg.Groups
	}
	if cfg.UseNorm {
		b.Norm = NewBatchNorm(cfg.OutChannels, cfg.NormEps)
	}
	return b
}

func (b *DwsConvBlock) Forward(x *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error) {
	x, lengths, err := b.Depthwise.Forward(x, lengths)
	if err != nil {
		return nil, nil, err
	}
	x, lengths, err = b.Pointwise.Forward(x, lengths)
	if err != nil {
		return nil, nil, err
	}
	if b.Shuffle > 1 {
		x = x.ShuffleChannels(b.Shuffle)
	}
	if b.Norm != nil {
		b.Norm.Apply(x)
	}
	b.Act.Apply(x)
	return x, lengths, nil
}
