package acoustic

import (
	"github.com/quartzlabs/quartz/internal/nn"
)

// Family selects the stage geometry of the acoustic model.
type Family string

const (
	FamilyJasper    Family = "jasper"
	FamilyQuartzNet Family = "quartznet"
)

// ModelConfig selects a model variant. Blocks and Repeat are the B and R of
// the usual BxR naming: B residual units of R convolution blocks each.
type ModelConfig struct {
	Family        Family  `yaml:"family"`
	Blocks        int     `yaml:"blocks"`
	Repeat        int     `yaml:"repeat"`
	InChannels    int     `yaml:"in_channels"`
	Classes       int     `yaml:"classes"`
	NormEps       float64 `yaml:"norm_eps"`
	Separable     bool    `yaml:"separable"`
	DenseResidual bool    `yaml:"dense_residual"`
}

// DefaultModelConfig is QuartzNet 5x5 over 64 mel features and 29 classes
// (28 graphemes plus blank).
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Family:     FamilyQuartzNet,
		Blocks:     5,
		Repeat:     5,
		InChannels: 64,
		Classes:    29,
		NormEps:    1e-3,
		Separable:  true,
	}
}

type stagePlan struct {
	channels []int
	kernels  []int
	dropouts []float64
}

// plan expands the per-stage presets into one entry per block: index 0 is
// the init block, the last two are the final block, everything between is a
// residual unit. The five main stages repeat Blocks/5 times.
func plan(cfg ModelConfig) (stagePlan, error) {
	var channels, kernels []int
	var dropouts []float64
	switch cfg.Family {
	case FamilyJasper:
		channels = []int{256, 256, 384, 512, 640, 768, 896, 1024}
		kernels = []int{11, 11, 13, 17, 21, 25, 29, 1}
		dropouts = []float64{0.2, 0.2, 0.2, 0.2, 0.3, 0.3, 0.4, 0.4}
	case FamilyQuartzNet:
		channels = []int{256, 256, 256, 512, 512, 512, 512, 1024}
		kernels = []int{33, 33, 39, 51, 63, 75, 87, 1}
		dropouts = make([]float64, 8)
	default:
		return stagePlan{}, configErrf("unsupported model family %q", cfg.Family)
	}

	if cfg.Blocks < 5 || cfg.Blocks%5 != 0 {
		return stagePlan{}, configErrf("block count %d must be a positive multiple of 5", cfg.Blocks)
	}
	if cfg.Repeat < 1 {
		return stagePlan{}, configErrf("repeat count %d must be >= 1", cfg.Repeat)
	}

	perStage := cfg.Blocks / 5
	var p stagePlan
	for i := range channels {
		reps := 1
		if i >= 1 && i < len(channels)-2 {
			reps = perStage
		}
		for r := 0; r < reps; r++ {
			p.channels = append(p.channels, channels[i])
			p.kernels = append(p.kernels, kernels[i])
			p.dropouts = append(p.dropouts, dropouts[i])
		}
	}
	return p, nil
}

// Build assembles an unparameterized pipeline for cfg; weights are zeroed
// until LoadParams fills them in.
func Build(cfg ModelConfig) (*Pipeline, error) {
	if cfg.InChannels <= 0 {
		return nil, configErrf("input channel count %d must be positive", cfg.InChannels)
	}
	if cfg.Classes <= 0 {
		return nil, configErrf("class count %d must be positive", cfg.Classes)
	}
	if cfg.NormEps == 0 {
		cfg.NormEps = 1e-3
	}

	p, err := plan(cfg)
	if err != nil {
		return nil, err
	}

	pipe := &Pipeline{dense: cfg.DenseResidual, classes: cfg.Classes}

	initCfg := nn.BlockConfig{
		InChannels:  cfg.InChannels,
		OutChannels: p.channels[0],
		Kernel:      p.kernels[0],
		Stride:      2,
		Pad:         p.kernels[0] / 2,
		UseNorm:     true,
		NormEps:     cfg.NormEps,
		Activation:  nn.ActReLU,
		DropoutRate: p.dropouts[0],
	}
	if cfg.Separable {
		pipe.init = nn.NewDwsConvBlock(initCfg)
	} else {
		pipe.init = nn.NewConvBlock(initCfg)
	}

	in := p.channels[0]
	var denseIn []int
	last := len(p.channels) - 2
	for i := 1; i < last; i++ {
		denseIn = append(denseIn, in)
		unitIn := []int{in}
		if cfg.DenseResidual {
			unitIn = append([]int(nil), denseIn...)
		}
		unit, err := NewResidualUnit(UnitConfig{
			InChannels:    unitIn,
			OutChannels:   p.channels[i],
			Kernel:        p.kernels[i],
			NormEps:       cfg.NormEps,
			DropoutRate:   p.dropouts[i],
			Repeat:        cfg.Repeat,
			Separable:     cfg.Separable,
			DenseResidual: cfg.DenseResidual,
		})
		if err != nil {
			return nil, err
		}
		pipe.units = append(pipe.units, unit)
		in = p.channels[i]
	}

	pipe.final = NewFinalBlock(FinalConfig{
		InChannels:   in,
		Channels:     [2]int{p.channels[last], p.channels[last+1]},
		Kernels:      [2]int{p.kernels[last], p.kernels[last+1]},
		NormEps:      cfg.NormEps,
		DropoutRates: [2]float64{p.dropouts[last], p.dropouts[last+1]},
		Separable:    cfg.Separable,
	})

	pipe.output = nn.NewMaskedConv(p.channels[last+1], cfg.Classes, 1, nn.WithBias(), nn.WithoutMask())
	return pipe, nil
}
