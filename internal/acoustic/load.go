package acoustic

import (
	"fmt"

	"github.com/quartzlabs/quartz/internal/nn"
)

// ParamSource is the opaque key-value view the loader reads weights from.
type ParamSource interface {
	Lookup(key string) ([]float64, bool)
}

// LoadParams fills every layer of the pipeline from src. Keys follow the
// block structure: init_block, unit1..unitN (with block1..blockR bodies and
// shortcut or shortcut1..shortcutK projections), final_block.conv1/conv2,
// and output. All arrays must be present and correctly sized.
func (p *Pipeline) LoadParams(src ParamSource) error {
	if err := loadBlock(src, "init_block", p.init); err != nil {
		return err
	}
	for i, unit := range p.units {
		prefix := fmt.Sprintf("unit%d", i+1)
		for j, block := range unit.body {
			if err := loadBlock(src, fmt.Sprintf("%s.block%d", prefix, j+1), block); err != nil {
				return err
			}
		}
		if unit.dense {
			for j, proj := range unit.proj {
				if err := loadBlock(src, fmt.Sprintf("%s.shortcut%d", prefix, j+1), proj); err != nil {
					return err
				}
			}
		} else {
			if err := loadBlock(src, prefix+".shortcut", unit.proj[0]); err != nil {
				return err
			}
		}
	}
	if err := loadBlock(src, "final_block.conv1", p.final.conv1); err != nil {
		return err
	}
	if err := loadBlock(src, "final_block.conv2", p.final.conv2); err != nil {
		return err
	}
	return loadConv(src, "output", p.output)
}

func loadBlock(src ParamSource, prefix string, block nn.Block) error {
	switch b := block.(type) {
	case *nn.ConvBlock:
		if err := loadConv(src, prefix+".conv", b.Conv); err != nil {
			return err
		}
		return loadNorm(src, prefix+".bn", b.Norm)
	case *nn.DwsConvBlock:
		if err := loadConv(src, prefix+".dw_conv", b.Depthwise); err != nil {
			return err
		}
		if err := loadConv(src, prefix+".pw_conv", b.Pointwise); err != nil {
			return err
		}
		return loadNorm(src, prefix+".bn", b.Norm)
	default:
		return configErrf("unknown block type %T at %q", block, prefix)
	}
}

func loadConv(src ParamSource, prefix string, conv *nn.MaskedConv) error {
	flat, err := lookup(src, prefix+".weight")
	if err != nil {
		return err
	}
	outC, inPer, kernel := conv.Weight.Dims()
	if len(flat) != outC*inPer*kernel {
		return configErrf("parameter %q holds %d values, layer wants %dx%dx%d",
			prefix+".weight", len(flat), outC, inPer, kernel)
	}
	for oc := 0; oc < outC; oc++ {
		for ic := 0; ic < inPer; ic++ {
			off := (oc*inPer + ic) * kernel
			copy(conv.Weight.Row(oc, ic), flat[off:off+kernel])
		}
	}
	if conv.Bias != nil {
		bias, err := lookup(src, prefix+".bias")
		if err != nil {
			return err
		}
		if len(bias) != len(conv.Bias) {
			return configErrf("parameter %q holds %d values, layer wants %d", prefix+".bias", len(bias), len(conv.Bias))
		}
		copy(conv.Bias, bias)
	}
	return nil
}

func loadNorm(src ParamSource, prefix string, bn *nn.BatchNorm) error {
	if bn == nil {
		return nil
	}
	for _, part := range []struct {
		key string
		dst []float64
	}{
		{prefix + ".gamma", bn.Gamma},
		{prefix + ".beta", bn.Beta},
		{prefix + ".mean", bn.Mean},
		{prefix + ".var", bn.Variance},
	} {
		values, err := lookup(src, part.key)
		if err != nil {
			return err
		}
		if len(values) != len(part.dst) {
			return configErrf("parameter %q holds %d values, layer wants %d", part.key, len(values), len(part.dst))
		}
		copy(part.dst, values)
	}
	return nil
}

func lookup(src ParamSource, key string) ([]float64, error) {
	values, ok := src.Lookup(key)
	if !ok {
		return nil, configErrf("missing parameter %q", key)
	}
	return values, nil
}
