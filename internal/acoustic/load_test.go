package acoustic

import (
	"errors"
	"strings"
	"testing"

	"github.com/quartzlabs/quartz/internal/nn"
	"github.com/quartzlabs/quartz/internal/params"
)

func TestLoadParamsMissingKey(t *testing.T) {
	pipe := smallPipeline(t)
	err := pipe.LoadParams(params.NewStore(nil))
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "init_block.conv.weight") {
		t.Fatalf("error should name the first missing key, got %v", err)
	}
}

func TestLoadConvBlock(t *testing.T) {
	block := nn.NewConvBlock(nn.BlockConfig{
		InChannels:  2,
		OutChannels: 2,
		Kernel:      3,
		UseNorm:     true,
	})

	weight := make([]float64, 2*2*3)
	for i := range weight {
		weight[i] = float64(i)
	}
	src := params.NewStore(map[string][]float64{
		"b.conv.weight": weight,
		"b.bn.gamma":    {1, 2},
		"b.bn.beta":     {3, 4},
		"b.bn.mean":     {5, 6},
		"b.bn.var":      {7, 8},
	})
	if err := loadBlock(src, "b", block); err != nil {
		t.Fatalf("load block: %v", err)
	}

	// Row (oc=1, ic=0) starts at offset 1*2*3 in the flat layout.
	if got := block.Conv.Weight.Row(1, 0); got[0] != 6 || got[2] != 8 {
		t.Fatalf("weight row = %v, want [6 7 8]", got)
	}
	if block.Norm.Gamma[1] != 2 || block.Norm.Variance[0] != 7 {
		t.Fatal("norm statistics not loaded")
	}
}

func TestLoadConvBlockSizeMismatch(t *testing.T) {
	block := nn.NewConvBlock(nn.BlockConfig{InChannels: 2, OutChannels: 2, Kernel: 3})
	src := params.NewStore(map[string][]float64{
		"b.conv.weight": make([]float64, 5),
	})
	err := loadBlock(src, "b", block)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for wrong array size, got %v", err)
	}
}

func TestLoadDwsBlockKeys(t *testing.T) {
	block := nn.NewDwsConvBlock(nn.BlockConfig{
		InChannels:  2,
		OutChannels: 2,
		Kernel:      3,
		UseNorm:     true,
	})
	src := params.NewStore(map[string][]float64{
		"b.dw_conv.weight": make([]float64, 2*1*3),
		"b.pw_conv.weight": {1, 2, 3, 4},
		"b.bn.gamma":       {1, 1},
		"b.bn.beta":        {0, 0},
		"b.bn.mean":        {0, 0},
		"b.bn.var":         {1, 1},
	})
	if err := loadBlock(src, "b", block); err != nil {
		t.Fatalf("load separable block: %v", err)
	}
	if got := block.Pointwise.Weight.At(1, 1, 0); got != 4 {
		t.Fatalf("pointwise weight = %v, want 4", got)
	}
}

func TestLoadOutputBias(t *testing.T) {
	conv := nn.NewMaskedConv(2, 2, 1, nn.WithBias(), nn.WithoutMask())
	src := params.NewStore(map[string][]float64{
		"output.weight": {1, 2, 3, 4},
		"output.bias":   {0.5, -0.5},
	})
	if err := loadConv(src, "output", conv); err != nil {
		t.Fatalf("load output conv: %v", err)
	}
	if conv.Bias[1] != -0.5 {
		t.Fatalf("bias = %v, want [0.5 -0.5]", conv.Bias)
	}
}
