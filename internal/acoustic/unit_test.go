package acoustic

import (
	"errors"
	"math"
	"testing"

	"github.com/quartzlabs/quartz/internal/tensor"
)

func TestNewResidualUnitValidation(t *testing.T) {
	var cfgErr *ConfigurationError

	_, err := NewResidualUnit(UnitConfig{OutChannels: 4, Kernel: 3, Repeat: 1})
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for missing input widths, got %v", err)
	}

	_, err = NewResidualUnit(UnitConfig{InChannels: []int{4}, OutChannels: 4, Kernel: 3, Repeat: 0})
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for zero repeat, got %v", err)
	}

	_, err = NewResidualUnit(UnitConfig{InChannels: []int{4, 4}, OutChannels: 4, Kernel: 3, Repeat: 1})
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for plain unit with two widths, got %v", err)
	}
}

// With zeroed body weights the unit reduces to ReLU(shortcut), which makes
// the projection path directly observable.
func TestPlainUnitShortcutPath(t *testing.T) {
	unit, err := NewResidualUnit(UnitConfig{
		InChannels:  []int{1},
		OutChannels: 1,
		Kernel:      3,
		Repeat:      2,
	})
	if err != nil {
		t.Fatalf("new unit: %v", err)
	}
	unit.proj[0].Conv.Weight.Set(0, 0, 0, 1)

	x := tensor.New(1, 1, 4)
	for i, v := range []float64{1, -2, 3, -4} {
		x.Set(0, 0, i, v)
	}

	out, lengths, err := unit.Forward(x, []int{4}, nil)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if lengths[0] != 4 {
		t.Fatalf("valid length = %d, want preserved 4", lengths[0])
	}

	// Projection batch norm scales by 1/sqrt(1+eps); negatives then die in
	// the closing ReLU.
	scale := 1 / math.Sqrt(1+unit.proj[0].Norm.Eps)
	want := []float64{1 * scale, 0, 3 * scale, 0}
	for i, v := range want {
		if math.Abs(out.At(0, 0, i)-v) > 1e-9 {
			t.Fatalf("output = %v, want %v", out.Row(0, 0), want)
		}
	}
}

func TestDenseUnitHistoryThreading(t *testing.T) {
	first, err := NewResidualUnit(UnitConfig{
		InChannels:    []int{2},
		OutChannels:   2,
		Kernel:        3,
		Repeat:        1,
		DenseResidual: true,
	})
	if err != nil {
		t.Fatalf("first unit: %v", err)
	}
	second, err := NewResidualUnit(UnitConfig{
		InChannels:    []int{2, 2},
		OutChannels:   2,
		Kernel:        3,
		Repeat:        1,
		DenseResidual: true,
	})
	if err != nil {
		t.Fatalf("second unit: %v", err)
	}
	if first.ShortcutTerms() != 1 || second.ShortcutTerms() != 2 {
		t.Fatalf("shortcut terms = %d, %d; want 1, 2", first.ShortcutTerms(), second.ShortcutTerms())
	}
	if !first.Dense() || !second.Dense() {
		t.Fatal("units should report dense mode")
	}

	hist := &DenseHistory{}
	x := tensor.New(1, 2, 6)
	lengths := []int{6}

	x, lengths, err = first.Forward(x, lengths, hist)
	if err != nil {
		t.Fatalf("first forward: %v", err)
	}
	if hist.Len() != 1 {
		t.Fatalf("history holds %d entries after unit 1, want 1", hist.Len())
	}
	if _, _, err = second.Forward(x, lengths, hist); err != nil {
		t.Fatalf("second forward: %v", err)
	}
	if hist.Len() != 2 {
		t.Fatalf("history holds %d entries after unit 2, want 2", hist.Len())
	}
}

func TestDenseUnitRejectsWrongHistoryDepth(t *testing.T) {
	unit, err := NewResidualUnit(UnitConfig{
		InChannels:    []int{2, 2},
		OutChannels:   2,
		Kernel:        3,
		Repeat:        1,
		DenseResidual: true,
	})
	if err != nil {
		t.Fatalf("new unit: %v", err)
	}

	_, _, err = unit.Forward(tensor.New(1, 2, 4), []int{4}, &DenseHistory{})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for history depth, got %v", err)
	}
}
