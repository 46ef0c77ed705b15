package nn

import (
	"errors"
	"testing"

	"github.com/quartzlabs/quartz/internal/tensor"
)

func onesConv(kernel int, opts ...ConvOpt) *MaskedConv {
	c := NewMaskedConv(1, 1, kernel, opts...)
	for i := 0; i < kernel; i++ {
		c.Weight.Set(0, 0, i, 1)
	}
	return c
}

func TestOutLenTable(t *testing.T) {
	cases := []struct {
		length, kernel, stride, pad, dilation, want int
	}{
		{100, 11, 2, 5, 1, 50},
		{100, 33, 1, 16, 1, 100},
		{100, 1, 1, 0, 1, 100},
		{16, 87, 1, 43, 1, 16},
		{14, 29, 1, 28, 2, 14},
		{0, 3, 1, 1, 1, 0},
		{0, 33, 2, 16, 1, 0},
		{0, 11, 2, 5, 1, 0},
	}
	for _, tc := range cases {
		got := OutLen(tc.length, tc.kernel, tc.stride, tc.pad, tc.dilation)
		if got != tc.want {
			t.Errorf("OutLen(%d, k=%d, s=%d, p=%d, d=%d) = %d, want %d",
				tc.length, tc.kernel, tc.stride, tc.pad, tc.dilation, got, tc.want)
		}
	}
}

// Padding frames beyond an item's valid length must not contaminate the
// convolution of its real frames: a short item padded out inside a batch has
// to produce the same valid prefix as the same item run alone.
func TestMaskingBlocksPaddingLeak(t *testing.T) {
	conv := onesConv(3, WithPad(1))

	padded := tensor.New(1, 1, 8)
	for i := 0; i < 6; i++ {
		padded.Set(0, 0, i, 1)
	}
	// Garbage in the padding region, as a later batch item would leave.
	padded.Set(0, 0, 6, 99)
	padded.Set(0, 0, 7, 99)

	solo := tensor.New(1, 1, 6)
	for i := 0; i < 6; i++ {
		solo.Set(0, 0, i, 1)
	}

	outPadded, lengths, err := conv.Forward(padded, []int{6})
	if err != nil {
		t.Fatalf("padded forward: %v", err)
	}
	outSolo, _, err := conv.Forward(solo, []int{6})
	if err != nil {
		t.Fatalf("solo forward: %v", err)
	}

	if lengths[0] != 6 {
		t.Fatalf("valid length = %d, want 6", lengths[0])
	}
	for i := 0; i < lengths[0]; i++ {
		if outPadded.At(0, 0, i) != outSolo.At(0, 0, i) {
			t.Fatalf("frame %d diverges: padded %v vs solo %v",
				i, outPadded.At(0, 0, i), outSolo.At(0, 0, i))
		}
	}
}

// Masking is idempotent: a tensor whose padding region is already zero must
// convolve to the same output as one carrying garbage there.
func TestMaskingIdempotent(t *testing.T) {
	conv := onesConv(3, WithPad(1))

	dirty := tensor.New(2, 1, 8)
	for b := 0; b < 2; b++ {
		for i := 0; i < 8; i++ {
			dirty.Set(b, 0, i, float64(b*10+i+1))
		}
	}
	lengths := []int{5, 3}

	clean := dirty.Clone()
	for b, l := range lengths {
		clean.ZeroFrom(b, l)
	}

	outDirty, lenDirty, err := conv.Forward(dirty, lengths)
	if err != nil {
		t.Fatalf("dirty forward: %v", err)
	}
	outClean, lenClean, err := conv.Forward(clean, lengths)
	if err != nil {
		t.Fatalf("clean forward: %v", err)
	}

	for b := 0; b < 2; b++ {
		if lenDirty[b] != lenClean[b] {
			t.Fatalf("item %d: lengths diverge, %d vs %d", b, lenDirty[b], lenClean[b])
		}
		for i := 0; i < 8; i++ {
			if outDirty.At(b, 0, i) != outClean.At(b, 0, i) {
				t.Fatalf("item %d frame %d: %v vs %v",
					b, i, outDirty.At(b, 0, i), outClean.At(b, 0, i))
			}
		}
	}
}

// An empty batch item stays empty even when the length arithmetic for a
// dilated kernel would take it below zero.
func TestEmptyItemStaysEmpty(t *testing.T) {
	conv := onesConv(5, WithPad(3), WithDilation(2))
	x := tensor.New(1, 1, 8)

	_, lengths, err := conv.Forward(x, []int{0})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if lengths[0] != 0 {
		t.Fatalf("valid length = %d, want 0", lengths[0])
	}
}

func TestForwardDoesNotMutateInput(t *testing.T) {
	conv := onesConv(3, WithPad(1))
	x := tensor.New(1, 1, 4)
	x.Set(0, 0, 3, 5)

	if _, _, err := conv.Forward(x, []int{2}); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if x.At(0, 0, 3) != 5 {
		t.Fatal("masking must clone, not zero the caller's tensor")
	}
}

func TestForwardLengthVectorMismatch(t *testing.T) {
	conv := onesConv(3, WithPad(1))
	_, _, err := conv.Forward(tensor.New(2, 1, 4), []int{4})
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
}

func TestWithoutMaskPassesLengthsThrough(t *testing.T) {
	conv := onesConv(1, WithoutMask())
	x := tensor.New(1, 1, 4)
	x.Set(0, 0, 3, 9)

	out, lengths, err := conv.Forward(x, []int{2})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if lengths[0] != 2 {
		t.Fatalf("length = %d, want pass-through 2", lengths[0])
	}
	if out.At(0, 0, 3) != 9 {
		t.Fatal("unmasked conv should keep padding positions")
	}
}

func TestWithBiasAllocatesPerOutputChannel(t *testing.T) {
	conv := NewMaskedConv(4, 8, 1, WithBias())
	if len(conv.Bias) != 8 {
		t.Fatalf("bias has %d entries, want 8", len(conv.Bias))
	}
}
