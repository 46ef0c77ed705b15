package tensor

import "testing"

func TestRowAliasesStorage(t *testing.T) {
	x := New(2, 3, 4)
	row := x.Row(1, 2)
	row[3] = 7
	if x.At(1, 2, 3) != 7 {
		t.Fatal("expected Row to alias backing storage")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	x := New(1, 1, 2)
	x.Set(0, 0, 0, 1)
	y := x.Clone()
	y.Set(0, 0, 0, 9)
	if x.At(0, 0, 0) != 1 {
		t.Fatal("mutating clone changed original")
	}
}

func TestZeroFrom(t *testing.T) {
	x := New(2, 2, 5)
	x.Apply(func(float64) float64 { return 1 })
	x.ZeroFrom(0, 3)

	for c := 0; c < 2; c++ {
		row := x.Row(0, c)
		for i, v := range row {
			want := 1.0
			if i >= 3 {
				want = 0
			}
			if v != want {
				t.Fatalf("item 0 channel %d = %v after ZeroFrom(0, 3)", c, row)
			}
		}
		for _, v := range x.Row(1, c) {
			if v != 1 {
				t.Fatal("ZeroFrom leaked into another batch item")
			}
		}
	}

	x.ZeroFrom(1, -2)
	for _, v := range x.Row(1, 0) {
		if v != 0 {
			t.Fatal("negative from should clamp to zeroing the whole row")
		}
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	if err := New(1, 2, 3).Add(New(1, 2, 4)); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestShuffleChannels(t *testing.T) {
	x := New(1, 4, 2)
	for c := 0; c < 4; c++ {
		fill(x, 0, c, float64(c), float64(c))
	}

	out := x.ShuffleChannels(2)
	// Groups (0,1) and (2,3) interleave to 0,2,1,3.
	want := []float64{0, 2, 1, 3}
	for c, v := range want {
		if out.At(0, c, 0) != v {
			t.Fatalf("channel %d = %v, want %v", c, out.At(0, c, 0), v)
		}
	}

	same := x.ShuffleChannels(1)
	for c := 0; c < 4; c++ {
		if same.At(0, c, 0) != float64(c) {
			t.Fatal("shuffle with one group should copy unchanged")
		}
	}
}
