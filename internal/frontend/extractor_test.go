package frontend

import (
	"errors"
	"math"
	"testing"
)

func sineWave(samples, rate int, freq float64) []float64 {
	wave := make([]float64, samples)
	for i := range wave {
		wave[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return wave
}

func TestExtractSineWave(t *testing.T) {
	ext, err := NewExtractor(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	out, lengths, err := ext.Extract([][]float64{sineWave(16000, 16000, 440)})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if want := (16000 + ext.HopLength() - 1) / ext.HopLength(); lengths[0] != want {
		t.Fatalf("valid frames = %d, want %d", lengths[0], want)
	}
	batch, channels, steps := out.Dims()
	if batch != 1 || channels != 64 {
		t.Fatalf("dims = (%d, %d, %d)", batch, channels, steps)
	}
	if steps%16 != 0 {
		t.Fatalf("frame axis %d not padded to a multiple of 16", steps)
	}
	if steps < lengths[0] {
		t.Fatalf("frame axis %d shorter than valid length %d", steps, lengths[0])
	}

	// Normalized features should vary around zero, not sit at a constant.
	row := out.Row(0, 0)[:lengths[0]]
	lo, hi := row[0], row[0]
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatal("non-finite feature value")
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo == 0 {
		t.Fatal("features are constant, normalization looks broken")
	}

	// Padding beyond the last full frame stays zero.
	if v := out.At(0, 0, steps-1); v != 0 {
		t.Fatalf("padding frame holds %v, want 0", v)
	}
}

func TestExtractBatchPadsToMax(t *testing.T) {
	ext, err := NewExtractor(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	out, lengths, err := ext.Extract([][]float64{
		sineWave(16000, 16000, 440),
		sineWave(8000, 16000, 220),
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if lengths[0] != 100 || lengths[1] != 50 {
		t.Fatalf("valid frames = %v, want [100 50]", lengths)
	}
	_, _, steps := out.Dims()
	if steps != 112 {
		t.Fatalf("frame axis = %d, want 112 (101 frames padded to 16)", steps)
	}
	// The short item's region past its own frames stays zero.
	for s := 52; s < steps; s++ {
		if out.At(1, 0, s) != 0 {
			t.Fatalf("short item has energy at padded frame %d", s)
		}
	}
}

func TestExtractTooShortWaveform(t *testing.T) {
	ext, err := NewExtractor(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	_, _, err = ext.Extract([][]float64{sineWave(100, 16000, 440)})
	var invalid *InvalidAudioError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidAudioError, got %v", err)
	}
	if invalid.Frames != 1 {
		t.Fatalf("reported %d frames, want 1", invalid.Frames)
	}
}

func TestExtractEmptyWaveform(t *testing.T) {
	ext, err := NewExtractor(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	out, lengths, err := ext.Extract([][]float64{nil, sineWave(16000, 16000, 440)})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if lengths[0] != 0 {
		t.Fatalf("empty waveform valid length = %d, want 0", lengths[0])
	}
	_, _, steps := out.Dims()
	for s := 0; s < steps; s++ {
		if out.At(0, 0, s) != 0 {
			t.Fatal("empty waveform should contribute an all-zero row")
		}
	}
}

func TestNewExtractorValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 0
	if _, err := NewExtractor(cfg); err == nil {
		t.Fatal("expected error for zero sample rate")
	}

	cfg = DefaultConfig()
	cfg.WindowSec = 0.04 // 640 samples > 512 FFT bins
	if _, err := NewExtractor(cfg); err == nil {
		t.Fatal("expected error for window wider than n_fft")
	}

	cfg = DefaultConfig()
	cfg.FilterBank = make([][]float64, 3)
	if _, err := NewExtractor(cfg); err == nil {
		t.Fatal("expected error for wrong filter bank row count")
	}
}
