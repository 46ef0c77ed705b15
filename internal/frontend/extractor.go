// Package frontend turns raw waveforms into normalized log-mel feature
// tensors with exact per-item frame bookkeeping.
package frontend

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/quartzlabs/quartz/internal/tensor"
)

// logZeroGuard stabilizes the log of near-zero spectrogram energy.
const logZeroGuard = 1.0 / (1 << 24)

// normEps keeps per-channel standard deviations away from zero.
const normEps = 1e-5

// InvalidAudioError reports a waveform whose spectrogram is too short to
// normalize (a single time frame has no defined variance).
type InvalidAudioError struct {
	Item   int
	Frames int
}

func (e *InvalidAudioError) Error() string {
	return fmt.Sprintf("invalid audio: item %d yields %d spectrogram frame(s), need at least 2", e.Item, e.Frames)
}

// Config parameterizes the mel-spectrogram extractor.
type Config struct {
	SampleRate int     `yaml:"sample_rate"`
	WindowSec  float64 `yaml:"window_sec"`
	HopSec     float64 `yaml:"hop_sec"`
	NFFT       int     `yaml:"n_fft"`
	NumMels    int     `yaml:"n_mels"`
	Preemph    float64 `yaml:"preemphasis"`
	Dither     float64 `yaml:"dither"`

	// FilterBank overrides the built-in mel bank when supplied. Must be
	// NumMels rows of NFFT/2+1 coefficients.
	FilterBank [][]float64 `yaml:"-"`
}

// DefaultConfig matches the acoustic model's training-time front end.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		WindowSec:  0.02,
		HopSec:     0.01,
		NFFT:       512,
		NumMels:    64,
		Preemph:    0.97,
		Dither:     0,
	}
}

// Extractor computes batched, padded log-mel features. It is safe for
// concurrent use: the window table and filter bank are immutable after
// construction and each call works on its own buffers.
type Extractor struct {
	cfg       Config
	winLength int
	hopLength int
	window    []float64 // Hann window padded to NFFT, centered
	bank      [][]float64
}

// padAlign right-pads every batch to a multiple of this many frames.
const padAlign = 16

// NewExtractor validates cfg and precomputes the window and filter bank.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("frontend: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.NFFT <= 0 || cfg.NumMels <= 0 {
		return nil, fmt.Errorf("frontend: n_fft and n_mels must be positive")
	}
	winLength := int(cfg.WindowSec * float64(cfg.SampleRate))
	hopLength := int(cfg.HopSec * float64(cfg.SampleRate))
	if winLength <= 0 || hopLength <= 0 {
		return nil, fmt.Errorf("frontend: window (%d) and hop (%d) must be positive samples", winLength, hopLength)
	}
	if winLength > cfg.NFFT {
		return nil, fmt.Errorf("frontend: window of %d samples exceeds n_fft %d", winLength, cfg.NFFT)
	}

	// Symmetric Hann window, zero-padded to NFFT and centered.
	window := make([]float64, cfg.NFFT)
	offset := (cfg.NFFT - winLength) / 2
	for n := 0; n < winLength; n++ {
		window[offset+n] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(n)/float64(winLength-1))
	}

	bank := cfg.FilterBank
	if bank == nil {
		bank = NewMelBank(cfg.SampleRate, cfg.NFFT, cfg.NumMels, 0, float64(cfg.SampleRate)/2)
	}
	if len(bank) != cfg.NumMels {
		return nil, fmt.Errorf("frontend: filter bank has %d rows, expected %d", len(bank), cfg.NumMels)
	}
	for i, row := range bank {
		if len(row) != cfg.NFFT/2+1 {
			return nil, fmt.Errorf("frontend: filter bank row %d has %d bins, expected %d", i, len(row), cfg.NFFT/2+1)
		}
	}

	return &Extractor{
		cfg:       cfg,
		winLength: winLength,
		hopLength: hopLength,
		window:    window,
		bank:      bank,
	}, nil
}

// HopLength returns the frame hop in samples.
func (e *Extractor) HopLength() int { return e.hopLength }

// NumMels returns the feature channel count.
func (e *Extractor) NumMels() int { return e.cfg.NumMels }

// Extract converts a batch of variable-length waveforms into a padded
// (batch x mels x frames) tensor plus per-item valid frame counts. The
// frame axis is padded to the batch maximum and then to a multiple of 16.
func (e *Extractor) Extract(waveforms [][]float64) (*tensor.Tensor, []int, error) {
	batch := len(waveforms)
	lengths := make([]int, batch)
	mels := make([][][]float64, batch) // per item: NumMels x frames

	maxFrames := 0
	for i, wave := range waveforms {
		if len(wave) == 0 {
			// Degenerate but legal: contributes an all-zero row with
			// valid length 0.
			lengths[i] = 0
			mels[i] = nil
			continue
		}
		lengths[i] = (len(wave) + e.hopLength - 1) / e.hopLength

		m, err := e.extractOne(i, wave)
		if err != nil {
			return nil, nil, err
		}
		mels[i] = m
		if frames := len(m[0]); frames > maxFrames {
			maxFrames = frames
		}
	}

	steps := maxFrames
	if rem := steps % padAlign; rem != 0 {
		steps += padAlign - rem
	}

	out := tensor.New(batch, e.cfg.NumMels, steps)
	for i, m := range mels {
		if m == nil {
			continue
		}
		valid := lengths[i]
		if valid > len(m[0]) {
			valid = len(m[0])
		}
		for c := 0; c < e.cfg.NumMels; c++ {
			copy(out.Row(i, c)[:valid], m[c][:valid])
		}
	}
	return out, lengths, nil
}

// extractOne produces the normalized log-mel matrix (NumMels x frames) for a
// single waveform.
func (e *Extractor) extractOne(item int, wave []float64) ([][]float64, error) {
	x := make([]float64, len(wave))
	copy(x, wave)

	if e.cfg.Dither > 0 {
		for i := range x {
			x[i] += e.cfg.Dither * rand.NormFloat64()
		}
	}

	// First-order pre-emphasis difference filter.
	if e.cfg.Preemph != 0 {
		for i := len(x) - 1; i > 0; i-- {
			x[i] -= e.cfg.Preemph * x[i-1]
		}
	}

	power := e.powerSpectrogram(x)
	frames := len(power)
	if frames == 1 {
		return nil, &InvalidAudioError{Item: item, Frames: frames}
	}

	// Mel projection and stabilized log.
	mel := make([][]float64, e.cfg.NumMels)
	for m := range mel {
		row := make([]float64, frames)
		for t := 0; t < frames; t++ {
			row[t] = math.Log(floats.Dot(e.bank[m], power[t]) + logZeroGuard)
		}
		mel[m] = row
	}

	// Per-channel mean/variance normalization across time.
	for _, row := range mel {
		mean := floats.Sum(row) / float64(frames)
		var variance float64
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		std := math.Sqrt(variance/float64(frames)) + normEps
		for i, v := range row {
			row[i] = (v - mean) / std
		}
	}
	return mel, nil
}

// powerSpectrogram computes the squared-magnitude centered STFT of x, as
// frames x (NFFT/2+1) rows.
func (e *Extractor) powerSpectrogram(x []float64) [][]float64 {
	nfft := e.cfg.NFFT
	half := nfft / 2
	padded := reflectPad(x, half)

	frames := 1 + len(x)/e.hopLength
	fft := fourier.NewFFT(nfft)
	buf := make([]float64, nfft)

	power := make([][]float64, frames)
	for t := 0; t < frames; t++ {
		start := t * e.hopLength
		for i := 0; i < nfft; i++ {
			buf[i] = padded[start+i] * e.window[i]
		}
		coeffs := fft.Coefficients(nil, buf)
		row := make([]float64, half+1)
		for i, c := range coeffs {
			re, im := real(c), imag(c)
			row[i] = re*re + im*im
		}
		power[t] = row
	}
	return power
}

// reflectPad mirrors pad samples of x around each end.
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	copy(out[pad:], x)
	for i := 0; i < pad; i++ {
		out[pad-1-i] = x[reflectIndex(i+1, n)]
		out[pad+n+i] = x[reflectIndex(n-2-i, n)]
	}
	return out
}

// reflectIndex folds an out-of-range index back into [0, n) by reflection.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
