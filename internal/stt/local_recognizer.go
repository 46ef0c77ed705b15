package stt

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quartzlabs/quartz/internal/acoustic"
	"github.com/quartzlabs/quartz/internal/config"
	"github.com/quartzlabs/quartz/internal/decoder"
	"github.com/quartzlabs/quartz/internal/frontend"
	"github.com/quartzlabs/quartz/internal/params"
	"github.com/quartzlabs/quartz/internal/tensor"
)

// localRecognizer runs the in-process acoustic model: mel front end,
// masked-convolution pipeline, greedy CTC decode.
type localRecognizer struct {
	extractor *frontend.Extractor
	pipeline  *acoustic.Pipeline
	decoder   *decoder.Greedy
	rate      int
}

// NewLocalRecognizer builds the local backend from config. Weights are
// loaded from model.params_dir when set; otherwise the model runs with
// zeroed parameters, which is only useful for wiring tests.
func NewLocalRecognizer(modelCfg config.ModelConfig, feCfg config.FrontendConfig) (Recognizer, error) {
	extractor, err := frontend.NewExtractor(frontend.Config{
		SampleRate: feCfg.SampleRate,
		WindowSec:  feCfg.WindowSec,
		HopSec:     feCfg.HopSec,
		NFFT:       feCfg.NFFT,
		NumMels:    feCfg.NumMels,
		Preemph:    feCfg.Preemph,
		Dither:     feCfg.Dither,
	})
	if err != nil {
		return nil, fmt.Errorf("build frontend: %w", err)
	}

	vocab := decoder.DefaultVocabulary()
	if modelCfg.Classes != len(vocab)+1 {
		return nil, fmt.Errorf("model expects %d classes, vocabulary provides %d plus blank",
			modelCfg.Classes, len(vocab))
	}

	pipeline, err := acoustic.Build(acoustic.ModelConfig{
		Family:        acoustic.Family(modelCfg.Family),
		Blocks:        modelCfg.Blocks,
		Repeat:        modelCfg.Repeat,
		InChannels:    feCfg.NumMels,
		Classes:       modelCfg.Classes,
		NormEps:       modelCfg.NormEps,
		Separable:     modelCfg.Separable,
		DenseResidual: modelCfg.DenseResidual,
	})
	if err != nil {
		return nil, fmt.Errorf("build acoustic model: %w", err)
	}

	if modelCfg.ParamsDir != "" {
		store, err := params.Load(modelCfg.ParamsDir)
		if err != nil {
			return nil, fmt.Errorf("load model parameters: %w", err)
		}
		if err := pipeline.LoadParams(store); err != nil {
			return nil, fmt.Errorf("apply model parameters: %w", err)
		}
	}

	return &localRecognizer{
		extractor: extractor,
		pipeline:  pipeline,
		decoder:   decoder.NewGreedy(vocab),
		rate:      feCfg.SampleRate,
	}, nil
}

func (r *localRecognizer) Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int, _ bool) (TranscriptResult, error) {
	if sampleRate != r.rate {
		return TranscriptResult{}, fmt.Errorf("recognizer expects %d Hz audio, got %d (resample upstream)", r.rate, sampleRate)
	}
	wave, err := pcmToMono(pcm, channels)
	if err != nil {
		return TranscriptResult{}, err
	}

	features, lengths, err := r.extractor.Extract([][]float64{wave})
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("extract features: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return TranscriptResult{}, err
	}

	logits, lengths, err := r.pipeline.Forward(features, lengths)
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("run pipeline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return TranscriptResult{}, err
	}

	indices := acoustic.ArgMax(logits, lengths)
	text := r.decoder.Decode(indices[0])
	return TranscriptResult{
		Text:       text,
		Confidence: meanPosterior(logits, indices[0]),
		Frames:     lengths[0],
	}, nil
}

// pcmToMono converts little-endian 16-bit PCM into [-1, 1) float samples,
// averaging channels.
func pcmToMono(pcm []byte, channels int) ([]float64, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("channel count %d must be positive", channels)
	}
	if len(pcm)%(2*channels) != 0 {
		return nil, fmt.Errorf("pcm payload of %d bytes not aligned to %d channel(s)", len(pcm), channels)
	}
	frames := len(pcm) / (2 * channels)
	wave := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sample := int16(binary.LittleEndian.Uint16(pcm[(i*channels+c)*2:]))
			sum += float64(sample) / 32768.0
		}
		wave[i] = sum / float64(channels)
	}
	return wave, nil
}

// meanPosterior averages the softmax probability of the chosen class over
// the decoded frames, a cheap confidence proxy.
func meanPosterior(logits *tensor.Tensor, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var total float64
	for t, best := range indices {
		row := logits.Row(0, t)
		maxVal := row[best]
		var denom float64
		for _, v := range row {
			denom += math.Exp(v - maxVal)
		}
		total += 1 / denom
	}
	return total / float64(len(indices))
}
