package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/quartzlabs/quartz/internal/acoustic"
	"github.com/quartzlabs/quartz/internal/config"
	"github.com/quartzlabs/quartz/internal/decoder"
	"github.com/quartzlabs/quartz/internal/frontend"
	"github.com/quartzlabs/quartz/internal/params"
)

var version = "0.1.0-dev"

func main() {
	transcribeCmd := flag.NewFlagSet("transcribe", flag.ExitOnError)
	var (
		family    string
		blocks    int
		repeat    int
		dense     bool
		separable bool
		paramsDir string
	)
	transcribeCmd.StringVar(&family, "family", "quartznet", "Model family (jasper or quartznet)")
	transcribeCmd.IntVar(&blocks, "blocks", 5, "Number of repeated main blocks (multiple of 5)")
	transcribeCmd.IntVar(&repeat, "repeat", 5, "Convolutions per block")
	transcribeCmd.BoolVar(&dense, "dense", false, "Use dense residual connectivity")
	transcribeCmd.BoolVar(&separable, "separable", true, "Use depthwise separable convolutions")
	transcribeCmd.StringVar(&paramsDir, "params", "", "Directory holding the model parameter manifest")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'transcribe' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "transcribe":
		transcribeCmd.Parse(os.Args[2:])
		if transcribeCmd.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "usage: quartz transcribe [flags] file.wav [file.wav ...]")
			os.Exit(2)
		}
		modelCfg := config.Default().Model
		modelCfg.Family = family
		modelCfg.Blocks = blocks
		modelCfg.Repeat = repeat
		modelCfg.Separable = separable
		modelCfg.DenseResidual = dense
		modelCfg.ParamsDir = paramsDir
		if err := runTranscribe(modelCfg, transcribeCmd.Args()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runTranscribe(modelCfg config.ModelConfig, paths []string) error {
	feCfg := frontend.DefaultConfig()
	extractor, err := frontend.NewExtractor(feCfg)
	if err != nil {
		return fmt.Errorf("build frontend: %w", err)
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
		return fmt.Errorf("build acoustic model: %w", err)
	}
	if modelCfg.ParamsDir != "" {
		store, err := params.Load(modelCfg.ParamsDir)
		if err != nil {
			return fmt.Errorf("load model parameters: %w", err)
		}
		if err := pipeline.LoadParams(store); err != nil {
			return fmt.Errorf("apply model parameters: %w", err)
		}
	}

	waves := make([][]float64, 0, len(paths))
	for _, path := range paths {
		wave, err := readWave(path, feCfg.SampleRate)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		waves = append(waves, wave)
	}

	features, lengths, err := extractor.Extract(waves)
	if err != nil {
		return fmt.Errorf("extract features: %w", err)
	}
	logits, outLengths, err := pipeline.Forward(features, lengths)
	if err != nil {
		return fmt.Errorf("run model: %w", err)
	}

	greedy := decoder.NewGreedy(decoder.DefaultVocabulary())
	texts := greedy.DecodeBatch(acoustic.ArgMax(logits, outLengths))
	for i, text := range texts {
		fmt.Printf("%s\t%s\n", paths[i], text)
	}
	return nil
}

func readWave(path string, wantRate int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	if buf.Format.SampleRate != wantRate {
		return nil, fmt.Errorf("expected %d Hz audio, got %d (resample first)", wantRate, buf.Format.SampleRate)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("no audio channels")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))
	frames := len(buf.Data) / channels
	wave := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		wave[i] = sum / float64(channels) / scale
	}
	return wave, nil
}
