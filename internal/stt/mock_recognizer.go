package stt

import (
	"context"
	"fmt"
)

// mockRecognizer fabricates deterministic transcripts so the service loop,
// bus wiring, and event store can run without acoustic weights. It mirrors
// the local recognizer's bookkeeping: Frames counts 10ms hops of the mono
// signal.
type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, pcm []byte, sampleRate int, channels int, final bool) (TranscriptResult, error) {
	mode := "partial"
	if final {
		mode = "final"
	}
	samples := 0
	if channels > 0 {
		samples = len(pcm) / 2 / channels
	}
	frames := 0
	if hop := sampleRate / 100; hop > 0 {
		frames = samples / hop
	}
	return TranscriptResult{
		Text:       fmt.Sprintf("[%s transcript, %d samples]", mode, samples),
		Confidence: 1,
		Frames:     frames,
	}, nil
}
