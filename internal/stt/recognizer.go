package stt

import (
	"context"
)

// TranscriptResult captures recognizer output.
type TranscriptResult struct {
	Text       string
	Confidence float64
	// Frames is the number of valid acoustic frames behind the text;
	// zero when the backend does not track them.
	Frames int
}

// Recognizer abstracts transcription backends.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int, final bool) (TranscriptResult, error)
}
