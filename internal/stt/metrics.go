package stt

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// serviceMetrics holds the speech service's instruments. A nil receiver is a
// no-op so a failed meter setup degrades to uninstrumented operation.
type serviceMetrics struct {
	transcripts metric.Int64Counter
	frames      metric.Int64Counter
	latency     metric.Float64Histogram
}

func newServiceMetrics() (*serviceMetrics, error) {
	meter := otel.Meter("github.com/quartzlabs/quartz/stt")

	transcripts, err := meter.Int64Counter("stt.transcripts",
		metric.WithDescription("Transcripts produced, by kind"))
	if err != nil {
		return nil, err
	}
	frames, err := meter.Int64Counter("stt.frames",
		metric.WithDescription("Valid acoustic frames behind produced transcripts"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("stt.transcribe.duration",
		metric.WithDescription("Recognizer latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &serviceMetrics{transcripts: transcripts, frames: frames, latency: latency}, nil
}

func (m *serviceMetrics) recordTranscription(ctx context.Context, result TranscriptResult, final bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	kind := "partial"
	if final {
		kind = "final"
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.transcripts.Add(ctx, 1, attrs)
	if result.Frames > 0 {
		m.frames.Add(ctx, int64(result.Frames), attrs)
	}
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}
