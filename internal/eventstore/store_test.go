package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/quartzlabs/quartz/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	// Writes are accepted and dropped.
	if err := es.AppendTranscript(ctx, Record{SessionID: "s", Text: "hi"}); err != nil {
		t.Fatalf("append on ephemeral store: %v", err)
	}
	records, err := es.ListSessionTranscripts(ctx, "s", 10)
	if err != nil || records != nil {
		t.Fatalf("ephemeral store should return nothing, got %v, %v", records, err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	sessionID := "session-123"
	if err := es.AppendSession(context.Background(), sessionID, "bus"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	rec := Record{
		SessionID:  sessionID,
		TraceID:    "trace-1",
		Text:       "hello world",
		Partial:    false,
		Confidence: 0.87,
		Frames:     42,
	}
	if err := es.AppendTranscript(context.Background(), rec); err != nil {
		t.Fatalf("append transcript: %v", err)
	}

	records, err := es.ListSessionTranscripts(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(records))
	}
	got := records[0]
	if got.Text != "hello world" || got.TraceID != "trace-1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Frames != 42 {
		t.Fatalf("frames = %d, want 42", got.Frames)
	}
	if got.Confidence < 0.86 || got.Confidence > 0.88 {
		t.Fatalf("confidence = %v, want ~0.87", got.Confidence)
	}
	if got.Partial {
		t.Fatal("expected final transcript")
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{
		Path:          filepath.Join(tmp, "transcripts.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxSessions:   1,
	}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "old-session", "bus"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendTranscript(context.Background(), Record{SessionID: "old-session", Text: "stale"}); err != nil {
		t.Fatalf("append transcript: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "new-session", "bus"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	records, err := es.ListSessionTranscripts(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected old session pruned, got %d records", len(records))
	}
}
