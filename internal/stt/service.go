package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/quartzlabs/quartz/internal/bus"
	"github.com/quartzlabs/quartz/internal/config"
	"github.com/quartzlabs/quartz/internal/eventstore"
	"github.com/quartzlabs/quartz/internal/protocol"
)

// Service consumes audio frames from the bus, runs the configured
// recognizer per session, and publishes (and optionally persists)
// transcripts.
type Service struct {
	cfg        config.STTConfig
	bus        *bus.Client
	recognizer Recognizer
	store      *eventstore.Store
	metrics    *serviceMetrics
	sessions   map[string]*sessionState
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	sub        *nats.Subscription
	wg         sync.WaitGroup
	ready      bool
}

type sessionState struct {
	Buffer       []byte
	LastPartial  time.Time
	Inflight     bool
	PendingFinal bool
}

// NewRecognizer builds the backend selected by cfg.Mode.
func NewRecognizer(cfg config.STTConfig, modelCfg config.ModelConfig, feCfg config.FrontendConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalRecognizer(modelCfg, feCfg)
	case "exec":
		return NewExecRecognizer(cfg)
	case "mock":
		return NewMockRecognizer(), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}

func NewService(parent context.Context, cfg config.STTConfig, busClient *bus.Client, recognizer Recognizer, store *eventstore.Store) *Service {
	ctx, cancel := context.WithCancel(parent)
	metrics, err := newServiceMetrics()
	if err != nil {
		busClient.Logger().Warn("failed to initialize stt metrics", slogError(err))
	}
	return &Service{
		cfg:        cfg,
		bus:        busClient,
		recognizer: recognizer,
		store:      store,
		metrics:    metrics,
		sessions:   make(map[string]*sessionState),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	subject := protocol.SubjectAudioFramePrefix + ".>"
	sub, err := s.bus.Conn().Subscribe(subject, s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribe audio frames: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.bus.Logger().Warn("failed to decode audio frame", slogError(err))
		return
	}

	s.mu.Lock()
	state := s.sessions[frame.SessionID]
	if state == nil {
		state = &sessionState{}
		s.sessions[frame.SessionID] = state
	}
	state.Buffer = append(state.Buffer, frame.PCM...)
	s.mu.Unlock()

	if s.cfg.PublishInterim && !frame.Final {
		if s.shouldSchedulePartial(frame.SessionID) {
			s.scheduleTranscription(frame.SessionID, false)
		}
	}
	if frame.Final {
		s.scheduleTranscription(frame.SessionID, true)
	}
}

func (s *Service) shouldSchedulePartial(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.sessions[sessionID]
	if state == nil {
		return false
	}
	if state.Inflight {
		return false
	}
	if state.LastPartial.IsZero() {
		state.LastPartial = time.Now()
		return true
	}
	interval := time.Duration(s.cfg.PartialEveryMS) * time.Millisecond
	if interval <= 0 {
		return false
	}
	if time.Since(state.LastPartial) >= interval {
		state.LastPartial = time.Now()
		return true
	}
	return false
}

func (s *Service) scheduleTranscription(sessionID string, final bool) {
	s.mu.Lock()
	state := s.sessions[sessionID]
	if state == nil {
		s.mu.Unlock()
		return
	}
	if state.Inflight {
		if final {
			state.PendingFinal = true
		}
		s.mu.Unlock()
		return
	}
	pcm := append([]byte(nil), state.Buffer...)
	state.Inflight = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 45*time.Second)
		defer cancel()

		started := time.Now()
		result, err := s.recognizer.Transcribe(ctx, pcm, s.cfg.SampleRate, s.cfg.Channels, final)
		if err != nil {
			s.bus.Logger().Warn("transcription failed", slogError(err))
		} else {
			s.metrics.recordTranscription(ctx, result, final, time.Since(started))
			s.publishTranscript(ctx, sessionID, result, final)
		}

		s.mu.Lock()
		state := s.sessions[sessionID]
		var pendingFinal bool
		if state != nil {
			state.Inflight = false
			pendingFinal = state.PendingFinal
			if !final {
				state.LastPartial = time.Now()
			}
			if final {
				delete(s.sessions, sessionID)
			}
		}
		s.mu.Unlock()

		if pendingFinal && !final {
			s.scheduleTranscription(sessionID, true)
		}
	}()
}

func (s *Service) publishTranscript(ctx context.Context, sessionID string, result TranscriptResult, final bool) {
	if result.Text == "" {
		return
	}
	subject := protocol.SubjectTranscriptPartial
	if final {
		subject = protocol.SubjectTranscriptFinal
	}
	msg := protocol.Transcript{
		SessionID:  sessionID,
		Text:       result.Text,
		Partial:    !final,
		Timestamp:  time.Now().UTC(),
		Confidence: result.Confidence,
		Frames:     result.Frames,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.bus.Logger().Warn("failed to marshal transcript", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.bus.Logger().Warn("failed to publish transcript", slogError(err))
	}

	if s.store != nil && final {
		if err := s.store.AppendSession(ctx, sessionID, "bus"); err != nil {
			s.bus.Logger().Warn("failed to persist session", slogError(err))
			return
		}
		if err := s.store.AppendTranscript(ctx, eventstore.Record{
			SessionID:  sessionID,
			Text:       result.Text,
			Partial:    !final,
			Confidence: result.Confidence,
			Frames:     result.Frames,
		}); err != nil {
			s.bus.Logger().Warn("failed to persist transcript", slogError(err))
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
