// Package stt streams captured audio to a speech-to-text vendor session
// and republishes interim/final transcript segments onto the bus.
// Grounded on cantina_os/services/deepgram_transcription_service.py's
// DeepgramTranscriptionService: this package defines the vendor-neutral
// contract the original hardcoded to Deepgram's websocket API, per
// SPEC_FULL.md's note that vendor STT clients remain external
// collaborators reached through an interface this core defines.
package stt

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
	"github.com/makeorbreak-studio/cantina-os/internal/voice"
)

// Segment is one piece of transcript a vendor session produces.
type Segment struct {
	Text    string
	IsFinal bool
}

// Session is a live streaming transcription session against a vendor
// backend. Write sends one audio chunk; segments arrive on the channel
// passed to Opener.Open.
type Session interface {
	Write(samples []byte) error
	Close() error
}

// Opener starts a new vendor streaming session, matching the
// per-vendor-client construction DeepgramTranscriptionService does in
// _initialize. segments is the channel the session publishes Segment
// values to as they arrive.
type Opener interface {
	Open(ctx context.Context, segments chan<- Segment) (Session, error)
}

// Config controls retry behavior for opening a session.
type Config struct {
	MaxOpenRetries int
}

// DefaultConfig matches the teacher's "small cap" retry convention from
// SPEC_FULL.md §3.
func DefaultConfig() Config {
	return Config{MaxOpenRetries: 3}
}

// Service bridges audio.chunk events to a vendor STT session and
// publishes transcription.interim/final events as segments arrive,
// accumulating the final transcript for the current capture window.
type Service struct {
	*service.Base

	opener Opener
	cfg    Config

	accumulator voice.TranscriptAccumulator

	session  Session
	segments chan Segment
}

// New constructs an stt Service bound to opener.
func New(b *bus.Bus, logger *zap.SugaredLogger, opener Opener, cfg Config) *Service {
	return &Service{
		Base:   service.New("stt", b, logger),
		opener: opener,
		cfg:    cfg,
	}
}

// Start subscribes to the audio and voice-listening lifecycle topics.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		s.Subscribe(bus.VoiceListeningStarted, func(ctx context.Context, payload interface{}) {
			s.openSession(ctx)
		})
		s.Subscribe(bus.VoiceListeningStopped, func(ctx context.Context, payload interface{}) {
			s.closeSession()
		})
		s.Subscribe(bus.AudioChunk, func(ctx context.Context, payload interface{}) {
			s.writeChunk(ctx, payload)
		})
		return nil
	})
}

// Stop closes any open session.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, func(ctx context.Context) error {
		s.closeSession()
		return nil
	})
}

func (s *Service) openSession(ctx context.Context) {
	s.accumulator.Reset()
	segments := make(chan Segment, 32)

	var session Session
	operation := func() error {
		sess, err := s.opener.Open(ctx, segments)
		if err != nil {
			return fmt.Errorf("open stt session: %w", err)
		}
		session = sess
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.MaxOpenRetries))
	if err := backoff.Retry(operation, bo); err != nil {
		s.MarkDegraded(ctx, err.Error())
		return
	}

	s.session = session
	s.segments = segments
	go s.drain(ctx, segments)
}

func (s *Service) closeSession() {
	if s.session == nil {
		return
	}
	s.session.Close()
	s.session = nil
}

func (s *Service) writeChunk(ctx context.Context, payload interface{}) {
	if s.session == nil {
		return
	}
	chunk, ok := payload.(bus.AudioChunkPayload)
	if !ok {
		return
	}
	if err := s.session.Write(chunk.Samples); err != nil {
		s.Logger().Warnw("stt write failed", "error", err)
	}
}

func (s *Service) drain(ctx context.Context, segments <-chan Segment) {
	for seg := range segments {
		if seg.IsFinal {
			s.accumulator.Append(seg.Text)
			s.Emit(ctx, bus.TranscriptionFinal, bus.TranscriptionSegmentPayload{
				Envelope: bus.NewEnvelope(""),
				Text:     seg.Text,
			})
		} else {
			s.Emit(ctx, bus.TranscriptionInterim, bus.TranscriptionSegmentPayload{
				Envelope: bus.NewEnvelope(""),
				Text:     seg.Text,
			})
		}
	}
}

// Transcript returns the accumulated final transcript for the current
// capture window.
func (s *Service) Transcript() string {
	return s.accumulator.Text()
}

