// Package tts turns assistant text into speech, publishing the
// synthesis lifecycle events downstream consumers (music ducking,
// debug console, web dashboard) react to. The spec names ElevenLabs as
// the original vendor; no elevenlabs_service.py survived into
// original_source/, so this package is grounded on the lifecycle events
// themselves — speech.synthesis.started/amplitude/completed/ended in
// event_payloads.py and music_controller_service.py's ducking handlers,
// which are the contract every consumer of this service actually
// depends on.
package tts

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// AmplitudeSample is one loudness reading emitted while audio plays,
// the shape a mouth/eye animation consumer needs to drive servos or LEDs
// in time with speech.
type AmplitudeSample struct {
	Level float64
}

// Session is a single in-progress synthesis+playback job.
type Session interface {
	// Amplitudes yields loudness samples as audio plays; the channel
	// closes when playback ends.
	Amplitudes() <-chan AmplitudeSample
	// Wait blocks until playback completes or ctx is canceled.
	Wait(ctx context.Context) error
	Stop() error
}

// Opener starts synthesizing and playing text, matching whatever vendor
// client (ElevenLabs or otherwise) the deployment wires in.
type Opener interface {
	Open(ctx context.Context, text string) (Session, error)
}

// Config controls retry behavior for opening a synthesis session.
type Config struct {
	MaxOpenRetries int
}

// DefaultConfig matches the teacher's small retry cap convention.
func DefaultConfig() Config {
	return Config{MaxOpenRetries: 3}
}

// Service synthesizes each complete LLM response and reports the
// synthesis lifecycle on the bus.
type Service struct {
	*service.Base

	opener Opener
	cfg    Config

	session Session
}

// New constructs a tts Service bound to opener.
func New(b *bus.Bus, logger *zap.SugaredLogger, opener Opener, cfg Config) *Service {
	return &Service{
		Base:   service.New("elevenlabs", b, logger),
		opener: opener,
		cfg:    cfg,
	}
}

// Start subscribes to completed LLM responses, each of which drives one
// synthesis+playback job.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		s.Subscribe(bus.LLMResponse, func(ctx context.Context, payload interface{}) {
			resp, ok := payload.(bus.LLMResponsePayload)
			if !ok || !resp.IsComplete || resp.Text == "" {
				return
			}
			s.speak(ctx, resp.Text, resp.ConversationID)
		})
		return nil
	})
}

// Stop halts any in-progress playback.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, func(ctx context.Context) error {
		if s.session != nil {
			return s.session.Stop()
		}
		return nil
	})
}

func (s *Service) speak(ctx context.Context, text, conversationID string) {
	var session Session
	operation := func() error {
		sess, err := s.opener.Open(ctx, text)
		if err != nil {
			return fmt.Errorf("open tts session: %w", err)
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

	s.Emit(ctx, bus.SpeechSynthesisStarted, bus.SpeechSynthesisPayload{
		Envelope: bus.NewEnvelope(conversationID),
	})

	go s.drainAmplitudes(ctx, session, conversationID)

	err := session.Wait(ctx)
	s.session = nil

	s.Emit(ctx, bus.SpeechSynthesisCompleted, bus.SpeechSynthesisPayload{
		Envelope: bus.NewEnvelope(conversationID),
	})
	s.Emit(ctx, bus.SpeechSynthesisEnded, bus.SpeechSynthesisPayload{
		Envelope: bus.NewEnvelope(conversationID),
	})
	if err != nil {
		s.Logger().Warnw("tts playback ended with error", "error", err)
	}
}

func (s *Service) drainAmplitudes(ctx context.Context, session Session, conversationID string) {
	for sample := range session.Amplitudes() {
		s.Emit(ctx, bus.SpeechSynthesisAmplitude, bus.SpeechSynthesisPayload{
			Envelope:  bus.NewEnvelope(conversationID),
			Amplitude: sample.Level,
		})
	}
}
