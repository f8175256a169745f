// Package mic captures microphone audio and hands raw chunks to the bus.
// Grounded on cantina_os/services/mic_input_service.py's MicInputService:
// a hardware callback thread pushes chunks onto a bounded queue that a
// separate processing loop drains, exactly the "background thread to
// scheduler" hand-off spec.md §5 describes — here the hardware callback
// is whatever Device.Start's producer goroutine does, and the bus's own
// inbound queue is the hand-off point.
package mic

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// Chunk is one slice of captured audio, mirroring AudioChunkPayload's
// fields minus the envelope.
type Chunk struct {
	Samples    []byte
	SampleRate int
	Channels   int
}

// Device is the hardware/vendor capture abstraction this service drives.
// A real implementation wraps a platform audio API (e.g. portaudio); test
// and offline builds can supply a fake that replays recorded chunks.
// Start must run its producer in its own goroutine and return a stop func
// that halts it; Start itself must not block.
type Device interface {
	Start(chunks chan<- Chunk) (stop func(), err error)
}

// Config controls the capture channel's buffering, mirroring AudioConfig.
type Config struct {
	SampleRate int
	Channels   int
	QueueSize  int
}

// DefaultConfig matches the teacher's defaults: 16kHz mono, generously
// buffered against scheduler hiccups.
func DefaultConfig() Config {
	return Config{SampleRate: 16000, Channels: 1, QueueSize: 64}
}

// Service bridges Device capture to the bus: voice.listening.started
// starts capture, voice.listening.stopped stops it, and each captured
// chunk is emitted as it arrives.
type Service struct {
	*service.Base

	device Device
	cfg    Config

	chunks    chan Chunk
	stopCap   func()
	recording bool
}

// New constructs a mic Service bound to device.
func New(b *bus.Bus, logger *zap.SugaredLogger, device Device, cfg Config) *Service {
	return &Service{
		Base:   service.New("mic_input", b, logger),
		device: device,
		cfg:    cfg,
	}
}

// Start subscribes to the voice listening lifecycle topics.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		s.Subscribe(bus.VoiceListeningStarted, func(ctx context.Context, payload interface{}) {
			s.startCapture(ctx)
		})
		s.Subscribe(bus.VoiceListeningStopped, func(ctx context.Context, payload interface{}) {
			s.stopCapture()
		})
		return nil
	})
}

// Stop halts any in-progress capture before shutting down.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, func(ctx context.Context) error {
		s.stopCapture()
		return nil
	})
}

func (s *Service) startCapture(ctx context.Context) {
	if s.recording {
		return
	}
	s.chunks = make(chan Chunk, s.cfg.QueueSize)
	stop, err := s.device.Start(s.chunks)
	if err != nil {
		s.MarkDegraded(ctx, fmt.Sprintf("capture start failed: %v", err))
		return
	}
	s.stopCap = stop
	s.recording = true
	go s.drain(ctx)
}

func (s *Service) stopCapture() {
	if !s.recording {
		return
	}
	s.stopCap()
	s.recording = false
}

func (s *Service) drain(ctx context.Context) {
	for chunk := range s.chunks {
		s.Emit(ctx, bus.AudioChunk, audioChunkPayload(chunk))
	}
}

func audioChunkPayload(c Chunk) bus.AudioChunkPayload {
	return bus.AudioChunkPayload{
		Envelope:   bus.NewEnvelope(""),
		Samples:    c.Samples,
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
	}
}
