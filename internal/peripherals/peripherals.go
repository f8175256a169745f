// Package peripherals hosts the animatronic's side-effect subscribers:
// eye/light patterns and ambient sound cues. Neither drives real hardware
// — spec.md §1 Non-goals excludes LED/Arduino serial framing — so each
// is a simple status-driven subscriber, matching
// internal/voice/intent.Service's flat dispatch shape and spec.md §2's
// "Status-driven side effects, treated as simple subscribers" framing.
// There is no eye_light_service.py in the reference implementation to
// port; CantinaOS never shipped one, treating the physical eyes as an
// external consumer of eye.command the same way this build treats them.
package peripherals

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// EyeState is the last eye.command this service observed, exposed for the
// web dashboard's peripherals panel.
type EyeState struct {
	Pattern   string
	Color     string
	Intensity float64
}

// Service subscribes to eye.command and the ambient status topics
// (mode changes, music playback) that drive implicit eye/sound reactions
// even when no explicit eye.command was emitted.
type Service struct {
	*service.Base

	eye EyeState
}

// New constructs a peripherals Service. The default eye state is a dim
// idle glow, the same resting pattern the teacher's IDLE mode implies for
// other peripherals.
func New(b *bus.Bus, logger *zap.SugaredLogger) *Service {
	return &Service{
		Base: service.New("peripherals", b, logger),
		eye:  EyeState{Pattern: "idle", Color: "blue", Intensity: 0.3},
	}
}

// Start subscribes to every topic peripherals react to.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		s.Subscribe(bus.EyeCommand, func(ctx context.Context, payload interface{}) {
			cmd, ok := payload.(bus.EyeCommandPayload)
			if !ok {
				return
			}
			s.applyEyeCommand(ctx, cmd)
		})
		s.Subscribe(bus.SystemModeChange, func(ctx context.Context, payload interface{}) {
			change, ok := payload.(bus.ModeChangePayload)
			if !ok {
				return
			}
			s.reactToModeChange(ctx, change)
		})
		s.Subscribe(bus.MusicPlaybackStarted, func(ctx context.Context, payload interface{}) {
			track, ok := payload.(bus.MusicPlaybackStartedPayload)
			if !ok {
				return
			}
			s.reactToMusicStart(ctx, track)
		})
		s.Subscribe(bus.SpeechSynthesisStarted, func(ctx context.Context, payload interface{}) {
			s.DebugLog(ctx, service.SeverityInfo, "eyes: speaking pattern engaged")
		})
		s.Subscribe(bus.SpeechSynthesisEnded, func(ctx context.Context, payload interface{}) {
			s.DebugLog(ctx, service.SeverityInfo, "eyes: speaking pattern disengaged")
		})
		return nil
	})
}

// Stop has nothing to tear down: no hardware handle is held, only the
// subscriptions Base.Stop already releases.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, nil)
}

// EyeState returns the last applied eye pattern.
func (s *Service) EyeState() EyeState {
	return s.eye
}

func (s *Service) applyEyeCommand(ctx context.Context, cmd bus.EyeCommandPayload) {
	s.eye = EyeState{Pattern: cmd.Pattern, Color: cmd.Color, Intensity: cmd.Intensity}
	s.DebugLog(ctx, service.SeverityInfo, fmt.Sprintf(
		"eyes: pattern=%s color=%s intensity=%.2f", cmd.Pattern, cmd.Color, cmd.Intensity))
}

// reactToModeChange swaps the ambient eye pattern to match the new mode,
// the same implicit behavior the teacher's hardware rig exhibits without
// an explicit eye.command for every mode transition.
func (s *Service) reactToModeChange(ctx context.Context, change bus.ModeChangePayload) {
	pattern, color, intensity := ambientEyeFor(change.NewMode)
	s.eye = EyeState{Pattern: pattern, Color: color, Intensity: intensity}
	s.Emit(ctx, bus.EyeCommand, bus.EyeCommandPayload{
		Envelope:  bus.NewEnvelope(""),
		Pattern:   pattern,
		Color:     color,
		Intensity: intensity,
	})
}

func ambientEyeFor(mode string) (pattern, color string, intensity float64) {
	switch mode {
	case "INTERACTIVE":
		return "listening", "green", 0.8
	case "AMBIENT":
		return "ambient", "blue", 0.5
	case "DJ":
		return "pulse", "purple", 1.0
	default:
		return "idle", "blue", 0.3
	}
}

func (s *Service) reactToMusicStart(ctx context.Context, track bus.MusicPlaybackStartedPayload) {
	s.DebugLog(ctx, service.SeverityInfo, fmt.Sprintf("sound cue: now playing %s", track.TrackName))
}
