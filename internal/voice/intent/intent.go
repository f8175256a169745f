// Package intent routes detected intents to the hardware-facing command
// topics other services consume. Grounded on
// cantina_os/services/intent_router_service.py's IntentRouterService: a
// flat name-to-handler dispatch table, one handler per intent, each
// validating its own parameters and emitting a single downstream
// command event with the conversation id carried through.
package intent

import (
	"context"

	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// Handler translates an intent's parameters into zero or more bus
// emissions. Returning an error only logs a warning: one bad intent must
// never take the router down, matching _handle_intent's broad except.
type Handler func(ctx context.Context, s *Service, parameters map[string]interface{}, conversationID string) error

// Service dispatches intent.detected events to per-intent handlers.
type Service struct {
	*service.Base

	handlers map[string]Handler
}

// New constructs an intent Service with the default handler table
// (play_music, stop_music, set_eye_color), matching
// IntentRouterService._intent_handlers.
func New(b *bus.Bus, logger *zap.SugaredLogger) *Service {
	s := &Service{
		Base: service.New("intent_router", b, logger),
	}
	s.handlers = map[string]Handler{
		"play_music":    handlePlayMusic,
		"stop_music":    handleStopMusic,
		"set_eye_color": handleSetEyeColor,
	}
	return s
}

// Register adds or replaces the handler for intentName, for deployments
// that extend the router with additional tool-backed intents.
func (s *Service) Register(intentName string, h Handler) {
	s.handlers[intentName] = h
}

// Start subscribes to intent.detected.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		s.Subscribe(bus.IntentDetected, func(ctx context.Context, payload interface{}) {
			s.handleIntent(ctx, payload)
		})
		return nil
	})
}

func (s *Service) handleIntent(ctx context.Context, payload interface{}) {
	intent, ok := payload.(bus.IntentDetectedPayload)
	if !ok {
		return
	}

	handler, ok := s.handlers[intent.IntentName]
	if !ok {
		s.Logger().Warnw("no handler for intent", "intent", intent.IntentName)
		return
	}

	if err := handler(ctx, s, intent.Parameters, intent.ConversationID); err != nil {
		s.Logger().Warnw("intent handler failed", "intent", intent.IntentName, "error", err)
	}
}

func handlePlayMusic(ctx context.Context, s *Service, parameters map[string]interface{}, conversationID string) error {
	track, _ := parameters["track"].(string)
	if track == "" {
		s.Logger().Warnw("no track specified in play_music intent")
		return nil
	}
	s.Emit(ctx, bus.MusicCommand, bus.MusicCommandPayload{
		Envelope:  bus.NewEnvelope(conversationID),
		Action:    "play",
		SongQuery: track,
	})
	return nil
}

func handleStopMusic(ctx context.Context, s *Service, parameters map[string]interface{}, conversationID string) error {
	s.Emit(ctx, bus.MusicCommand, bus.MusicCommandPayload{
		Envelope: bus.NewEnvelope(conversationID),
		Action:   "stop",
	})
	return nil
}

func handleSetEyeColor(ctx context.Context, s *Service, parameters map[string]interface{}, conversationID string) error {
	color, _ := parameters["color"].(string)
	if color == "" {
		s.Logger().Warnw("no color specified in set_eye_color intent")
		return nil
	}
	pattern, _ := parameters["pattern"].(string)
	if pattern == "" {
		pattern = "solid"
	}
	intensity := 1.0
	if v, ok := parameters["intensity"].(float64); ok {
		intensity = v
	}

	s.Emit(ctx, bus.EyeCommand, bus.EyeCommandPayload{
		Envelope:  bus.NewEnvelope(conversationID),
		Pattern:   pattern,
		Color:     color,
		Intensity: intensity,
	})
	return nil
}
