// Package llm turns final transcription segments into chat completions,
// streaming assistant text onto the bus and assembling streamed tool calls into
// complete, validated commands. Grounded on
// cantina_os/services/gpt_service.py's GPTService, in particular
// _stream_gpt_response's per-tool-call-id streaming accumulator.
//
// The vendor chat-completion client is abstracted behind Opener/Stream,
// the same shape internal/voice/stt uses for the vendor STT session,
// since SPEC_FULL.md excludes vendor SDKs from this core and treats them
// as external collaborators reached through an interface it defines.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
	"github.com/makeorbreak-studio/cantina-os/internal/voice"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/tools"
)

// Delta is one streamed fragment of a chat completion, mirroring the
// "delta" object OpenAI-shaped streaming APIs send per chunk.
type Delta struct {
	Content      string
	ToolCallID   string
	ToolCallName string
	ToolCallArgs string
	FinishReason string
}

// Stream yields Delta values for one in-flight turn until the vendor
// closes it; Recv returns ErrStreamDone at a clean end of stream and any
// other error on a terminal failure.
type Stream interface {
	Recv(ctx context.Context) (Delta, error)
}

// Opener starts a new chat completion request against messages and the
// tool definitions the model may call.
type Opener interface {
	Open(ctx context.Context, messages []voice.Message, toolDefs []tools.Definition) (Stream, error)
}

// Config mirrors GPTService._load_config's tunables.
type Config struct {
	MaxTokens      int
	MaxMessages    int
	SystemPrompt   string
	MaxOpenRetries int
	// ResetOnTurn clears conversation memory at the start of every turn
	// instead of accumulating across turns. Default true: the teacher's
	// streaming-option structs default to the safer, more predictable
	// choice unless told otherwise.
	ResetOnTurn bool
	// RateLimitPerMinute bounds outbound completion requests, mirroring
	// _rate_limit_window/_max_requests_per_window.
	RateLimitPerMinute int
}

// DefaultConfig mirrors the teacher's GPT_MODEL defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:          4000,
		MaxMessages:        20,
		SystemPrompt:       "You are DJ R3X, a helpful and enthusiastic Star Wars droid DJ assistant.",
		MaxOpenRetries:     3,
		ResetOnTurn:        true,
		RateLimitPerMinute: 50,
	}
}

// pendingToolCall accumulates one tool call's name/arguments across
// streamed deltas, mirroring tool_calls_collection's per-id entries.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

// Service streams chat completions for each final transcript and emits
// speech text plus validated tool calls onto the bus.
type Service struct {
	*service.Base

	opener   Opener
	registry *tools.Registry
	cfg      Config
	limiter  *rate.Limiter

	conv *voice.Conversation
}

// New constructs an llm Service bound to opener and the given tool
// registry (used to validate streamed tool-call arguments before they're
// emitted).
func New(b *bus.Bus, logger *zap.SugaredLogger, opener Opener, registry *tools.Registry, cfg Config) *Service {
	conv := voice.NewConversation("", cfg.MaxTokens, cfg.MaxMessages)
	conv.SetSystemPrompt(cfg.SystemPrompt)
	return &Service{
		Base:     service.New("gpt", b, logger),
		opener:   opener,
		registry: registry,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitPerMinute)), cfg.RateLimitPerMinute),
		conv:     conv,
	}
}

// Start subscribes to final transcription segments, each of which drives
// one conversation turn.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		s.Subscribe(bus.TranscriptionFinal, func(ctx context.Context, payload interface{}) {
			seg, ok := payload.(bus.TranscriptionSegmentPayload)
			if !ok || strings.TrimSpace(seg.Text) == "" {
				return
			}
			s.runTurn(ctx, seg.Text, seg.ConversationID)
		})
		return nil
	})
}

// Stop is a no-op beyond the base lifecycle: there is no vendor session
// to tear down between turns, only per-turn streams.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, nil)
}

func (s *Service) runTurn(ctx context.Context, userText, conversationID string) {
	if err := s.limiter.Wait(ctx); err != nil {
		s.Logger().Warnw("llm rate limiter wait aborted", "error", err)
		return
	}

	if s.cfg.ResetOnTurn {
		s.conv.Clear()
	}
	s.conv.AddMessage(voice.Message{Role: "user", Content: userText})

	var toolDefs []tools.Definition
	if s.registry != nil {
		for _, t := range s.registry.Tools() {
			toolDefs = append(toolDefs, tools.Definition{Tool: t})
		}
	}

	var stream Stream
	operation := func() error {
		st, err := s.opener.Open(ctx, s.conv.Messages(), toolDefs)
		if err != nil {
			return fmt.Errorf("open llm stream: %w", err)
		}
		stream = st
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.MaxOpenRetries))
	if err := backoff.Retry(operation, bo); err != nil {
		s.MarkDegraded(ctx, err.Error())
		return
	}

	startedAt := time.Now()
	s.drainStream(ctx, stream, conversationID)
	s.Emit(ctx, bus.PerformanceMetric, bus.PerformanceMetricPayload{
		Envelope:   bus.NewEnvelope(conversationID),
		Operation:  "llm.turn",
		DurationMs: float64(time.Since(startedAt).Microseconds()) / 1000,
	})
}

func (s *Service) drainStream(ctx context.Context, stream Stream, conversationID string) {
	var content strings.Builder
	pending := make(map[string]*pendingToolCall)
	var completed []bus.ToolCallResult

	for {
		delta, err := stream.Recv(ctx)
		if err != nil {
			if err != ErrStreamDone {
				s.Logger().Warnw("llm stream error", "error", err)
			}
			break
		}

		if delta.Content != "" {
			content.WriteString(delta.Content)
			s.Emit(ctx, bus.LLMResponse, bus.LLMResponsePayload{
				Envelope:   bus.NewEnvelope(conversationID),
				Text:       delta.Content,
				IsComplete: false,
			})
		}

		if delta.ToolCallID != "" {
			call, ok := pending[delta.ToolCallID]
			if !ok {
				call = &pendingToolCall{id: delta.ToolCallID}
				pending[delta.ToolCallID] = call
			}
			call.name += delta.ToolCallName
			call.args.WriteString(delta.ToolCallArgs)

			if result, ready := s.tryCompleteToolCall(call); ready {
				completed = append(completed, result)
				delete(pending, call.id)
			}
		}
	}

	// Final attempt for any tool call left pending: arguments that only
	// became parseable once the stream ended.
	for id, call := range pending {
		if result, ready := s.tryCompleteToolCall(call); ready {
			completed = append(completed, result)
			delete(pending, id)
		}
	}

	responseText := content.String()
	s.conv.AddMessage(voice.Message{Role: "assistant", Content: responseText})

	s.Emit(ctx, bus.LLMResponse, bus.LLMResponsePayload{
		Envelope:   bus.NewEnvelope(conversationID),
		Text:       responseText,
		IsComplete: true,
		ToolCalls:  completed,
	})

	for _, call := range completed {
		s.Emit(ctx, bus.IntentDetected, bus.IntentDetectedPayload{
			Envelope:     bus.NewEnvelope(conversationID),
			IntentName:   call.Name,
			Parameters:   call.Arguments,
			OriginalText: responseText,
		})
	}
}

// tryCompleteToolCall attempts to parse call's accumulated arguments as
// JSON, first as-is, then with single quotes normalized to double quotes
// (the teacher's cleanup fallback for models that emit near-JSON). It
// validates against the tool's registered schema before declaring the
// call complete.
func (s *Service) tryCompleteToolCall(call *pendingToolCall) (bus.ToolCallResult, bool) {
	if call.name == "" || call.args.Len() == 0 {
		return bus.ToolCallResult{}, false
	}
	raw := call.args.String()

	if parsed, ok := tryParseArgs(raw); ok {
		return s.finishToolCall(call, parsed)
	}

	cleaned := strings.ReplaceAll(raw, "'", "\"")
	if parsed, ok := tryParseArgs(cleaned); ok {
		return s.finishToolCall(call, parsed)
	}

	return bus.ToolCallResult{}, false
}

func (s *Service) finishToolCall(call *pendingToolCall, argsJSON []byte) (bus.ToolCallResult, bool) {
	if s.registry != nil {
		if err := s.registry.Validate(call.name, argsJSON); err != nil {
			s.Logger().Warnw("tool call failed schema validation", "tool", call.name, "error", err)
			return bus.ToolCallResult{}, false
		}
	}
	var args map[string]interface{}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.Logger().Warnw("tool call arguments did not decode as an object", "tool", call.name, "error", err)
		return bus.ToolCallResult{}, false
	}
	return bus.ToolCallResult{
		ID:        call.id,
		Name:      call.name,
		Arguments: args,
	}, true
}

// tryParseArgs uses jsonparser to cheaply confirm raw is a complete,
// well-formed JSON object before the caller commits to decoding it,
// mirroring the teacher's eager json.loads probe against a
// still-streaming argument buffer.
func tryParseArgs(raw string) ([]byte, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	data := []byte(trimmed)
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, offset int) error {
		return nil
	})
	if err != nil {
		return nil, false
	}
	return data, true
}

// ErrStreamDone is the sentinel a Stream implementation returns from Recv
// to signal a clean end of stream (the vendor-equivalent of an SSE
// "[DONE]" marker), distinct from a transport error.
var ErrStreamDone = fmt.Errorf("llm: stream done")
