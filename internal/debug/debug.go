// Package debug provides centralized log-level control, performance-metric
// aggregation and an LLM response console echo, grounded on
// cantina_os/services/debug_service.py's DebugService.
//
// Unlike the teacher, which mutates Python's global logging module
// (root logger, per-logger handlers, a hand-rolled level filter) from
// handle_debug_level_command, this service mutates a single shared
// internal/logging.LevelController that every zap core consults on each
// Check call. There is no Go equivalent of reaching into already-built
// *zap.Logger instances and changing their level after construction, so
// the controller indirection replaces it.
package debug

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/logging"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// Config mirrors DebugServiceConfig's tunables, minus default_log_level
// and component_log_levels which are owned by the logging.LevelController
// passed into New (there is exactly one level authority, not a copy held
// by each subscriber).
type Config struct {
	// PerformanceThresholds maps an operation name to the duration in
	// milliseconds above which a performance.metric sample logs a
	// warning. The teacher read this from a "performance_thresholds"
	// key its own DebugServiceConfig never declares, so
	// _handle_performance_metric's threshold branch is always a no-op
	// in the original; this redesigns it into a field that actually
	// carries values.
	PerformanceThresholds map[string]float64
}

// DefaultConfig returns an empty threshold map: no operation warns until
// the caller configures one.
func DefaultConfig() Config {
	return Config{PerformanceThresholds: map[string]float64{}}
}

// metricStats accumulates count/min/max/sum for one operation name,
// mirroring _handle_performance_metric's per-operation dict.
type metricStats struct {
	Count   int
	TotalMs float64
	MinMs   float64
	MaxMs   float64
}

// Service subscribes to debug.command, performance.metric and llm.response,
// giving dashboards and the console runtime visibility into log levels,
// operation timings and assistant replies.
type Service struct {
	*service.Base

	levels *logging.LevelController
	cfg    Config

	metricsMu sync.Mutex
	metrics   map[string]*metricStats

	seenMu sync.Mutex
	seenConversationIDs map[string]struct{}
}

// New constructs a debug Service. levels is the same controller returned
// by logging.BuildCore and threaded into every other service's zap core;
// mutating it here takes effect on the very next log call anywhere in the
// process.
func New(b *bus.Bus, logger *zap.SugaredLogger, levels *logging.LevelController, cfg Config) *Service {
	return &Service{
		Base:                service.New("debug", b, logger),
		levels:              levels,
		cfg:                 cfg,
		metrics:             make(map[string]*metricStats),
		seenConversationIDs: make(map[string]struct{}),
	}
}

// Start subscribes to every topic this service observes.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		s.Subscribe(bus.DebugCommand, func(ctx context.Context, payload interface{}) {
			cmd, ok := payload.(bus.DebugCommandPayload)
			if !ok {
				return
			}
			s.handleDebugCommand(ctx, cmd)
		})
		s.Subscribe(bus.PerformanceMetric, func(ctx context.Context, payload interface{}) {
			metric, ok := payload.(bus.PerformanceMetricPayload)
			if !ok {
				return
			}
			s.handlePerformanceMetric(ctx, metric)
		})
		s.Subscribe(bus.LLMResponse, func(ctx context.Context, payload interface{}) {
			resp, ok := payload.(bus.LLMResponsePayload)
			if !ok {
				return
			}
			s.handleLLMResponse(resp)
		})
		return nil
	})
}

// Stop clears accumulated performance metrics, mirroring _stop's
// self._metrics.clear().
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, func(ctx context.Context) error {
		s.metricsMu.Lock()
		s.metrics = make(map[string]*metricStats)
		s.metricsMu.Unlock()
		return nil
	})
}

// handleDebugCommand mutates the shared LevelController and responds on
// cli.response with the same success/error messages
// handle_debug_level_command returns.
func (s *Service) handleDebugCommand(ctx context.Context, cmd bus.DebugCommandPayload) {
	level, err := logging.ParseLevel(cmd.Level)
	if err != nil {
		s.respond(ctx, fmt.Sprintf("Invalid log level: %s", cmd.Level), service.SeverityError)
		return
	}

	component := cmd.Component
	if component == "" || strings.EqualFold(component, "all") {
		s.levels.SetDefault(level)
		s.respond(ctx, fmt.Sprintf("Set default log level to %s for all components", cmd.Level), service.SeverityInfo)
		return
	}

	s.levels.SetComponent(component, level)
	s.respond(ctx, fmt.Sprintf("Set log level for %s to %s", component, cmd.Level), service.SeverityInfo)
}

func (s *Service) respond(ctx context.Context, message string, severity service.Severity) {
	s.Emit(ctx, bus.CLIResponse, bus.CLIResponsePayload{
		Envelope: bus.NewEnvelope(""),
		Message:  message,
		Severity: string(severity),
	})
}

// handlePerformanceMetric folds one timed sample into its operation's
// running stats and warns when a configured threshold is exceeded.
func (s *Service) handlePerformanceMetric(ctx context.Context, metric bus.PerformanceMetricPayload) {
	s.metricsMu.Lock()
	stats, ok := s.metrics[metric.Operation]
	if !ok {
		stats = &metricStats{MinMs: math.Inf(1), MaxMs: math.Inf(-1)}
		s.metrics[metric.Operation] = stats
	}
	stats.Count++
	stats.TotalMs += metric.DurationMs
	if metric.DurationMs < stats.MinMs {
		stats.MinMs = metric.DurationMs
	}
	if metric.DurationMs > stats.MaxMs {
		stats.MaxMs = metric.DurationMs
	}
	s.metricsMu.Unlock()

	if threshold, ok := s.cfg.PerformanceThresholds[metric.Operation]; ok && metric.DurationMs > threshold {
		s.Logger().Warnw("operation exceeded performance threshold",
			"operation", metric.Operation,
			"duration_ms", metric.DurationMs,
			"threshold_ms", threshold,
		)
	}
}

// MetricSnapshot returns a copy of the current count/min/max/avg stats per
// operation, for the web dashboard's metrics panel.
func (s *Service) MetricSnapshot() map[string]MetricSummary {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()

	out := make(map[string]MetricSummary, len(s.metrics))
	for op, stats := range s.metrics {
		avg := 0.0
		if stats.Count > 0 {
			avg = stats.TotalMs / float64(stats.Count)
		}
		out[op] = MetricSummary{
			Count:  stats.Count,
			MinMs:  stats.MinMs,
			MaxMs:  stats.MaxMs,
			AvgMs:  avg,
		}
	}
	return out
}

// MetricSummary is the read-only view MetricSnapshot exposes.
type MetricSummary struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
}

// handleLLMResponse pretty-prints complete assistant responses (or the
// first chunk of a streaming one) to the console, mirroring
// _handle_llm_response's _seen_conversation_ids dedup so a streaming
// reply isn't re-printed on every delta.
func (s *Service) handleLLMResponse(resp bus.LLMResponsePayload) {
	if resp.Text == "" {
		return
	}

	convID := resp.ConversationID
	if convID == "" {
		convID = "unknown"
	}

	s.seenMu.Lock()
	if resp.IsComplete {
		delete(s.seenConversationIDs, convID)
	} else {
		if _, seen := s.seenConversationIDs[convID]; seen {
			s.seenMu.Unlock()
			return
		}
		s.seenConversationIDs[convID] = struct{}{}
	}
	s.seenMu.Unlock()

	shortID := convID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	formatted, err := prettyjson.Marshal(resp.ToolCalls)
	divider := "=================================================="
	fmt.Println()
	fmt.Println(divider)
	fmt.Printf("LLM RESPONSE (conv_id: %s...):\n", shortID)
	fmt.Println("--------------------------------------------------")
	fmt.Println(resp.Text)
	if err == nil && len(resp.ToolCalls) > 0 {
		fmt.Println(string(formatted))
	}
	fmt.Println(divider)
	fmt.Println()
}

