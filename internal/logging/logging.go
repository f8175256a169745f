// Package logging centralizes structured log capture: every service logs
// through a shared zap logger whose core this package builds, so a
// single interception point can buffer, deduplicate, persist and fan
// recent log activity out to the dashboard. Grounded on
// cantina_os/services/logging_service/logging_service.py's
// LoggingService, re-expressed around a zapcore.Core hook on the shared
// zap logger rather than Python's root-logger handler, since Go has no
// process-wide implicit logging sink to attach to.
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// Config controls ring buffer sizing, deduplication, the emergency rate
// ceiling and session file rotation. Defaults mirror LoggingService's
// _Config.
type Config struct {
	Level                    zapcore.Level
	MaxMemoryLogs            int
	SessionFilePath          string
	EnableDashboardStreaming bool
	DeduplicationWindow      time.Duration
	MaxLogsPerSecond         int
	MaxQueueSize             int

	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
}

// DefaultConfig mirrors LoggingService._Config's defaults.
func DefaultConfig() Config {
	return Config{
		Level:                    zapcore.InfoLevel,
		MaxMemoryLogs:            1000,
		SessionFilePath:          "./logs",
		EnableDashboardStreaming: true,
		DeduplicationWindow:      30 * time.Second,
		MaxLogsPerSecond:         50,
		MaxQueueSize:             10000,
		FileMaxSizeMB:            50,
		FileMaxBackups:           5,
		FileMaxAgeDays:           14,
	}
}

// BuildCore constructs the zapcore.Core every service's zap logger should
// share: a lumberjack-backed session file writer wrapped in a
// forwardingCore that also feeds the ring buffer/dedup/circuit-breaker
// pipeline a Service drains. Call this once at process start, before any
// service logger is built, and pass the Service constructed from its
// returned sessionID into New. The returned LevelController is what
// internal/debug mutates in response to debug.command; the inner file
// core itself is left open at DebugLevel since LevelController is the
// sole gate (see forwardingCore.Check).
func BuildCore(cfg Config) (zapcore.Core, string, *LevelController, error) {
	if err := os.MkdirAll(cfg.SessionFilePath, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("create log directory %s: %w", cfg.SessionFilePath, err)
	}
	sessionID := fmt.Sprintf("cantina-session-%s", time.Now().Format("20060102-150405"))
	sessionFile := filepath.Join(cfg.SessionFilePath, sessionID+".log")

	writer := &lumberjack.Logger{
		Filename:   sessionFile,
		MaxSize:    cfg.FileMaxSizeMB,
		MaxBackups: cfg.FileMaxBackups,
		MaxAge:     cfg.FileMaxAgeDays,
	}

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	fileCore := zapcore.NewCore(encoder, zapcore.AddSync(writer), zapcore.DebugLevel)

	coll := newCollector(cfg, sessionID)
	levels := NewLevelController(cfg.Level)
	return newForwardingCore(fileCore, coll, levels), sessionID, levels, nil
}

// Service owns the dashboard fan-out side of log capture: it drains the
// collector's entry channel built by BuildCore and republishes entries as
// dashboard.log events, matching _process_file_queue's
// "also emit to dashboard for each log in batch" behavior.
type Service struct {
	*service.Base

	cfg       Config
	sessionID string
	collector *collector
	done      chan struct{}
}

// New constructs the logging Service. core must be the value BuildCore
// returned (or a zapcore.Core built the same way), so the Service drains
// the same collector every other service's logger writes into. logger is
// the shared root logger built from that core (service.New further names
// it "logging", which BuildCore's own filter list excludes from capture
// to prevent a feedback loop).
func New(b *bus.Bus, logger *zap.SugaredLogger, core zapcore.Core, sessionID string, cfg Config) (*Service, error) {
	fc, ok := core.(*forwardingCore)
	if !ok {
		return nil, fmt.Errorf("logging: core was not built by BuildCore")
	}
	return &Service{
		Base:      service.New("logging", b, logger),
		cfg:       cfg,
		sessionID: sessionID,
		collector: fc.collector,
		done:      make(chan struct{}),
	}, nil
}

// Start begins draining the collector's entry stream to the dashboard.
func (s *Service) Start(ctx context.Context) error {
	return s.Base.Start(ctx, func(ctx context.Context) error {
		go s.drain(ctx)
		return nil
	})
}

// Stop signals the drain loop, which flushes whatever is still queued and
// then exits. Stop itself returns without waiting for that flush.
func (s *Service) Stop(ctx context.Context) error {
	return s.Base.Stop(ctx, func(ctx context.Context) error {
		close(s.done)
		return nil
	})
}

// BufferedEntries returns every currently buffered log entry, newest
// last, for a dashboard's initial backfill request.
func (s *Service) BufferedEntries() []LogEntry {
	return s.collector.buffer.snapshot()
}

func (s *Service) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flushRemaining()
			return
		case <-s.done:
			s.flushRemaining()
			return
		case entry := <-s.collector.out:
			s.publish(entry)
		}
	}
}

// flushRemaining drains whatever is still queued without blocking,
// matching _flush_remaining_logs's best-effort drain during shutdown.
func (s *Service) flushRemaining() {
	for {
		select {
		case entry := <-s.collector.out:
			s.publish(entry)
		default:
			return
		}
	}
}

func (s *Service) publish(entry LogEntry) {
	if !s.cfg.EnableDashboardStreaming {
		return
	}
	s.Emit(context.Background(), bus.DashboardLog, bus.DashboardLogPayload{
		Envelope: bus.NewEnvelope(""),
		Service:  entry.Service,
		Level:    entry.Level,
		Message:  entry.Message,
	})
}
