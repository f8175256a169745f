// Package mode implements the system mode finite state machine: the four
// operating modes CantinaOS runs in and the grace-period-gated event
// sequence a transition between them emits. Grounded on
// cantina_os/services/yoda_mode_manager_service.py's YodaModeManagerService.
package mode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertbit/timer"
	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
	"github.com/makeorbreak-studio/cantina-os/internal/service"
)

// Mode is a system operation mode, mirrored from SystemMode in
// yoda_mode_manager_service.py.
type Mode string

const (
	Startup     Mode = "STARTUP"
	Idle        Mode = "IDLE"
	Ambient     Mode = "AMBIENT"
	Interactive Mode = "INTERACTIVE"
)

func parseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case Startup, Idle, Ambient, Interactive:
		return Mode(s), true
	default:
		return "", false
	}
}

// ParseMode validates s against the known mode set, for other packages
// (e.g. internal/music) that need to interpret system.mode.change
// payloads without depending on Manager.
func ParseMode(s string) (Mode, error) {
	m, ok := parseMode(s)
	if !ok {
		return "", fmt.Errorf("invalid mode: %s", s)
	}
	return m, nil
}

// Config controls the grace period observed before and after a mode
// transition takes effect, matching MODE_CHANGE_GRACE_PERIOD_MS.
type Config struct {
	GracePeriod time.Duration
}

// DefaultConfig matches the teacher's default of 100ms.
func DefaultConfig() Config {
	return Config{GracePeriod: 100 * time.Millisecond}
}

// Manager owns the current system mode and drives transitions between
// modes through the grace-period-gated event sequence:
// mode.transition.started -> (grace) -> system.mode.change -> (grace) ->
// mode.transition.complete.
type Manager struct {
	*service.Base

	cfg Config

	mu      sync.Mutex
	current Mode
}

// New constructs a Manager. The manager starts in Startup mode; Start
// transitions it to Idle after the configured grace periods, matching the
// teacher's _start() sequence.
func New(b *bus.Bus, logger *zap.SugaredLogger, cfg Config) *Manager {
	return &Manager{
		Base:    service.New("mode_manager", b, logger),
		cfg:     cfg,
		current: Startup,
	}
}

// Start subscribes to mode change requests and transitions to Idle.
func (m *Manager) Start(ctx context.Context) error {
	return m.Base.Start(ctx, func(ctx context.Context) error {
		m.Subscribe(bus.SystemSetModeRequest, func(ctx context.Context, payload interface{}) {
			m.handleModeRequest(ctx, payload)
		})
		sleep(ctx, m.cfg.GracePeriod)
		if err := m.SetMode(ctx, Idle); err != nil {
			return fmt.Errorf("transition to idle: %w", err)
		}
		if m.CurrentMode() != Idle {
			return fmt.Errorf("failed to transition to idle mode")
		}
		sleep(ctx, m.cfg.GracePeriod)
		return nil
	})
}

// Stop forces a transition back to Idle before shutdown, matching the
// teacher's _stop().
func (m *Manager) Stop(ctx context.Context) error {
	return m.Base.Stop(ctx, func(ctx context.Context) error {
		if m.CurrentMode() != Idle {
			if err := m.SetMode(ctx, Idle); err != nil {
				m.Logger().Errorw("failed to return to idle before shutdown", "error", err)
			}
		}
		sleep(ctx, m.cfg.GracePeriod)
		return nil
	})
}

// CurrentMode returns the mode the manager is currently in.
func (m *Manager) CurrentMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) handleModeRequest(ctx context.Context, payload interface{}) {
	p, ok := payload.(bus.SetModeRequestPayload)
	if !ok {
		return
	}
	if err := m.SetMode(ctx, Mode(p.Mode)); err != nil {
		m.Logger().Errorw("mode change request failed", "error", err, "requested", p.Mode)
	}
}

// SetMode transitions to newMode. If already in newMode, emits a
// cli.response notice and returns nil without re-running the sequence. On
// an invalid mode string, emits an error status and cli.response, and
// returns an error. A valid transition has no failure path: every step
// after validation runs, ending in mode.transition.complete with status
// "completed", and nothing is reverted.
func (m *Manager) SetMode(ctx context.Context, newMode Mode) error {
	resolved, ok := parseMode(string(newMode))
	if !ok {
		msg := fmt.Sprintf("invalid mode: %s", newMode)
		m.MarkDegraded(ctx, msg)
		m.Emit(ctx, bus.CLIResponse, bus.CLIResponsePayload{
			Envelope: bus.NewEnvelope(""),
			Message:  fmt.Sprintf("Error: %s", msg),
			Severity: "error",
		})
		return fmt.Errorf("invalid mode: %s", newMode)
	}

	m.mu.Lock()
	oldMode := m.current
	if resolved == oldMode {
		m.mu.Unlock()
		m.Emit(ctx, bus.CLIResponse, bus.CLIResponsePayload{
			Envelope: bus.NewEnvelope(""),
			Message:  fmt.Sprintf("Already in %s mode.", resolved),
			Severity: "info",
		})
		return nil
	}
	m.mu.Unlock()

	m.Emit(ctx, bus.ModeTransitionStarted, bus.ModeTransitionPayload{
		Envelope: bus.NewEnvelope(""),
		OldMode:  string(oldMode),
		NewMode:  string(resolved),
		Status:   "started",
	})

	sleep(ctx, m.cfg.GracePeriod)

	m.mu.Lock()
	m.current = resolved
	m.mu.Unlock()

	m.Emit(ctx, bus.SystemModeChange, bus.ModeChangePayload{
		Envelope: bus.NewEnvelope(""),
		OldMode:  string(oldMode),
		NewMode:  string(resolved),
	})

	sleep(ctx, m.cfg.GracePeriod)

	m.Emit(ctx, bus.ModeTransitionComplete, bus.ModeTransitionPayload{
		Envelope: bus.NewEnvelope(""),
		OldMode:  string(oldMode),
		NewMode:  string(resolved),
		Status:   "completed",
	})
	return nil
}

// sleep waits for d or until ctx is cancelled, whichever comes first. Uses
// desertbit/timer so repeated grace-period waits across many transitions
// don't each allocate a fresh runtime timer.
func sleep(ctx context.Context, d time.Duration) {
	t := timer.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
