// Package service provides the lifecycle scaffolding every CantinaOS
// service is built on: uniform start/stop semantics, status reporting,
// and automatic subscription cleanup. Grounded on
// cantina_os/base_service.py's BaseService, re-expressed as composition
// (concrete services embed *Base and supply start/stop hooks) rather than
// inheritance, matching the teacher's BaseTelephonyStreamer-embeds-
// BaseStreamer style in channel/telephony/internal/base/base.go.
package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/makeorbreak-studio/cantina-os/internal/bus"
)

// Hook is a subclass lifecycle callback. Returning an error from a start
// hook aborts startup and leaves the service in Error status; returning an
// error from a stop hook is logged but does not prevent shutdown from
// completing.
type Hook func(ctx context.Context) error

// Base is embedded by every concrete service. It is not usable until
// initialized with New.
type Base struct {
	name   string
	bus    *bus.Bus
	logger *zap.SugaredLogger

	statusMu sync.Mutex
	status   Status
	started  bool

	subsMu sync.Mutex
	subs   []func()
}

// New constructs a Base bound to name, the shared bus and a named
// sub-logger (`logger.Named(name)`, per the teacher's per-service logger
// convention).
func New(name string, b *bus.Bus, logger *zap.SugaredLogger) *Base {
	return &Base{
		name:   name,
		bus:    b,
		logger: logger.Named(name),
		status: Initializing,
	}
}

// Name returns the service's registered name.
func (b *Base) Name() string { return b.name }

// Logger returns the service's named sub-logger.
func (b *Base) Logger() *zap.SugaredLogger { return b.logger }

// Status returns the current lifecycle status.
func (b *Base) Status() Status {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return b.status
}

// Start runs onStart and transitions to Running on success. Idempotent: a
// second call while already started is a no-op. On failure the status is
// set to Error and the wrapped error is returned.
func (b *Base) Start(ctx context.Context, onStart Hook) error {
	b.statusMu.Lock()
	if b.started {
		b.statusMu.Unlock()
		return nil
	}
	b.status = Starting
	b.statusMu.Unlock()
	b.emitStatus(ctx, Starting, "starting", SeverityInfo)

	if onStart != nil {
		if err := onStart(ctx); err != nil {
			b.statusMu.Lock()
			b.status = Error
			b.statusMu.Unlock()
			b.emitStatus(ctx, Error, err.Error(), SeverityError)
			return fmt.Errorf("%s: start failed: %w", b.name, err)
		}
	}

	b.statusMu.Lock()
	b.started = true
	b.status = Running
	b.statusMu.Unlock()
	b.emitStatus(ctx, Running, "running", SeverityInfo)
	return nil
}

// Stop runs onStop, removes every subscription registered through
// Subscribe, and transitions to Stopped. Idempotent: a second call while
// already stopped is a no-op. A stop hook error is logged, not returned,
// so shutdown always completes and subscriptions are always released.
func (b *Base) Stop(ctx context.Context, onStop Hook) error {
	b.statusMu.Lock()
	if !b.started {
		b.statusMu.Unlock()
		return nil
	}
	b.status = Stopping
	b.statusMu.Unlock()
	b.emitStatus(ctx, Stopping, "stopping", SeverityInfo)

	if onStop != nil {
		if err := onStop(ctx); err != nil {
			b.logger.Errorw("stop hook failed", "error", err)
		}
	}
	b.removeSubscriptions()

	b.statusMu.Lock()
	b.started = false
	b.status = Stopped
	b.statusMu.Unlock()
	b.emitStatus(ctx, Stopped, "stopped", SeverityInfo)
	return nil
}

// MarkDegraded reports a non-fatal fault: the service keeps running but
// its status reflects reduced functionality, e.g. a handler panic recovered
// by the bus or a vendor call exhausting its retry budget.
func (b *Base) MarkDegraded(ctx context.Context, reason string) {
	b.statusMu.Lock()
	b.status = Degraded
	b.statusMu.Unlock()
	b.emitStatus(ctx, Degraded, reason, SeverityWarning)
}

// Subscribe wraps bus.Subscribe, tracking the returned unsubscribe func so
// Stop can release every subscription this service registered without the
// subclass tracking them itself.
func (b *Base) Subscribe(topic bus.Topic, handler bus.Handler) {
	unsub := b.bus.Subscribe(topic, handler)
	b.subsMu.Lock()
	b.subs = append(b.subs, unsub)
	b.subsMu.Unlock()
}

// Emit publishes payload on topic through the shared bus.
func (b *Base) Emit(ctx context.Context, topic bus.Topic, payload interface{}) {
	b.bus.Emit(ctx, topic, payload)
}

func (b *Base) removeSubscriptions() {
	b.subsMu.Lock()
	subs := b.subs
	b.subs = nil
	b.subsMu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
}

func (b *Base) emitStatus(ctx context.Context, status Status, message string, severity Severity) {
	b.Emit(ctx, bus.ServiceStatusUpdate, bus.ServiceStatusPayload{
		Envelope: bus.NewEnvelope(""),
		Service:  b.name,
		Status:   string(status),
		Message:  message,
		Severity: string(severity),
	})
}

// DebugLog emits a debug.log event, mirroring base_service.py's
// debug_log helper used throughout the original services for
// fine-grained tracing that the Debug Service surfaces on demand.
func (b *Base) DebugLog(ctx context.Context, level Severity, message string) {
	b.Emit(ctx, bus.DebugLog, bus.DashboardLogPayload{
		Envelope: bus.NewEnvelope(""),
		Service:  b.name,
		Level:    string(level),
		Message:  message,
	})
}
