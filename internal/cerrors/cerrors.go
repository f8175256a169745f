// Package cerrors defines the error taxonomy spec.md §7 names:
// ConfigError, ResourceUnavailable, ValidationError, TransientUpstream,
// HandlerFault and Shutdown. Each is a sentinel wrapped with
// fmt.Errorf("...: %w", err), matching the teacher's
// callcontext/store.go style, so callers can distinguish taxonomy with
// errors.Is while still seeing the concrete underlying cause in the
// error string.
package cerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per taxonomy entry. Wrap with Wrap* below rather
// than returning these directly, so the message carries the specific
// failure alongside the category.
var (
	// ErrConfig marks missing required config or secrets: fatal at
	// startup, never recovered from.
	ErrConfig = errors.New("config error")

	// ErrResourceUnavailable marks an unreachable audio device, music
	// directory or vendor endpoint: the owning service transitions to
	// ERROR and emits diagnostics, but the process keeps running.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrValidation marks a command schema mismatch: returned to the
	// originating surface (CLI response or WebSocket ack) with a
	// field-level reason. Never escalated onto the bus.
	ErrValidation = errors.New("validation error")

	// ErrTransientUpstream marks a vendor rate limit or 5xx: retried
	// with jittered backoff; on exhaustion a structured error event is
	// emitted and the service returns to RUNNING.
	ErrTransientUpstream = errors.New("transient upstream error")

	// ErrHandlerFault marks an uncaught failure inside a bus
	// subscriber: logged with its cause, the owning service transitions
	// to DEGRADED, and the bus keeps running.
	ErrHandlerFault = errors.New("handler fault")

	// ErrShutdown marks an externally requested shutdown: not a
	// failure, just the reason services are stopping in reverse
	// dependency order.
	ErrShutdown = errors.New("shutdown requested")
)

// WrapConfig wraps err as a ConfigError with context, e.g. a missing
// required field name.
func WrapConfig(context string, err error) error {
	return fmt.Errorf("%s: %w: %w", context, err, ErrConfig)
}

// WrapResourceUnavailable wraps err as a ResourceUnavailable fault.
func WrapResourceUnavailable(resource string, err error) error {
	return fmt.Errorf("%s unavailable: %w: %w", resource, err, ErrResourceUnavailable)
}

// WrapValidation wraps a field-level validation failure. field is the
// offending field name, reason is a human-readable explanation, matching
// the shape the web bridge and CLI both return to their caller.
func WrapValidation(field, reason string) error {
	return fmt.Errorf("field %q: %s: %w", field, reason, ErrValidation)
}

// WrapTransientUpstream wraps a vendor-facing error that is eligible for
// retry, e.g. before handing it to backoff.Retry.
func WrapTransientUpstream(vendor string, err error) error {
	return fmt.Errorf("%s: %w: %w", vendor, err, ErrTransientUpstream)
}

// WrapHandlerFault wraps a recovered panic or returned error from inside
// a bus subscriber.
func WrapHandlerFault(service string, err error) error {
	return fmt.Errorf("%s handler fault: %w: %w", service, err, ErrHandlerFault)
}

// Is reports whether err is in category's chain, a thin convenience
// wrapper over errors.Is for call sites that prefer cerrors.Is(err,
// cerrors.ErrConfig) over importing both errors and cerrors.
func Is(err, category error) bool {
	return errors.Is(err, category)
}
