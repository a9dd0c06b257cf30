// Package emit provides pluggable observability for a Timeline: node
// lifecycle, external updates, rollback navigation, and recovered
// user-computation panics, fanned out to logging, in-memory buffering, or
// OpenTelemetry tracing.
package emit

import "context"

// Emitter receives observability events from a Timeline.
//
// Implementations must not block graph propagation: Emit is called while
// the timeline's coarse lock is held (aside from async-listener failures
// and Recorder store failures, which call it from a Scope goroutine
// instead), so it must be
// fast and must not call back into the Timeline it is attached to.
type Emitter interface {
	// Emit sends a single event. Must not panic.
	Emit(event Event)

	// EmitBatch sends multiple events in their original order. Returns an
	// error only for catastrophic, configuration-level failures; a
	// best-effort implementation should still emit as much as it can.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until buffered events have been handed to the backend.
	// Safe to call multiple times.
	Flush(ctx context.Context) error
}
