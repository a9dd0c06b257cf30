package timeline

import (
	"fmt"

	"github.com/arborio/timeline/timeline/emit"
	"github.com/arborio/timeline/timeline/store"
)

// config accumulates Option values during New before a Timeline is built.
// Mirrors the teacher's functional-options shape (graph.Option).
type config struct {
	timeTravel   bool
	lazy         bool
	debug        bool
	historyLimit int
	scope        Scope
	emitter      emit.Emitter
	metrics      *Metrics
	clockFactory ClockFactory

	recorderStore store.Store
	recorderRunID string
}

// Option configures a Timeline at construction time.
type Option func(*config) error

// WithTimeTravel enables frame snapshotting and rollback/reset/next-state
// navigation. Disabled by default: a Timeline built without it never
// allocates GraphState snapshots, and ResetState/RollbackState/NextState
// return ErrUnsupportedOperation.
func WithTimeTravel() Option {
	return func(c *config) error {
		c.timeTravel = true
		return nil
	}
}

// WithLazy switches child propagation to dirty-marking for any child with
// no registered listeners, deferring its recompute until next read. Without
// this option every child recomputes eagerly on every parent update,
// regardless of whether anything is listening.
func WithLazy() Option {
	return func(c *config) error {
		c.lazy = true
		return nil
	}
}

// WithDebug enables node-creation events through the configured Emitter, in
// addition to the update and rollback events emitted regardless of this
// option.
func WithDebug() Option {
	return func(c *config) error {
		c.debug = true
		return nil
	}
}

// WithHistoryLimit bounds the number of retained frame snapshots. Once the
// limit is exceeded the oldest retained frame is evicted after every new
// snapshot. Zero (the default) means unbounded retention; only meaningful
// alongside WithTimeTravel.
func WithHistoryLimit(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return fmt.Errorf("timeline: history limit must be >= 0, got %d", n)
		}
		c.historyLimit = n
		return nil
	}
}

// WithScope overrides the Scope used to dispatch asynchronous listeners.
// Defaults to a goroutine-per-dispatch Scope bound to context.Background.
func WithScope(s Scope) Option {
	return func(c *config) error {
		if s == nil {
			return fmt.Errorf("timeline: WithScope requires a non-nil Scope")
		}
		c.scope = s
		return nil
	}
}

// WithEmitter overrides the Emitter used for node-lifecycle, update,
// rollback, and user-computation-failure observability events. Defaults to
// emit.NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *config) error {
		if e == nil {
			return fmt.Errorf("timeline: WithEmitter requires a non-nil Emitter")
		}
		c.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus Metrics instance, incremented alongside
// every update, rollback, and history-miss. Omitted by default (nil
// Metrics; no-op).
func WithMetrics(m *Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithClockFactory overrides how Timeline.Clock's background tick producer
// is built. Defaults to NewTickerClockFactory(100ms).
func WithClockFactory(f ClockFactory) Option {
	return func(c *config) error {
		if f == nil {
			return fmt.Errorf("timeline: WithClockFactory requires a non-nil factory")
		}
		c.clockFactory = f
		return nil
	}
}

// WithRecorder attaches a store.Store to which, when WithTimeTravel is also
// set, every external update and frame snapshot is asynchronously persisted
// under runID, for later reconstruction via ReplayFromTrace in a new
// process. Without WithTimeTravel nothing is recorded. The core never
// blocks on the store — persistence
// runs on the timeline's Scope, off the coarse lock, and a Store failure
// only ever surfaces as an observability event.
func WithRecorder(s store.Store, runID string) Option {
	return func(c *config) error {
		if s == nil {
			return fmt.Errorf("timeline: WithRecorder requires a non-nil Store")
		}
		if runID == "" {
			return fmt.Errorf("timeline: WithRecorder requires a non-empty runID")
		}
		c.recorderStore = s
		c.recorderRunID = runID
		return nil
	}
}
