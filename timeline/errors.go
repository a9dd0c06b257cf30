package timeline

import (
	"errors"
	"fmt"
)

// ErrUninitializedTimeline is returned by the ambient lookups when no
// Timeline is available: by Current before Initialize has installed one,
// and by FromContext when none is bound to the context.
var ErrUninitializedTimeline = errors.New("timeline: no timeline initialized in this context")

// ErrUnsupportedOperation is returned when an operation is requested that the
// current Timeline configuration does not support, e.g. rolling back a
// Timeline constructed without WithTimeTravel.
var ErrUnsupportedOperation = errors.New("timeline: operation not supported by this timeline's configuration")

// UserComputationFailure wraps a panic recovered from a user-supplied
// recompute closure, fold reducer, or listener. The current update operation
// surfaces it to its caller; per spec, partial mutations from steps 1-2 of
// updateNodeValue are not rolled back.
type UserComputationFailure struct {
	// NodeID identifies the node whose recompute/reducer/listener panicked.
	NodeID NodeID

	// Label is the node's label at the time of failure, for readability.
	Label string

	// Recovered is the value passed to panic().
	Recovered any
}

func (e *UserComputationFailure) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("timeline: node %d (%s): user computation panicked: %v", e.NodeID, e.Label, e.Recovered)
	}
	return fmt.Sprintf("timeline: node %d: user computation panicked: %v", e.NodeID, e.Recovered)
}

// Unwrap supports errors.Is/As when Recovered is itself an error.
func (e *UserComputationFailure) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// HistoryMiss is not an error in the Go sense — resetState silently no-ops
// when the target frame has no snapshot (end of history, or an evicted
// frame under WithHistoryLimit). It is named here because the engine
// reports it through the emitter/metrics as a distinguishable outcome, not
// because callers need to check for it.
