package timeline

import (
	"context"
	"encoding/json"

	"github.com/arborio/timeline/timeline/emit"
	"github.com/arborio/timeline/timeline/store"
)

// Recorder asynchronously bridges a Timeline's external-event trace and
// frame snapshots to a store.Store, keyed by runID. It is a convenience
// layered on top of the in-memory previousStates map, not a replacement:
// nothing in Store runs under the coarse lock, and a Store failure never
// aborts the update that triggered it — it only surfaces as a
// KindUserFailure observability event.
type Recorder struct {
	store store.Store
	runID string
}

func newRecorder(s store.Store, runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// recordExternalEventAsync dispatches a single AppendExternalEvent call onto
// the timeline's Scope. Called from updateNodeValueLocked while still
// holding t.mu, so it must not block or touch t directly — it captures only
// the immutable values it needs.
func (t *Timeline) recordExternalEventAsync(id NodeID, value any, frame int) {
	r := t.recorder
	scope, emitter := t.scope, t.emitter
	if esb, ok := value.(eventStateBox); ok {
		value = esb.rawValue()
	}
	scope.Go(func() {
		if err := r.store.AppendExternalEvent(context.Background(), r.runID, frame, uint64(id), value); err != nil {
			emitter.Emit(emit.Event{
				Kind:   emit.KindUserFailure,
				NodeID: uint64(id),
				Frame:  frame,
				Meta:   map[string]any{"recorder_append_error": err.Error()},
			})
		}
	})
}

// recordFrameSnapshotAsync JSON-encodes raw under the lock (since the raw
// values are only guaranteed stable until unlock) and dispatches the actual
// SaveFrameSnapshot call onto the Scope. Values that do not marshal cleanly
// (closures, channels) are silently skipped, per store.Store's documented
// contract.
func (t *Timeline) recordFrameSnapshotAsync(frame int, raw map[NodeID]any) {
	r := t.recorder
	scope, emitter := t.scope, t.emitter

	encoded := make(map[uint64]json.RawMessage, len(raw))
	for id, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		encoded[uint64(id)] = b
	}

	scope.Go(func() {
		if err := r.store.SaveFrameSnapshot(context.Background(), r.runID, frame, encoded); err != nil {
			emitter.Emit(emit.Event{
				Kind:  emit.KindUserFailure,
				Frame: frame,
				Meta:  map[string]any{"recorder_snapshot_error": err.Error()},
			})
		}
	})
}
