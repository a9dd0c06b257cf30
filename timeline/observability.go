package timeline

import "github.com/arborio/timeline/timeline/emit"

// emitNodeCreatedLocked reports a new node, but only in debug mode — node
// creation is comparatively high-volume and uninteresting outside of
// development.
func (t *Timeline) emitNodeCreatedLocked(n *node) {
	if !t.debug {
		return
	}
	t.emitter.Emit(emit.Event{
		Kind:   emit.KindNodeCreated,
		NodeID: uint64(n.id),
		Label:  n.label,
		Frame:  t.currentFrame,
	})
}

func (t *Timeline) emitExternalUpdateLocked(n *node, value any, isExternal bool) {
	if !isExternal {
		return
	}
	t.emitter.Emit(emit.Event{
		Kind:   emit.KindExternalUpdate,
		NodeID: uint64(n.id),
		Label:  n.label,
		Frame:  t.currentFrame,
		Meta:   map[string]any{"value": value},
	})
}

func (t *Timeline) emitRollbackLocked(frame int) {
	if t.metrics != nil {
		t.metrics.rollbacksTotal.Inc()
	}
	t.emitter.Emit(emit.Event{
		Kind:  emit.KindRollback,
		Frame: frame,
	})
}

func (t *Timeline) emitHistoryMissLocked(frame int) {
	if t.metrics != nil {
		t.metrics.historyMisses.Inc()
	}
	t.emitter.Emit(emit.Event{
		Kind:  emit.KindHistoryMiss,
		Frame: frame,
		Meta:  map[string]any{"requested_frame": frame},
	})
}

func (t *Timeline) emitUserFailureLocked(f *UserComputationFailure) {
	if t.metrics != nil {
		t.metrics.userFailures.WithLabelValues(f.Label).Inc()
	}
	t.emitter.Emit(emit.Event{
		Kind:   emit.KindUserFailure,
		NodeID: uint64(f.NodeID),
		Label:  f.Label,
		Frame:  t.currentFrame,
		Meta:   map[string]any{"recovered": f.Recovered},
	})
}

func (t *Timeline) observeMetricsLocked() {
	if t.metrics == nil {
		return
	}
	t.metrics.updatesTotal.Inc()
	t.metrics.nodeCount.Set(float64(len(t.nodes)))
	t.metrics.currentFrame.Set(float64(t.currentFrame))
	t.metrics.retainedFrames.Set(float64(len(t.previousStates)))
}

// observePropagationDepthLocked reports the deepest child-propagation chain
// walked by a single updateNodeValue call.
func (t *Timeline) observePropagationDepthLocked(depth int) {
	if t.metrics == nil {
		return
	}
	t.metrics.propagationDepth.Observe(float64(depth))
}
