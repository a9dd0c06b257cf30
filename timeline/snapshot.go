package timeline

// GraphState is a persisted snapshot of every node's raw value and the
// child adjacency list, taken at the end of every update when
// WithTimeTravel is enabled. previousStates[frame] holds the GraphState as
// it stood after the last update completed while frame was current.
type GraphState struct {
	Values   map[NodeID]any
	Children map[NodeID][]NodeID
}

// HistoryStats summarizes the retained frame snapshots, for diagnostics and
// for tests asserting WithHistoryLimit eviction behavior.
type HistoryStats struct {
	RetainedFrames int
	OldestFrame    int
	NewestFrame    int
}

func (t *Timeline) pausedNodeIDLocked() NodeID {
	if t.pausedState == nil {
		return 0
	}
	return t.pausedState.id
}

// snapshotLocked records the current graph state under t.latestFrame,
// overwriting any snapshot already at that frame (the case when this call
// is itself a reentrant/internal update within the same external frame, or
// when new history is recorded after a rollback has rewound latestFrame).
func (t *Timeline) snapshotLocked() *GraphState {
	values := make(map[NodeID]any, len(t.nodes))
	for id, n := range t.nodes {
		values[id] = n.readRaw()
	}
	children := make(map[NodeID][]NodeID, len(t.children))
	for id, kids := range t.children {
		children[id] = append([]NodeID(nil), kids...)
	}
	gs := &GraphState{Values: values, Children: children}
	t.previousStates[t.latestFrame] = gs
	if t.historyLimit > 0 {
		t.evictOldFramesLocked()
	}
	return gs
}

func (t *Timeline) evictOldFramesLocked() {
	for len(t.previousStates) > t.historyLimit {
		oldest := t.latestFrame
		for f := range t.previousStates {
			if f < oldest {
				oldest = f
			}
		}
		delete(t.previousStates, oldest)
	}
}

// ResetState rewinds the timeline to the graph state recorded at frame. A
// frame with no retained snapshot (never recorded, or evicted under
// WithHistoryLimit) is a silent no-op, observable only through the emitter
// and metrics as a history miss. Requires WithTimeTravel.
func (t *Timeline) ResetState(frame int) error {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.resetStateLocked(frame)
}

// RollbackState rewinds to the frame immediately before the current one.
func (t *Timeline) RollbackState() error {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.resetStateLocked(t.latestFrame - 1)
}

// NextState advances to the frame immediately after the current one — redo,
// when the current frame is the result of a prior RollbackState/ResetState.
func (t *Timeline) NextState() error {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.resetStateLocked(t.latestFrame + 1)
}

func (t *Timeline) resetStateLocked(frame int) error {
	if !t.timeTravel {
		return ErrUnsupportedOperation
	}
	gs, ok := t.previousStates[frame]
	if !ok {
		t.emitHistoryMissLocked(frame)
		return nil
	}

	pausedID := t.pausedNodeIDLocked()
	for id, v := range gs.Values {
		if id == pausedID {
			continue
		}
		n, ok := t.nodes[id]
		if !ok {
			continue
		}
		n.value = v
		n.forced = true
		n.dirty = false
	}
	for id, n := range t.nodes {
		if id == pausedID {
			continue
		}
		if n.onRollback != nil {
			n.onRollback(frame)
		}
	}

	t.children = make(map[NodeID][]NodeID, len(gs.Children))
	for id, kids := range gs.Children {
		t.children[id] = append([]NodeID(nil), kids...)
	}

	t.latestFrame = frame
	t.currentFrame = frame
	t.emitRollbackLocked(frame)
	return nil
}

// HistoryStats reports the retained snapshot frame range. Returns the zero
// value if no frame has been snapshotted yet.
func (t *Timeline) HistoryStats() HistoryStats {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	if len(t.previousStates) == 0 {
		return HistoryStats{}
	}
	oldest, newest := t.latestFrame, 0
	for f := range t.previousStates {
		if f < oldest {
			oldest = f
		}
		if f > newest {
			newest = f
		}
	}
	return HistoryStats{RetainedFrames: len(t.previousStates), OldestFrame: oldest, NewestFrame: newest}
}
