package timeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arborio/timeline/timeline/emit"
)

// Timeline owns every node in a reactive dependency graph. It is the
// single process- or scope-scoped container the rest of this package
// operates against: node table, child adjacency, frame counters, the
// external-event trace, and (when time travel is enabled) per-frame
// history snapshots.
//
// All mutation is serialized behind one coarse mutex (mu). Reads that force
// a lazy recompute also take the lock, since recompute closures call back
// into the timeline to read parent values. A goroutine already holding the
// lock (because it is running inside a listener invoked from
// updateNodeValueLocked) is allowed to re-enter without deadlocking — see
// lockForUpdate — which is how "re-entrant updates from inside a listener"
// are observed on the same frame rather than bumping a fresh one.
type Timeline struct {
	mu sync.Mutex

	// updating is true for the entire duration of the outermost
	// updateNodeValue/fetchNodeValue call on whichever goroutine currently
	// holds mu. A goroutine that observes it true before acquiring the lock
	// can only be the same goroutine re-entering from a listener callback
	// it is already running under the lock — any other goroutine blocks
	// normally on mu.Lock(). It is an atomic.Bool purely so the pre-lock
	// read itself is race-detector clean; the reentrancy argument above is
	// what makes the logic correct, not the atomicity.
	updating atomic.Bool

	nodes    map[NodeID]*node
	children map[NodeID][]NodeID
	nextID   NodeID

	externalNodes map[NodeID]struct{}

	currentFrame int
	latestFrame  int

	eventTrace []ExternalEvent

	previousStates map[int]*GraphState
	historyLimit   int

	pendingNextFrame []func()

	timeTravel bool
	lazy       bool
	debug      bool

	scope        Scope
	emitter      emit.Emitter
	metrics      *Metrics
	clockFactory ClockFactory
	recorder     *Recorder

	clockOnce    sync.Once
	pausedState  *MutableState[bool]
	clockEvent   *Event[time.Duration]
	timeBehavior *State[time.Duration]
}

// ExternalEvent is one entry in a Timeline's event trace: the NodeID of the
// externally-updated node and the raw value it was set to, recorded when
// time travel is enabled. Frames are numbered from 1, so eventTrace[i] is
// the update that produced frame i+1.
type ExternalEvent struct {
	NodeID NodeID
	Value  any
}

// New constructs a Timeline with the given options applied. A Timeline
// constructed without WithTimeTravel() never allocates history snapshots;
// rollback/reset calls on it return ErrUnsupportedOperation.
func New(opts ...Option) (*Timeline, error) {
	cfg := &config{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.scope == nil {
		cfg.scope = NewGoroutineScope(nil)
	}
	if cfg.emitter == nil {
		cfg.emitter = emit.NullEmitter{}
	}
	if cfg.clockFactory == nil {
		cfg.clockFactory = NewTickerClockFactory(defaultTickInterval)
	}

	var recorder *Recorder
	if cfg.recorderStore != nil {
		recorder = newRecorder(cfg.recorderStore, cfg.recorderRunID)
	}

	t := &Timeline{
		nodes:          make(map[NodeID]*node),
		children:       make(map[NodeID][]NodeID),
		externalNodes:  make(map[NodeID]struct{}),
		previousStates: make(map[int]*GraphState),
		historyLimit:   cfg.historyLimit,
		timeTravel:     cfg.timeTravel,
		lazy:           cfg.lazy,
		debug:          cfg.debug,
		scope:          cfg.scope,
		emitter:        cfg.emitter,
		metrics:        cfg.metrics,
		clockFactory:   cfg.clockFactory,
		recorder:       recorder,
	}
	return t, nil
}

// lockForUpdate acquires the coarse lock unless the calling goroutine
// already holds it (reentrant == true), in which case it is a no-op.
// Always pair with unlockForUpdate via defer.
func (t *Timeline) lockForUpdate() (reentrant bool) {
	if t.updating.Load() {
		return true
	}
	t.mu.Lock()
	t.updating.Store(true)
	return false
}

func (t *Timeline) unlockForUpdate(reentrant bool) {
	if reentrant {
		return
	}
	t.updating.Store(false)
	t.mu.Unlock()
}

func (t *Timeline) allocIDLocked() NodeID {
	t.nextID++
	return t.nextID
}

func defaultLabel(label string, id NodeID) string {
	if label != "" {
		return label
	}
	return fmt.Sprintf("node-%d", id)
}

func (t *Timeline) addChildLocked(parent, child NodeID) {
	t.children[parent] = append(t.children[parent], child)
}

// markExternalLocked registers id as an external node: future updates to it
// advance the frame counter and are recorded in the event trace, when time
// travel is enabled.
func (t *Timeline) markExternalLocked(id NodeID) {
	t.externalNodes[id] = struct{}{}
}

// --- Node factories (spec §4.2 "Node factories") ---
//
// Every factory here follows the same shape: allocate an ID, build the
// node's initial/recompute/reset closures, link parent->child adjacency,
// and emit a node-created observability event. None of them persist a
// snapshot — per the resolved "persistState" open question (spec.md §9),
// the timeline snapshots only at the end of updateNodeValue (after every
// update when time travel is enabled), never as a side effect of graph
// construction.

// createNode allocates an input (leaf) node. resetValue, if non-nil, is
// invoked to produce the value the node's raw value is reset to at the
// start of the next external update (used by event-valued input nodes to
// fall back to None).
func (t *Timeline) createNode(initial func() any, onUpdate func(any), resetValue func() any, onRollback func(int), label string) NodeID {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.createNodeLocked(initial, onUpdate, resetValue, onRollback, label)
}

func (t *Timeline) createNodeLocked(initial func() any, onUpdate func(any), resetValue func() any, onRollback func(int), label string) NodeID {
	id := t.allocIDLocked()
	n := newNode(id, defaultLabel(label, id), initial, initial, nil, onRollback)
	if resetValue != nil {
		n.onNextFrame = func() {
			n.value = resetValue()
			n.forced = true
			n.dirty = false
		}
	}
	if onUpdate != nil {
		n.registerSync(onUpdate)
	}
	t.nodes[id] = n
	t.emitNodeCreatedLocked(n)
	return id
}

// createMappedNode allocates a single-parent derived node. initialOverride,
// if non-nil, replaces the default initial value (f(parent.current)) — used
// by Event.Map/Filter/Gate to pin the pre-first-force value to None
// regardless of the parent's raw value at construction time.
func (t *Timeline) createMappedNode(parent NodeID, f func(any) any, initialOverride func() any, resetValue func() any) NodeID {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)

	id := t.allocIDLocked()
	recompute := func() any {
		return f(t.fetchNodeValueLocked(parent))
	}
	initial := initialOverride
	if initial == nil {
		initial = recompute
	}
	n := newNode(id, defaultLabel("", id), initial, recompute, nil, nil)
	if resetValue != nil {
		n.onNextFrame = func() {
			n.value = resetValue()
			n.forced = true
			n.dirty = false
		}
	}
	t.nodes[id] = n
	t.addChildLocked(parent, id)
	t.emitNodeCreatedLocked(n)
	return id
}

// createCombinedNode allocates an N-ary derived node. Initial is always
// combine([parent.raw for parent in parents]) — the same formula as
// recompute — since no combined-node constructor in this spec needs a
// different pre-first-force value.
func (t *Timeline) createCombinedNode(parents []NodeID, combine func([]any) any, resetValue func() any) NodeID {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)

	id := t.allocIDLocked()
	parentsCopy := append([]NodeID(nil), parents...)
	recompute := func() any {
		vals := make([]any, len(parentsCopy))
		for i, p := range parentsCopy {
			vals[i] = t.fetchNodeValueLocked(p)
		}
		return combine(vals)
	}
	n := newNode(id, defaultLabel("", id), recompute, recompute, nil, nil)
	if resetValue != nil {
		n.onNextFrame = func() {
			n.value = resetValue()
			n.forced = true
			n.dirty = false
		}
	}
	t.nodes[id] = n
	for _, p := range parentsCopy {
		t.addChildLocked(p, id)
	}
	t.emitNodeCreatedLocked(n)
	return id
}

// foldEntry is one (frame, consumed value) pair in a fold node's internal
// replay log, used by its on_rollback hook to reconstruct the accumulator
// up to a target frame.
type foldEntry struct {
	frame int
	value any
}

// foldState is the closure-captured mutable state of a fold node: the
// current accumulator and, when time travel is enabled, the ordered log of
// consumed events needed to replay from initial on rollback.
type foldState struct {
	initial any
	acc     any
	log     []foldEntry
}

// eventStateBox lets fold-node machinery (which is type-erased) ask an
// EventState[A] boxed as any whether it fired and, if so, unbox its payload
// without knowing A. Implemented by EventState[A] in eventstate.go.
type eventStateBox interface {
	isFired() bool
	rawValue() any
}

// createFoldNode allocates a node whose value starts at initial and, on
// each frame eventNode fires, becomes reducer(current, firedValue). The
// reducer is invoked once per update of eventNode: the fold node carries a
// no-op sync listener, so propagateLocked always recomputes it eagerly (even
// under WithLazy) while eventNode still holds the occurrence.
func (t *Timeline) createFoldNode(initial any, eventNode NodeID, reducer func(acc, v any) any, label string) NodeID {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)

	id := t.allocIDLocked()
	fs := &foldState{initial: initial, acc: initial}

	recompute := func() any {
		raw := t.fetchNodeValueLocked(eventNode)
		if esb, ok := raw.(eventStateBox); ok && esb.isFired() {
			v := esb.rawValue()
			fs.acc = reducer(fs.acc, v)
			if t.timeTravel {
				fs.log = append(fs.log, foldEntry{frame: t.currentFrame, value: v})
			}
		}
		return fs.acc
	}
	initialThunk := func() any { return fs.acc }
	onRollback := func(frame int) {
		acc := fs.initial
		kept := fs.log[:0]
		for _, e := range fs.log {
			if e.frame > frame {
				break
			}
			acc = reducer(acc, e.value)
			kept = append(kept, e)
		}
		fs.log = kept
		fs.acc = acc
	}

	n := newNode(id, defaultLabel(label, id), initialThunk, recompute, nil, onRollback)
	n.registerSync(func(any) {})
	t.nodes[id] = n
	t.addChildLocked(eventNode, id)
	t.emitNodeCreatedLocked(n)
	return id
}

// --- fetch / force (spec §4.2 "fetchNodeValue — read contract") ---

func (t *Timeline) fetchNodeValue(id NodeID) any {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.fetchNodeValueLocked(id)
}

func (t *Timeline) fetchNodeValueLocked(id NodeID) any {
	n := t.nodes[id]
	if n == nil {
		panic(fmt.Sprintf("timeline: fetch of unknown node %d", id))
	}
	if !n.dirty && n.forced {
		return n.value
	}
	return t.forceLocked(n)
}

// forceLocked computes n's value via its initial thunk (first force of a
// node that has not been marked dirty) or its recompute closure (a dirty
// node, and every force thereafter), wrapping panics as
// *UserComputationFailure per spec §4.6.
func (t *Timeline) forceLocked(n *node) any {
	var v any
	if !n.forced && !n.dirty {
		v = t.safeCallLocked(n, n.initial)
	} else {
		v = t.safeCallLocked(n, n.recompute)
	}
	n.value = v
	n.forced = true
	n.dirty = false
	return v
}

// recomputeNowLocked always invokes recompute (never the initial thunk),
// per the eager child-propagation rule in §4.2.1 ("compute C.raw_value :=
// C.recompute()"), regardless of whether the node has been forced before.
func (t *Timeline) recomputeNowLocked(n *node) any {
	v := t.safeCallLocked(n, n.recompute)
	n.value = v
	n.forced = true
	n.dirty = false
	return v
}

func (t *Timeline) safeCallLocked(n *node, fn func() any) (result any) {
	defer func() {
		if r := recover(); r != nil {
			failure := &UserComputationFailure{NodeID: n.id, Label: n.label, Recovered: r}
			t.emitUserFailureLocked(failure)
			panic(failure)
		}
	}()
	return fn()
}

// --- update (spec §4.2 "updateNodeValue — the update entry point") ---

func (t *Timeline) updateNodeValue(id NodeID, newValue any) error {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.updateNodeValueLocked(id, newValue, reentrant)
}

func (t *Timeline) updateNodeValueLocked(id NodeID, newValue any, internal bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if uf, ok := r.(*UserComputationFailure); ok {
				err = uf
				return
			}
			err = &UserComputationFailure{NodeID: id, Recovered: r}
		}
	}()

	n := t.nodes[id]
	if n == nil {
		return fmt.Errorf("timeline: update of unknown node %d", id)
	}

	// Step 1: run queued on_next_frame hooks from the previous frame.
	if !internal {
		t.runPendingNextFrameLocked()
	}

	// Step 2: write the new raw value.
	n.value = newValue
	n.forced = true
	n.dirty = false

	// Step 3: advance the frame for external nodes.
	_, isExternal := t.externalNodes[id]
	if !internal && t.timeTravel && isExternal {
		t.latestFrame++
		t.currentFrame = t.latestFrame
		t.eventTrace = append(t.eventTrace, ExternalEvent{NodeID: id, Value: newValue})
		if t.recorder != nil {
			t.recordExternalEventAsync(id, newValue, t.latestFrame)
		}
	}

	// Step 4: synchronous listeners, registration order.
	for _, l := range n.syncListeners {
		t.safeInvokeListenerLocked(n, l, newValue)
	}

	// Step 5: asynchronous listeners, scheduled on the scope.
	if len(n.asyncListeners) > 0 {
		t.dispatchAsyncLocked(n, newValue)
	}

	// Step 6: queue this node's own reset hook for next frame.
	if !internal && n.onNextFrame != nil {
		t.pendingNextFrame = append(t.pendingNextFrame, n.onNextFrame)
	}

	// Step 7: propagate to children.
	depth := t.propagateLocked(id)

	// Step 8: persist a snapshot.
	if t.timeTravel {
		gs := t.snapshotLocked()
		if t.recorder != nil {
			t.recordFrameSnapshotAsync(t.latestFrame, gs.Values)
		}
	}

	t.emitExternalUpdateLocked(n, newValue, isExternal)
	t.observeMetricsLocked()
	t.observePropagationDepthLocked(depth)
	return nil
}

func (t *Timeline) runPendingNextFrameLocked() {
	pending := t.pendingNextFrame
	t.pendingNextFrame = nil
	for _, hook := range pending {
		hook()
	}
}

// propagateLocked implements §4.2.1: depth-first child propagation. A child
// with no listeners under a lazy timeline is marked dirty and NOT
// recomputed; propagation does not descend through it. Otherwise the child
// is recomputed eagerly, its listeners fire, and propagation recurses into
// its own children. Returns the depth of the deepest chain walked (0 if id
// has no children), for the propagation-depth metric.
func (t *Timeline) propagateLocked(id NodeID) int {
	depth := 0
	for _, childID := range t.children[id] {
		child := t.nodes[childID]
		if child == nil {
			continue
		}
		if child.onNextFrame != nil {
			t.pendingNextFrame = append(t.pendingNextFrame, child.onNextFrame)
		}
		if t.lazy && !child.hasListeners() {
			child.dirty = true
			continue
		}
		newVal := t.recomputeNowLocked(child)
		for _, l := range child.syncListeners {
			t.safeInvokeListenerLocked(child, l, newVal)
		}
		if len(child.asyncListeners) > 0 {
			t.dispatchAsyncLocked(child, newVal)
		}
		if childDepth := 1 + t.propagateLocked(childID); childDepth > depth {
			depth = childDepth
		}
	}
	return depth
}

func (t *Timeline) safeInvokeListenerLocked(n *node, l listener, value any) {
	defer func() {
		if r := recover(); r != nil {
			failure := &UserComputationFailure{NodeID: n.id, Label: n.label, Recovered: r}
			t.emitUserFailureLocked(failure)
			panic(failure)
		}
	}()
	l.fn(value)
}

func (t *Timeline) dispatchAsyncLocked(n *node, value any) {
	listeners := append([]listener(nil), n.asyncListeners...)
	nodeID, label, emitter := n.id, n.label, t.emitter
	for _, l := range listeners {
		fn := l.fn
		t.scope.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					emitter.Emit(emit.Event{
						Kind:   emit.KindUserFailure,
						NodeID: uint64(nodeID),
						Label:  label,
						Meta:   map[string]any{"recovered": r},
					})
				}
			}()
			fn(value)
		})
	}
}

// --- typed registration helpers shared by event.go/state.go ---

func (t *Timeline) registerSyncListener(id NodeID, fn func(any)) int {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.nodes[id].registerSync(fn)
}

func (t *Timeline) registerAsyncListener(id NodeID, fn func(any)) int {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.nodes[id].registerAsync(fn)
}

func (t *Timeline) unregisterSyncListener(id NodeID, handle int) {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	if n := t.nodes[id]; n != nil {
		n.unregisterSync(handle)
	}
}

// EventTrace returns a copy of the recorded external events, in frame
// order. Empty when time travel is disabled.
func (t *Timeline) EventTrace() []ExternalEvent {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return append([]ExternalEvent(nil), t.eventTrace...)
}

// ExternalNodeIDs returns the set of NodeIDs registered as external, in no
// particular order.
func (t *Timeline) ExternalNodeIDs() []NodeID {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	ids := make([]NodeID, 0, len(t.externalNodes))
	for id := range t.externalNodes {
		ids = append(ids, id)
	}
	return ids
}

// CurrentFrame returns the timeline's current frame number (0 if time
// travel is disabled or no external update has occurred yet).
func (t *Timeline) CurrentFrame() int {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	return t.currentFrame
}

// nodeLabel returns id's label, as passed to the factory that created it (or
// the generated "node-N" default). Backs BroadcastEvent.Label and
// MutableState.Label.
func (t *Timeline) nodeLabel(id NodeID) string {
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)
	n := t.nodes[id]
	if n == nil {
		return ""
	}
	return n.label
}
