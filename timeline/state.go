package timeline

// State is a non-owning handle onto a node whose value is a stepwise
// function of time: it holds a current value of type A at every instant,
// unlike Event which is only meaningful in the frame it fires. State[A]
// also implements Behavior[A] via Sample.
type State[A any] struct {
	id NodeID
	t  *Timeline
}

// ID returns the handle's underlying NodeID.
func (s State[A]) ID() NodeID { return s.id }

// Value returns the state's current value, forcing a lazy recompute if the
// node has never been read or is marked dirty.
func (s State[A]) Value() A {
	return s.t.fetchNodeValue(s.id).(A)
}

// Sample implements Behavior. Identical to Value; provided so a State can
// be passed anywhere a Behavior is expected (e.g. Event.Gate).
func (s State[A]) Sample() A {
	return s.Value()
}

// Map derives a new state of the same type by applying f to s's current
// value on every update. Same-type convenience wrapper around MapState.
func (s State[A]) Map(f func(A) A) State[A] {
	return MapState[A, A](s, f)
}

// MapState derives a new state of (possibly different) type B.
func MapState[A, B any](s State[A], f func(A) B) State[B] {
	id := s.t.createMappedNode(
		s.id,
		func(raw any) any { return f(raw.(A)) },
		nil,
		nil,
	)
	return State[B]{id: id, t: s.t}
}

// CombineWith derives a state that recomputes combine(s.Value(), other.Value())
// whenever either parent updates. Same-type convenience wrapper around
// CombineWith2 — use CombineWith2..CombineWith5 directly for differing
// parent/result types.
func (s State[A]) CombineWith(other State[A], combine func(A, A) A) State[A] {
	return CombineWith2[A, A, A](s.t, s, other, combine)
}

// CombineWith2 derives a state from two parents of independent types.
func CombineWith2[A, B, R any](t *Timeline, a State[A], b State[B], combine func(A, B) R) State[R] {
	id := t.createCombinedNode([]NodeID{a.id, b.id}, func(vals []any) any {
		return combine(vals[0].(A), vals[1].(B))
	}, nil)
	return State[R]{id: id, t: t}
}

// CombineWith3 derives a state from three parents of independent types.
func CombineWith3[A, B, C, R any](t *Timeline, a State[A], b State[B], c State[C], combine func(A, B, C) R) State[R] {
	id := t.createCombinedNode([]NodeID{a.id, b.id, c.id}, func(vals []any) any {
		return combine(vals[0].(A), vals[1].(B), vals[2].(C))
	}, nil)
	return State[R]{id: id, t: t}
}

// CombineWith4 derives a state from four parents of independent types.
func CombineWith4[A, B, C, D, R any](t *Timeline, a State[A], b State[B], c State[C], d State[D], combine func(A, B, C, D) R) State[R] {
	id := t.createCombinedNode([]NodeID{a.id, b.id, c.id, d.id}, func(vals []any) any {
		return combine(vals[0].(A), vals[1].(B), vals[2].(C), vals[3].(D))
	}, nil)
	return State[R]{id: id, t: t}
}

// CombineWith5 derives a state from five parents of independent types.
func CombineWith5[A, B, C, D, E, R any](t *Timeline, a State[A], b State[B], c State[C], d State[D], e State[E], combine func(A, B, C, D, E) R) State[R] {
	id := t.createCombinedNode([]NodeID{a.id, b.id, c.id, d.id, e.id}, func(vals []any) any {
		return combine(vals[0].(A), vals[1].(B), vals[2].(C), vals[3].(D), vals[4].(E))
	}, nil)
	return State[R]{id: id, t: t}
}

// CombineAll derives a state from a homogeneous list of parents, recomputed
// whenever any of them updates.
func CombineAll[A, R any](t *Timeline, states []State[A], combine func([]A) R) State[R] {
	ids := make([]NodeID, len(states))
	for i, s := range states {
		ids[i] = s.id
	}
	id := t.createCombinedNode(ids, func(vals []any) any {
		typed := make([]A, len(vals))
		for i, v := range vals {
			typed[i] = v.(A)
		}
		return combine(typed)
	}, nil)
	return State[R]{id: id, t: t}
}

// Updated returns an event that fires with s's value on every update to s.
func Updated[A any](s State[A]) Event[A] {
	id := s.t.createMappedNode(
		s.id,
		func(raw any) any { return FiredWith(raw.(A)) },
		func() any { return NoEvent[A]() },
		func() any { return NoEvent[A]() },
	)
	return Event[A]{id: id, t: s.t}
}

// FlatMap maps s through f (which returns a new State for each value of s)
// and flattens the result, so the returned state tracks whichever inner
// state f's most recent output designates.
func FlatMap[A, B any](s State[A], f func(A) State[B]) State[B] {
	return FlattenState(MapState(s, f))
}

// flattenSub tracks the currently-subscribed inner node so FlattenState can
// unregister its listener when the outer state switches to a new one.
type flattenSub struct {
	innerID    NodeID
	listenerID int
	subscribed bool
}

// FlattenState collapses a state-of-states into a single state that tracks
// whatever inner state the outer state currently designates. Implemented
// with a listener handle stored on the flatten node's own closure state and
// invalidated (unregistered) each time the outer state switches — never
// with a back-pointer from the inner state to its subscriber.
func FlattenState[B any](outer State[State[B]]) State[B] {
	t := outer.t
	reentrant := t.lockForUpdate()
	defer t.unlockForUpdate(reentrant)

	id := t.allocIDLocked()
	sub := &flattenSub{}

	var n *node
	selfRead := func() any { return n.value }
	n = newNode(id, defaultLabel("", id), selfRead, selfRead, nil, nil)
	t.nodes[id] = n

	subscribe := func(inner State[B]) {
		if sub.subscribed {
			if oldInner := t.nodes[sub.innerID]; oldInner != nil {
				oldInner.unregisterSync(sub.listenerID)
			}
		}
		sub.innerID = inner.id
		innerNode := t.nodes[inner.id]
		sub.listenerID = innerNode.registerSync(func(v any) {
			n.value = v
			n.forced = true
			n.dirty = false
			t.propagateLocked(id)
		})
		sub.subscribed = true
		n.value = t.fetchNodeValueLocked(inner.id)
		n.forced = true
		n.dirty = false
	}

	subscribe(t.fetchNodeValueLocked(outer.id).(State[B]))
	outerNode := t.nodes[outer.id]
	outerNode.registerSync(func(v any) {
		subscribe(v.(State[B]))
		t.propagateLocked(id)
	})
	// Deliberately not added via addChildLocked: the flatten node's update
	// is driven entirely by the sync listeners above (on the outer state
	// and on whichever inner state it currently designates), not by the
	// generic child-propagation path, so it must not also appear in
	// outer's adjacency list or it would be double-processed.
	t.emitNodeCreatedLocked(n)

	return State[B]{id: id, t: t}
}

// MutableState is a State whose value is set directly by an external
// producer via Set, rather than derived from other nodes.
type MutableState[A any] struct {
	State[A]
}

// Set writes v as the state's new current value and synchronously
// propagates to every dependent before returning. An error return means a
// user-supplied recompute, reducer, or listener downstream panicked.
func (m MutableState[A]) Set(v A) error {
	return m.t.updateNodeValue(m.id, v)
}

// Label returns the label this state was created with, as passed to
// MutableStateOf.
func (m MutableState[A]) Label() string {
	return m.t.nodeLabel(m.id)
}

// MutableStateOf creates a new external mutable state with the given
// initial value.
func MutableStateOf[A any](t *Timeline, initial A, label string) MutableState[A] {
	id := t.createNode(func() any { return initial }, nil, nil, nil, label)
	reentrant := t.lockForUpdate()
	t.markExternalLocked(id)
	t.unlockForUpdate(reentrant)
	return MutableState[A]{State: State[A]{id: id, t: t}}
}

// ConstState returns a State that always holds v and is never updated.
func ConstState[A any](t *Timeline, v A, label string) State[A] {
	id := t.createNode(func() any { return v }, nil, nil, nil, label)
	return State[A]{id: id, t: t}
}

// FoldState derives a state that starts at initial and, each frame ev
// fires, becomes reducer(current, firedValue). Under WithTimeTravel its
// consumed-event log is truncated and replayed from initial on rollback.
func FoldState[A, E any](t *Timeline, initial A, ev Event[E], reducer func(A, E) A, label string) State[A] {
	id := t.createFoldNode(initial, ev.id, func(acc, v any) any {
		return reducer(acc.(A), v.(E))
	}, label)
	return State[A]{id: id, t: t}
}

// HoldState derives a state that starts at initial and, each frame ev
// fires, is replaced by the fired value. Sugar over FoldState with a
// replace-rather-than-accumulate reducer.
func HoldState[A any](t *Timeline, initial A, ev Event[A], label string) State[A] {
	return FoldState[A, A](t, initial, ev, func(_, v A) A { return v }, label)
}
