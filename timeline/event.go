package timeline

// Event is a non-owning handle onto a node whose value is an
// EventState[A]: Fired(v) in the frame it occurs, None otherwise. Event
// values are cheap to copy — they carry only a NodeID and the owning
// Timeline.
type Event[A any] struct {
	id NodeID
	t  *Timeline
}

// ID returns the handle's underlying NodeID, for diagnostics and for
// matching entries in Timeline.EventTrace.
func (e Event[A]) ID() NodeID { return e.id }

// Value returns the event's current occurrence. Outside the frame it last
// fired in, this is None.
func (e Event[A]) Value() EventState[A] {
	return e.t.fetchNodeValue(e.id).(EventState[A])
}

// OnFired registers a synchronous listener invoked, in registration order
// and inside the timeline's coarse lock, every time e fires. Prefer Collect
// for listeners that do I/O or take any time — a slow OnFired listener
// blocks every other update. Returns a handle usable with Unlisten.
func (e Event[A]) OnFired(fn func(A)) int {
	return e.t.registerSyncListener(e.id, func(raw any) {
		if v, ok := raw.(EventState[A]).Value(); ok {
			fn(v)
		}
	})
}

// Unlisten removes a listener previously registered with OnFired.
func (e Event[A]) Unlisten(handle int) {
	e.t.unregisterSyncListener(e.id, handle)
}

// Collect registers an asynchronous listener, dispatched on the timeline's
// Scope outside the coarse lock, invoked with each occurrence's value.
func (e Event[A]) Collect(collector func(A)) {
	e.t.registerAsyncListener(e.id, func(raw any) {
		if v, ok := raw.(EventState[A]).Value(); ok {
			collector(v)
		}
	})
}

// Map applies f to every occurrence of e, preserving None. Same-type
// convenience wrapper around MapEvent — see MapEvent for the general form.
func (e Event[A]) Map(f func(A) A) Event[A] {
	return MapEvent(e, f)
}

// MapEvent applies f to every occurrence of e, producing an event of
// (possibly different) type B. A package-level function because Go methods
// cannot introduce a new type parameter for the result type.
func MapEvent[A, B any](e Event[A], f func(A) B) Event[B] {
	id := e.t.createMappedNode(
		e.id,
		func(raw any) any { return MapEventState(raw.(EventState[A]), f) },
		func() any { return NoEvent[B]() },
		func() any { return NoEvent[B]() },
	)
	return Event[B]{id: id, t: e.t}
}

// Filter keeps only occurrences for which p returns true, suppressing the
// rest to None.
func (e Event[A]) Filter(p func(A) bool) Event[A] {
	id := e.t.createMappedNode(
		e.id,
		func(raw any) any {
			v, ok := raw.(EventState[A]).Value()
			if !ok || !p(v) {
				return NoEvent[A]()
			}
			return FiredWith(v)
		},
		func() any { return NoEvent[A]() },
		func() any { return NoEvent[A]() },
	)
	return Event[A]{id: id, t: e.t}
}

// Gate suppresses occurrences of e while cond samples true, letting them
// through while cond samples false.
func (e Event[A]) Gate(cond Behavior[bool]) Event[A] {
	id := e.t.createMappedNode(
		e.id,
		func(raw any) any {
			v, ok := raw.(EventState[A]).Value()
			if !ok || cond.Sample() {
				return NoEvent[A]()
			}
			return FiredWith(v)
		},
		func() any { return NoEvent[A]() },
		func() any { return NoEvent[A]() },
	)
	return Event[A]{id: id, t: e.t}
}

// Merged combines events with Leftmost: when two or more fire in the same
// frame, the first (in argument order) wins.
func Merged[A any](events ...Event[A]) Event[A] {
	return MergedWith(Leftmost[A](), events...)
}

// MergedWith combines events, resolving simultaneous occurrences with
// strategy. Fires None in any frame where no parent fires.
func MergedWith[A any](strategy MergeStrategy[A], events ...Event[A]) Event[A] {
	if len(events) == 0 {
		panic("timeline: Merged/MergedWith requires at least one event")
	}
	t := events[0].t
	ids := make([]NodeID, len(events))
	for i, e := range events {
		ids[i] = e.id
	}
	combine := func(vals []any) any {
		var fired []A
		for _, raw := range vals {
			if v, ok := raw.(EventState[A]).Value(); ok {
				fired = append(fired, v)
			}
		}
		if len(fired) == 0 {
			return NoEvent[A]()
		}
		return FiredWith(strategy.Merge(fired))
	}
	id := t.createCombinedNode(ids, combine, func() any { return NoEvent[A]() })
	return Event[A]{id: id, t: t}
}

// BroadcastEvent is an Event whose occurrences are driven by an external
// producer calling Send, rather than derived from other nodes.
type BroadcastEvent[A any] struct {
	Event[A]
}

// Send delivers v as this frame's occurrence. Advances the timeline's frame
// counter (when time travel is enabled) and synchronously propagates to
// every dependent before returning. An error return means a user-supplied
// recompute, reducer, or listener downstream panicked; the panic's value is
// available via errors.As to *UserComputationFailure.
func (b BroadcastEvent[A]) Send(v A) error {
	return b.t.updateNodeValue(b.id, FiredWith(v))
}

// Label returns the label this event was created with, as passed to
// BroadcastEventOf or InternalBroadcastEventOf.
func (b BroadcastEvent[A]) Label() string {
	return b.t.nodeLabel(b.id)
}

// BroadcastEventOf creates a new external broadcast event. Its raw value is
// None except during the frame it fires, and is reset to None at the start
// of the next external update.
func BroadcastEventOf[A any](t *Timeline, label string) BroadcastEvent[A] {
	id := t.createNode(
		func() any { return NoEvent[A]() },
		nil,
		func() any { return NoEvent[A]() },
		nil,
		label,
	)
	reentrant := t.lockForUpdate()
	t.markExternalLocked(id)
	t.unlockForUpdate(reentrant)
	return BroadcastEvent[A]{Event: Event[A]{id: id, t: t}}
}

// InternalBroadcastEventOf creates a broadcast event like BroadcastEventOf,
// but not registered as external: Send on it never advances the frame
// counter or appends to the event trace, even when time travel is enabled.
// Used internally by the clock.
func InternalBroadcastEventOf[A any](t *Timeline, label string) BroadcastEvent[A] {
	id := t.createNode(
		func() any { return NoEvent[A]() },
		nil,
		func() any { return NoEvent[A]() },
		nil,
		label,
	)
	return BroadcastEvent[A]{Event: Event[A]{id: id, t: t}}
}
