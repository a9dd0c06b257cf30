package timeline

// EventState is the value carried by an event-valued node: either Fired(v)
// at the instant the event occurs, or None the rest of the time. None is
// the resting value — outside the frame in which an event node fires, its
// raw value is always None (see Event's on_next_frame reset hook).
type EventState[A any] struct {
	value A
	fired bool
}

// FiredWith constructs an occurrence carrying v.
func FiredWith[A any](v A) EventState[A] {
	return EventState[A]{value: v, fired: true}
}

// NoEvent constructs the resting (non-occurring) value for A.
func NoEvent[A any]() EventState[A] {
	return EventState[A]{}
}

// IsFired reports whether this is an occurrence.
func (e EventState[A]) IsFired() bool {
	return e.fired
}

// Value returns the carried value and whether it is an occurrence. Calling
// Value on a non-fired EventState returns the zero value of A and false.
func (e EventState[A]) Value() (A, bool) {
	return e.value, e.fired
}

// isFired and rawValue implement eventStateBox, letting fold-node machinery
// (type-erased, in timeline.go) inspect a boxed EventState[A] without
// knowing A.
func (e EventState[A]) isFired() bool  { return e.fired }
func (e EventState[A]) rawValue() any  { return e.value }

// MapEventState applies f to a Fired occurrence, preserving None. It is a
// package-level function rather than a method because Go methods cannot
// introduce a new type parameter for the result type B.
func MapEventState[A, B any](e EventState[A], f func(A) B) EventState[B] {
	if !e.fired {
		return NoEvent[B]()
	}
	return FiredWith(f(e.value))
}
