package timeline

// Behavior is an abstract sampled value: a read-only view consulted at
// sampling time rather than a graph node in its own right. Every State[A]
// is also a Behavior[A] (State.Sample delegates to State.Value). Behaviors
// may be purely computed — Time, below, never touches the node table.
type Behavior[A any] interface {
	Sample() A
}

// BehaviorFunc adapts a plain function to Behavior, for purely computed
// behaviors that need no graph node at all.
type BehaviorFunc[A any] func() A

// Sample implements Behavior.
func (f BehaviorFunc[A]) Sample() A {
	return f()
}

// constBehavior is the Behavior produced by Behavior.Const.
type constBehavior[A any] struct{ v A }

func (c constBehavior[A]) Sample() A { return c.v }

// ConstBehavior returns a Behavior that always samples to v.
func ConstBehavior[A any](v A) Behavior[A] {
	return constBehavior[A]{v: v}
}
