// Package timeline implements a push-pull reactive dependency graph: a
// directed acyclic graph of Event, State, and Behavior values that
// propagates updates from external inputs to their dependents, recomputing
// lazily where nothing is listening and eagerly where something is.
//
// The Timeline owns every node in the graph. Event and State are thin,
// non-owning handles onto a node plus a reference to the owning Timeline.
// External producers call BroadcastEvent.Send or MutableState.Set, which
// funnels through Timeline.updateNodeValue: the single entry point that
// writes the new value, advances the frame counter for external nodes,
// fires listeners, and propagates to children.
//
// Time travel (frame snapshot and rollback), laziness, and debug tracing are
// all optional, toggled at construction via Option values.
package timeline
