package timeline

import (
	"context"
	"sync/atomic"
)

var ambientTimeline atomic.Pointer[Timeline]

// Initialize builds a Timeline and installs it as the process-wide ambient
// instance, replacing any previously installed one. Prefer constructing a
// Timeline with New and threading it explicitly through your own call
// graph, or binding it to a context with WithTimeline — a mutable package
// global is easy to reach for but makes two independently-configured
// timelines in the same process (e.g. in tests run in parallel)
// impossible to support correctly.
func Initialize(opts ...Option) (*Timeline, error) {
	t, err := New(opts...)
	if err != nil {
		return nil, err
	}
	ambientTimeline.Store(t)
	return t, nil
}

// Current returns the ambient Timeline installed by Initialize, or
// ErrUninitializedTimeline if none has been installed.
func Current() (*Timeline, error) {
	t := ambientTimeline.Load()
	if t == nil {
		return nil, ErrUninitializedTimeline
	}
	return t, nil
}

type timelineContextKey struct{}

// WithTimeline returns a context carrying t, retrievable with FromContext.
// The preferred alternative to the ambient Initialize/Current pair when a
// request- or task-scoped timeline is needed rather than one process-wide
// instance.
func WithTimeline(ctx context.Context, t *Timeline) context.Context {
	return context.WithValue(ctx, timelineContextKey{}, t)
}

// FromContext returns the Timeline bound to ctx by WithTimeline, or
// ErrUninitializedTimeline if none is bound.
func FromContext(ctx context.Context) (*Timeline, error) {
	t, ok := ctx.Value(timelineContextKey{}).(*Timeline)
	if !ok || t == nil {
		return nil, ErrUninitializedTimeline
	}
	return t, nil
}
