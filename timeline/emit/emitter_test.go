package emit

import (
	"context"
	"testing"
)

// mockEmitter is a minimal Emitter implementation for testing the interface
// contract independently of any shipped backend.
type mockEmitter struct {
	events []Event
}

func (m *mockEmitter) Emit(event Event) { m.events = append(m.events, event) }

func (m *mockEmitter) EmitBatch(_ context.Context, events []Event) error {
	m.events = append(m.events, events...)
	return nil
}

func (m *mockEmitter) Flush(context.Context) error { return nil }

func TestEmitter_InterfaceContract(_ *testing.T) {
	var _ Emitter = (*mockEmitter)(nil)
}

func TestEmitter_Emit(t *testing.T) {
	emitter := &mockEmitter{}

	emitter.Emit(Event{Kind: KindExternalUpdate, NodeID: 1, Frame: 1})
	emitter.Emit(Event{Kind: KindExternalUpdate, NodeID: 1, Frame: 2})

	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	if emitter.events[1].Frame != 2 {
		t.Errorf("expected second event's Frame = 2, got %d", emitter.events[1].Frame)
	}
}

func TestEmitter_EmitBatch(t *testing.T) {
	emitter := &mockEmitter{}

	events := []Event{
		{Kind: KindNodeCreated, NodeID: 1},
		{Kind: KindNodeCreated, NodeID: 2},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
}
