package emit

import (
	"context"
	"testing"
)

func TestNullEmitter_DiscardsEverything(t *testing.T) {
	var emitter NullEmitter

	emitter.Emit(Event{Kind: KindUserFailure, Meta: map[string]any{"recovered": "boom"}})

	if err := emitter.EmitBatch(context.Background(), []Event{{Kind: KindNodeCreated}}); err != nil {
		t.Errorf("EmitBatch: expected nil error, got %v", err)
	}

	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("Flush: expected nil error, got %v", err)
	}
}

func TestNullEmitter_InterfaceContract(_ *testing.T) {
	var _ Emitter = NullEmitter{}
}
