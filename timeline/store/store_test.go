package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// TestStore_InterfaceContract verifies each concrete backend implements
// Store without relying on a live database.
func TestStore_InterfaceContract(t *testing.T) {
	var _ Store = (*MemStore)(nil)
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*MySQLStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}

func TestMemStore_AppendAndLoadTrace(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.AppendExternalEvent(ctx, "run-1", 0, 1, 10); err != nil {
		t.Fatalf("AppendExternalEvent: %v", err)
	}
	if err := s.AppendExternalEvent(ctx, "run-1", 1, 2, "hello"); err != nil {
		t.Fatalf("AppendExternalEvent: %v", err)
	}

	records, err := s.LoadTrace(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Frame != 0 || records[0].NodeID != 1 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	var decoded string
	if err := json.Unmarshal(records[1].Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != "hello" {
		t.Fatalf("expected decoded value 'hello', got %q", decoded)
	}
}

func TestMemStore_LoadTrace_UnknownRunIsEmpty(t *testing.T) {
	s := NewMemStore()
	records, err := s.LoadTrace(context.Background(), "nope")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty trace, got %d records", len(records))
	}
}

func TestMemStore_SaveAndLoadFrameSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	snapshot := map[uint64]json.RawMessage{
		1: json.RawMessage(`1`),
		2: json.RawMessage(`"two"`),
	}
	if err := s.SaveFrameSnapshot(ctx, "run-1", 5, snapshot); err != nil {
		t.Fatalf("SaveFrameSnapshot: %v", err)
	}

	// Mutate the caller's map after saving; the store must hold its own copy.
	snapshot[1] = json.RawMessage(`999`)

	loaded, err := s.LoadFrameSnapshot(ctx, "run-1", 5)
	if err != nil {
		t.Fatalf("LoadFrameSnapshot: %v", err)
	}
	if string(loaded[1]) != "1" {
		t.Fatalf("expected stored snapshot unaffected by caller mutation, got %s", loaded[1])
	}
	if string(loaded[2]) != `"two"` {
		t.Fatalf("unexpected value for node 2: %s", loaded[2])
	}
}

func TestMemStore_LoadFrameSnapshot_NotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.LoadFrameSnapshot(context.Background(), "run-1", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Run exists (via a different frame) but the requested frame does not.
	_ = s.SaveFrameSnapshot(context.Background(), "run-1", 1, map[uint64]json.RawMessage{1: json.RawMessage(`1`)})
	_, err = s.LoadFrameSnapshot(context.Background(), "run-1", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing frame, got %v", err)
	}
}
