package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timeline.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_AppendAndLoadTrace(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

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

func TestSQLiteStore_TraceOrderedByFrame(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	// Insert out of frame order; LoadTrace must still return them sorted.
	for _, frame := range []int{3, 1, 2} {
		if err := s.AppendExternalEvent(ctx, "run-1", frame, 1, frame); err != nil {
			t.Fatalf("AppendExternalEvent(frame=%d): %v", frame, err)
		}
	}

	records, err := s.LoadTrace(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []int{1, 2, 3} {
		if records[i].Frame != want {
			t.Errorf("record %d: expected frame %d, got %d", i, want, records[i].Frame)
		}
	}
}

func TestSQLiteStore_LoadTrace_UnknownRunIsEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)
	records, err := s.LoadTrace(context.Background(), "nope")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty trace, got %d records", len(records))
	}
}

func TestSQLiteStore_SaveAndLoadFrameSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	snapshot := map[uint64]json.RawMessage{
		1: json.RawMessage(`1`),
		2: json.RawMessage(`"two"`),
	}
	if err := s.SaveFrameSnapshot(ctx, "run-1", 5, snapshot); err != nil {
		t.Fatalf("SaveFrameSnapshot: %v", err)
	}

	loaded, err := s.LoadFrameSnapshot(ctx, "run-1", 5)
	if err != nil {
		t.Fatalf("LoadFrameSnapshot: %v", err)
	}
	if string(loaded[1]) != "1" {
		t.Fatalf("unexpected value for node 1: %s", loaded[1])
	}
	if string(loaded[2]) != `"two"` {
		t.Fatalf("unexpected value for node 2: %s", loaded[2])
	}
}

func TestSQLiteStore_SaveFrameSnapshot_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	first := map[uint64]json.RawMessage{1: json.RawMessage(`1`)}
	if err := s.SaveFrameSnapshot(ctx, "run-1", 0, first); err != nil {
		t.Fatalf("SaveFrameSnapshot (first): %v", err)
	}
	second := map[uint64]json.RawMessage{1: json.RawMessage(`2`)}
	if err := s.SaveFrameSnapshot(ctx, "run-1", 0, second); err != nil {
		t.Fatalf("SaveFrameSnapshot (second): %v", err)
	}

	loaded, err := s.LoadFrameSnapshot(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("LoadFrameSnapshot: %v", err)
	}
	if string(loaded[1]) != "2" {
		t.Fatalf("expected overwritten value '2', got %s", loaded[1])
	}
}

func TestSQLiteStore_LoadFrameSnapshot_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_, err := s.LoadFrameSnapshot(ctx, "run-1", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Run exists (via a different frame) but the requested frame does not.
	_ = s.SaveFrameSnapshot(ctx, "run-1", 1, map[uint64]json.RawMessage{1: json.RawMessage(`1`)})
	_, err = s.LoadFrameSnapshot(ctx, "run-1", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing frame, got %v", err)
	}
}

func TestSQLiteStore_MultipleRunsDoNotInterfere(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if err := s.AppendExternalEvent(ctx, "run-a", 0, 1, "a"); err != nil {
		t.Fatalf("AppendExternalEvent: %v", err)
	}
	if err := s.AppendExternalEvent(ctx, "run-b", 0, 1, "b"); err != nil {
		t.Fatalf("AppendExternalEvent: %v", err)
	}

	tracesA, err := s.LoadTrace(ctx, "run-a")
	if err != nil {
		t.Fatalf("LoadTrace(run-a): %v", err)
	}
	tracesB, err := s.LoadTrace(ctx, "run-b")
	if err != nil {
		t.Fatalf("LoadTrace(run-b): %v", err)
	}
	if len(tracesA) != 1 || len(tracesB) != 1 {
		t.Fatalf("expected 1 record per run, got %d and %d", len(tracesA), len(tracesB))
	}

	var a, b string
	_ = json.Unmarshal(tracesA[0].Value, &a)
	_ = json.Unmarshal(tracesB[0].Value, &b)
	if a != "a" || b != "b" {
		t.Fatalf("expected run-isolated values, got %q and %q", a, b)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "timeline.db")

	s1, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s1.AppendExternalEvent(ctx, "run-1", 0, 1, 7); err != nil {
		t.Fatalf("AppendExternalEvent: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore (reopen): %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	records, err := s2.LoadTrace(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record to survive reopen, got %d", len(records))
	}
}
