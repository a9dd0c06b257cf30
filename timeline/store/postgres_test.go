package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestPostgresStore_AppendExternalEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	s := newPostgresStoreWithConn(mock)

	mock.ExpectExec("INSERT INTO external_events").
		WithArgs("run-1", 3, int64(7), []byte(`42`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.AppendExternalEvent(context.Background(), "run-1", 3, 7, 42); err != nil {
		t.Fatalf("AppendExternalEvent returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_AppendExternalEvent_PropagatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	s := newPostgresStoreWithConn(mock)

	mock.ExpectExec("INSERT INTO external_events").
		WillReturnError(fmt.Errorf("connection refused"))

	if err := s.AppendExternalEvent(context.Background(), "run-1", 0, 1, "x"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPostgresStore_LoadTrace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	s := newPostgresStoreWithConn(mock)

	mock.ExpectQuery("SELECT frame, node_id, value FROM external_events").
		WithArgs("run-1").
		WillReturnRows(
			pgxmock.NewRows([]string{"frame", "node_id", "value"}).
				AddRow(0, int64(1), []byte(`1`)).
				AddRow(1, int64(2), []byte(`"hi"`)),
		)

	records, err := s.LoadTrace(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("LoadTrace returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Frame != 0 || records[0].NodeID != 1 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Frame != 1 || records[1].NodeID != 2 {
		t.Fatalf("unexpected second record: %+v", records[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_SaveAndLoadFrameSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	s := newPostgresStoreWithConn(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO frame_snapshots").
		WithArgs("run-1", 5, int64(1), []byte(`7`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	snapshot := map[uint64]json.RawMessage{1: json.RawMessage(`7`)}
	if err := s.SaveFrameSnapshot(context.Background(), "run-1", 5, snapshot); err != nil {
		t.Fatalf("SaveFrameSnapshot returned error: %v", err)
	}

	mock.ExpectQuery("SELECT node_id, value FROM frame_snapshots").
		WithArgs("run-1", 5).
		WillReturnRows(
			pgxmock.NewRows([]string{"node_id", "value"}).
				AddRow(int64(1), []byte(`7`)),
		)

	loaded, err := s.LoadFrameSnapshot(context.Background(), "run-1", 5)
	if err != nil {
		t.Fatalf("LoadFrameSnapshot returned error: %v", err)
	}
	if string(loaded[1]) != "7" {
		t.Fatalf("unexpected snapshot value: %s", loaded[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_SaveFrameSnapshot_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	s := newPostgresStoreWithConn(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO frame_snapshots").
		WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectRollback()

	snapshot := map[uint64]json.RawMessage{1: json.RawMessage(`1`)}
	if err := s.SaveFrameSnapshot(context.Background(), "run-1", 0, snapshot); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_LoadFrameSnapshot_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	s := newPostgresStoreWithConn(mock)

	mock.ExpectQuery("SELECT node_id, value FROM frame_snapshots").
		WithArgs("run-1", 9).
		WillReturnRows(pgxmock.NewRows([]string{"node_id", "value"}))

	_, err = s.LoadFrameSnapshot(context.Background(), "run-1", 9)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
