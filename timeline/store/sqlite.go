package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file Store, for local development and
// single-process deployments that want the event trace and snapshots to
// survive a restart without running a database server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and ensures its schema exists. path may be ":memory:" for a
// process-lifetime database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS external_events (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			node_id INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (run_id, frame, node_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_external_events_run ON external_events(run_id, frame)`,
		`CREATE TABLE IF NOT EXISTS frame_snapshots (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			node_id INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (run_id, frame, node_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendExternalEvent(ctx context.Context, runID string, frame int, nodeID uint64, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO external_events (run_id, frame, node_id, value) VALUES (?, ?, ?, ?)`,
		runID, frame, nodeID, string(encoded))
	return err
}

func (s *SQLiteStore) LoadTrace(ctx context.Context, runID string) ([]ExternalEventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame, node_id, value FROM external_events WHERE run_id = ? ORDER BY frame ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExternalEventRecord
	for rows.Next() {
		var rec ExternalEventRecord
		var raw string
		if err := rows.Scan(&rec.Frame, &rec.NodeID, &raw); err != nil {
			return nil, err
		}
		rec.Value = json.RawMessage(raw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveFrameSnapshot(ctx context.Context, runID string, frame int, snapshot map[uint64]json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for nodeID, value := range snapshot {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO frame_snapshots (run_id, frame, node_id, value) VALUES (?, ?, ?, ?)`,
			runID, frame, nodeID, string(value)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadFrameSnapshot(ctx context.Context, runID string, frame int) (map[uint64]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, value FROM frame_snapshots WHERE run_id = ? AND frame = ?`, runID, frame)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := make(map[uint64]json.RawMessage)
	for rows.Next() {
		var nodeID uint64
		var raw string
		if err := rows.Scan(&nodeID, &raw); err != nil {
			return nil, err
		}
		snapshot[nodeID] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, ErrNotFound
	}
	return snapshot, nil
}
