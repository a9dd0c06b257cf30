package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a Store backed by a MySQL/MariaDB database, for
// deployments that already run a shared MySQL instance and want the event
// trace and snapshots alongside their other application data.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL connection using dsn (in
// go-sql-driver/mysql's DSN format) and ensures its schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS external_events (
			run_id VARCHAR(255) NOT NULL,
			frame INT NOT NULL,
			node_id BIGINT UNSIGNED NOT NULL,
			value JSON NOT NULL,
			PRIMARY KEY (run_id, frame, node_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS frame_snapshots (
			run_id VARCHAR(255) NOT NULL,
			frame INT NOT NULL,
			node_id BIGINT UNSIGNED NOT NULL,
			value JSON NOT NULL,
			PRIMARY KEY (run_id, frame, node_id)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) AppendExternalEvent(ctx context.Context, runID string, frame int, nodeID uint64, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO external_events (run_id, frame, node_id, value) VALUES (?, ?, ?, ?)`,
		runID, frame, nodeID, string(encoded))
	return err
}

func (s *MySQLStore) LoadTrace(ctx context.Context, runID string) ([]ExternalEventRecord, error) {
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

func (s *MySQLStore) SaveFrameSnapshot(ctx context.Context, runID string, frame int, snapshot map[uint64]json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for nodeID, value := range snapshot {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO frame_snapshots (run_id, frame, node_id, value) VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE value = VALUES(value)`,
			runID, frame, nodeID, string(value)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *MySQLStore) LoadFrameSnapshot(ctx context.Context, runID string, frame int) (map[uint64]json.RawMessage, error) {
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
