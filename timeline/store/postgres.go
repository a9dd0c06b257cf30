package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxConn is the subset of *pgxpool.Pool this store needs. It exists so
// tests can substitute pgxmock's mock pool without a live database.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore is a Store backed by PostgreSQL via pgx, for deployments
// that already run Postgres and want the event trace and snapshots
// alongside their other application data.
type PostgresStore struct {
	pool      pgxConn
	closePool func()
}

// NewPostgresStore connects to Postgres using dsn (a libpq-style connection
// string) and ensures its schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, closePool: pool.Close}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// newPostgresStoreWithConn builds a PostgresStore around an already-open
// connection (or mock), skipping schema creation. Used by tests.
func newPostgresStoreWithConn(conn pgxConn) *PostgresStore {
	return &PostgresStore{pool: conn, closePool: func() {}}
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS external_events (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			node_id BIGINT NOT NULL,
			value JSONB NOT NULL,
			PRIMARY KEY (run_id, frame, node_id)
		)`,
		`CREATE TABLE IF NOT EXISTS frame_snapshots (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			node_id BIGINT NOT NULL,
			value JSONB NOT NULL,
			PRIMARY KEY (run_id, frame, node_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.closePool()
}

func (s *PostgresStore) AppendExternalEvent(ctx context.Context, runID string, frame int, nodeID uint64, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO external_events (run_id, frame, node_id, value) VALUES ($1, $2, $3, $4)`,
		runID, frame, int64(nodeID), encoded)
	return err
}

func (s *PostgresStore) LoadTrace(ctx context.Context, runID string) ([]ExternalEventRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT frame, node_id, value FROM external_events WHERE run_id = $1 ORDER BY frame ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExternalEventRecord
	for rows.Next() {
		var frame int
		var nodeID int64
		var raw []byte
		if err := rows.Scan(&frame, &nodeID, &raw); err != nil {
			return nil, err
		}
		out = append(out, ExternalEventRecord{Frame: frame, NodeID: uint64(nodeID), Value: json.RawMessage(raw)})
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveFrameSnapshot(ctx context.Context, runID string, frame int, snapshot map[uint64]json.RawMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for nodeID, value := range snapshot {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frame_snapshots (run_id, frame, node_id, value) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (run_id, frame, node_id) DO UPDATE SET value = EXCLUDED.value`,
			runID, frame, int64(nodeID), []byte(value)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) LoadFrameSnapshot(ctx context.Context, runID string, frame int) (map[uint64]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT node_id, value FROM frame_snapshots WHERE run_id = $1 AND frame = $2`, runID, frame)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := make(map[uint64]json.RawMessage)
	for rows.Next() {
		var nodeID int64
		var raw []byte
		if err := rows.Scan(&nodeID, &raw); err != nil {
			return nil, err
		}
		snapshot[uint64(nodeID)] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, ErrNotFound
	}
	return snapshot, nil
}
