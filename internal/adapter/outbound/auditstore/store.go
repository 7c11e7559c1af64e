// Package auditstore persists audit.ExecutionRecords to a local SQLite
// file, one row per execution, narrowing the teacher's multi-table
// session/rate-limit state store down to a single append-only log
// (§12.3). No cgo: the driver is modernc.org/sqlite, a pure-Go
// translation of SQLite, so this adapter never needs a C toolchain at
// build time.
package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentscript/sentinel-enclave/internal/domain/audit"
)

// Store is a SQLite-backed audit.Store. Opened once at startup and
// shared across every Enclave.Run call for the process's lifetime.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed, opens (or creates) the
// SQLite file at path, and runs the schema migration. A single
// connection is held open: SQLite serializes writes at the file level
// regardless, and this process is the only writer (§12.3 describes a
// single-process append-only log, not a shared multi-tenant database),
// so there is no benefit to a connection pool here.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("auditstore: path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("auditstore: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auditstore: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id TEXT NOT NULL,
			preset_name TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			success INTEGER NOT NULL,
			error_code TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			tool_call_count INTEGER NOT NULL,
			iteration_count INTEGER NOT NULL,
			tool_calls_json TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_execution_id ON executions(execution_id);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_recorded_at ON executions(recorded_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append inserts one ExecutionRecord as a single row. ToolCalls is
// stored as a JSON blob rather than normalized into its own table: the
// audit trail is read by operators and export tooling wholesale per
// execution, never queried call-by-call, so a second table and a join
// would buy nothing here.
func (s *Store) Append(ctx context.Context, record audit.ExecutionRecord) error {
	toolCallsJSON, err := json.Marshal(record.ToolCalls)
	if err != nil {
		return fmt.Errorf("auditstore: marshal tool calls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (
			execution_id, preset_name, recorded_at, success,
			error_code, error_message, duration_ms, tool_call_count,
			iteration_count, tool_calls_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ExecutionID,
		record.PresetName,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		boolToInt(record.Success),
		record.ErrorCode,
		record.ErrorMessage,
		record.DurationMS,
		record.ToolCallCount,
		record.IterationCount,
		string(toolCallsJSON),
	)
	if err != nil {
		return fmt.Errorf("auditstore: insert: %w", err)
	}
	return nil
}

// Flush is a no-op: every Append is already a committed single-statement
// write, there is no in-memory batch to force out.
func (s *Store) Flush(context.Context) error { return nil }

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ audit.Store = (*Store)(nil)
