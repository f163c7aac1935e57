// Package persistence provides SQLite-based storage for the tool execution
// audit trail.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"infraops/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	tool       TEXT NOT NULL,
	args       TEXT NOT NULL,
	result     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at DESC);
`

// AuditEntry is one recorded tool execution.
type AuditEntry struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"`
	Args      string    `json:"args"`
	Result    string    `json:"result"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// Store owns the audit database. It is an explicit injected object; callers
// hold the reference rather than reaching for a package singleton.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open creates or opens the audit database at dbPath and ensures the schema
// exists. Safe to call on an existing database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("audit database ready at %s", dbPath)
	return &Store{db: db, logger: logger}, nil
}

// RecordExecution appends one execution record. Implements dispatch.Auditor.
func (s *Store) RecordExecution(ctx context.Context, tool string, args map[string]any, result string, execErr error) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}

	errText := ""
	if execErr != nil {
		errText = execErr.Error()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, tool, args, result, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), tool, string(argsJSON), result, errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool, args, result, error, created_at FROM audit_log ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Tool, &e.Args, &e.Result, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
