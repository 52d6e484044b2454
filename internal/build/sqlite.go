package build

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nichedotsol/agentex/internal/model"
)

// SQLiteStore persists builds in a single SQLite table. The record body is
// stored as JSON with updated_at broken out for sweeping; per-key atomicity
// comes from an immediate transaction around each update.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS builds (
	id         TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS builds_updated_at ON builds (updated_at);
`

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("build: open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent updates.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("build: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, b model.Build) error {
	record, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("build: encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO builds (id, record, updated_at) VALUES (?, ?, ?)`,
		b.ID, string(record), b.UpdatedAt.UnixMilli())
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: %s", ErrExists, b.ID)
		}
		return fmt.Errorf("build: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Build, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM builds WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Build{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Build{}, fmt.Errorf("build: select: %w", err)
	}
	return decodeRecord(record)
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fn func(*model.Build)) (model.Build, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Build{}, fmt.Errorf("build: begin: %w", err)
	}
	defer tx.Rollback()

	var record string
	err = tx.QueryRowContext(ctx,
		`SELECT record FROM builds WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Build{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Build{}, fmt.Errorf("build: select for update: %w", err)
	}

	b, err := decodeRecord(record)
	if err != nil {
		return model.Build{}, err
	}
	fn(&b)
	b.ID = id
	b.UpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(b)
	if err != nil {
		return model.Build{}, fmt.Errorf("build: encode record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE builds SET record = ?, updated_at = ? WHERE id = ?`,
		string(updated), b.UpdatedAt.UnixMilli(), id); err != nil {
		return model.Build{}, fmt.Errorf("build: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Build{}, fmt.Errorf("build: commit: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM builds WHERE updated_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("build: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("build: sweep rows: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func decodeRecord(record string) (model.Build, error) {
	var b model.Build
	if err := json.Unmarshal([]byte(record), &b); err != nil {
		return model.Build{}, fmt.Errorf("build: decode record: %w", err)
	}
	return b, nil
}

// isSQLiteConstraint detects a primary-key violation without depending on
// driver-specific error types.
func isSQLiteConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint")
}
