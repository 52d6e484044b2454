package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nichedotsol/agentex/internal/model"
)

// PostgresStore persists builds in Postgres. Updates run inside a
// transaction with SELECT FOR UPDATE, so the single-writer-per-key rule is
// enforced by the database rather than by caller convention.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS builds (
	id         TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS builds_updated_at ON builds (updated_at);
`

// NewPostgresStore connects to dsn, verifies the connection, and ensures
// the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("build: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("build: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("build: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, b model.Build) error {
	record, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("build: encode record: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO builds (id, record, updated_at) VALUES ($1, $2, $3)`,
		b.ID, record, b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrExists, b.ID)
		}
		return fmt.Errorf("build: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Build, error) {
	var record []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM builds WHERE id = $1`, id).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Build{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Build{}, fmt.Errorf("build: select: %w", err)
	}
	return decodeRecord(string(record))
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*model.Build)) (model.Build, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Build{}, fmt.Errorf("build: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var record []byte
	err = tx.QueryRow(ctx,
		`SELECT record FROM builds WHERE id = $1 FOR UPDATE`, id).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Build{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Build{}, fmt.Errorf("build: select for update: %w", err)
	}

	b, err := decodeRecord(string(record))
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
	if _, err := tx.Exec(ctx,
		`UPDATE builds SET record = $1, updated_at = $2 WHERE id = $3`,
		updated, b.UpdatedAt, id); err != nil {
		return model.Build{}, fmt.Errorf("build: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Build{}, fmt.Errorf("build: commit: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM builds WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("build: sweep: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
