// Package pg backs the processed set with Postgres (managed mode), so
// dedup state survives moving the bot between hosts.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ProcessedStore implements store.ProcessedStore over Postgres.
type ProcessedStore struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(dsn string) (*ProcessedStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS message_hashes (
			id BIGSERIAL PRIMARY KEY,
			hash TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &ProcessedStore{db: db}, nil
}

func (s *ProcessedStore) Contains(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM message_hashes WHERE hash = $1`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query hash: %w", err)
	}
	return true, nil
}

func (s *ProcessedStore) Add(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_hashes (hash) VALUES ($1) ON CONFLICT (hash) DO NOTHING`, key)
	if err != nil {
		return fmt.Errorf("insert hash: %w", err)
	}
	return nil
}

func (s *ProcessedStore) Prune(ctx context.Context, max int) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_hashes`).Scan(&count); err != nil {
		return fmt.Errorf("count hashes: %w", err)
	}
	if count <= max {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM message_hashes WHERE id IN (
			SELECT id FROM message_hashes ORDER BY id ASC LIMIT $1
		)`, count-max/2)
	if err != nil {
		return fmt.Errorf("prune hashes: %w", err)
	}
	return nil
}

func (s *ProcessedStore) Close() error { return s.db.Close() }
