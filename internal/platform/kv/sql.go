package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type dialect struct {
	get    string
	upsert string
	del    string
}

var postgresDialect = dialect{
	get: `SELECT value FROM kv_entries WHERE key = $1`,
	upsert: `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`,
	del: `DELETE FROM kv_entries WHERE key = $1`,
}

var sqliteDialect = dialect{
	get: `SELECT value FROM kv_entries WHERE key = ?`,
	upsert: `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`,
	del: `DELETE FROM kv_entries WHERE key = ?`,
}

// SQL is a Store over a kv_entries table.
type SQL struct {
	db *sql.DB
	q  dialect
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return v, nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.q.upsert, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q.del, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
