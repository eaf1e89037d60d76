package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// PostgresKV persists settings in qms_settings when Redis is not available.
// TTLs are not supported; every value is kept until overwritten.
type PostgresKV struct {
	db *sql.DB
}

func NewPostgresKV(db *sql.DB) *PostgresKV { return &PostgresKV{db: db} }

func (p *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM qms_settings WHERE key = $1`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrMiss
		}
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return v, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value string, _ time.Duration) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO qms_settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Next relies on the row lock taken by ON CONFLICT DO UPDATE.
func (p *PostgresKV) Next(ctx context.Context, key string, floor int64) (int64, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO qms_settings (key, value, updated_at)
		VALUES ($1, ($2::bigint + 1)::text, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = (GREATEST(qms_settings.value::bigint, $2::bigint) + 1)::text, updated_at = NOW()
		RETURNING value
	`, key, floor).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to bump counter %s: %w", key, err)
	}
	return strconv.ParseInt(v, 10, 64)
}
