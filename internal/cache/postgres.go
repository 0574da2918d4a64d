package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresBackend stores entries in the cache_entries and
// cache_list_entries tables created by the migrations package.
type PostgresBackend struct {
	db pgQuerier
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	if pool == nil {
		panic("cache: pgx pool required")
	}
	return &PostgresBackend{db: pool}
}

func newPostgresBackendWithQuerier(db pgQuerier) *PostgresBackend {
	if db == nil {
		panic("cache: querier required")
	}
	return &PostgresBackend{db: db}
}

func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value::text FROM cache_entries WHERE key = $1`
	var value string
	if err := p.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return []byte(value), nil
}

func (p *PostgresBackend) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO cache_entries (key, value, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	if _, err := p.db.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

func (p *PostgresBackend) PushBounded(ctx context.Context, key string, value []byte, limit int) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres push: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `INSERT INTO cache_list_entries (key, value) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, insert, key, string(value)); err != nil {
		return fmt.Errorf("postgres push: insert: %w", err)
	}
	if limit > 0 {
		trim := `
			DELETE FROM cache_list_entries
			WHERE key = $1 AND id NOT IN (
				SELECT id FROM cache_list_entries WHERE key = $1 ORDER BY id DESC LIMIT $2
			)
		`
		if _, err := tx.Exec(ctx, trim, key, limit); err != nil {
			return fmt.Errorf("postgres push: trim: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres push: commit: %w", err)
	}
	return nil
}

func (p *PostgresBackend) List(ctx context.Context, key string) ([][]byte, error) {
	query := `SELECT value::text FROM cache_list_entries WHERE key = $1 ORDER BY id ASC`
	rows, err := p.db.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("postgres list: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("postgres list: scan: %w", err)
		}
		out = append(out, []byte(value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres list: %w", err)
	}
	return out, nil
}
