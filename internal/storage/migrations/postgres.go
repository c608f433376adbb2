package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"amm-indexer/internal/storage/postgres"
)

const postgresLedgerDDL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT        PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// RunPostgresMigrations applies every embedded PostgreSQL file not yet recorded in
// schema_migrations and returns the names it applied. Each file runs in its own
// transaction together with its ledger row.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	all, err := load("postgres")
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresLedgerDDL); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedPostgres(ctx, pool)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range pending(all, applied) {
		ran := false
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			// Claiming the name first makes a concurrent migrator wait, then skip.
			tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, m.name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return names, fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if ran {
			names = append(names, m.name)
		}
	}
	return names, nil
}

func appliedPostgres(ctx context.Context, pool *postgres.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
