package store

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"

	"gitea.jw6.us/james/calhub/internal/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool represents the subset of pgxpool.Pool needed to run migrations.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const (
	migrationTableExistsSQL = `SELECT EXISTS (
        SELECT 1 FROM information_schema.tables
        WHERE table_schema='public' AND table_name='schema_migrations'
)`
	countUserTablesSQL = `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')`
	createMigrationTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	migrationAppliedSQL = `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`
	recordMigrationSQL  = `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`
)

// ApplyMigrations runs every embedded migration that is not yet recorded in
// schema_migrations, each in its own transaction. A database that already has
// tables but no tracking table is treated as having the first migration.
func ApplyMigrations(ctx context.Context, pool PgxPool) error {
	names, err := migrationNames(migrations.Files)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	tracked, err := queryBool(ctx, pool, "check migration table", migrationTableExistsSQL)
	if err != nil {
		return err
	}
	if !tracked {
		if err := startTracking(ctx, pool, names[0]); err != nil {
			return err
		}
	}

	for _, name := range names {
		applied, err := queryBool(ctx, pool, "check migration "+name, migrationAppliedSQL, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := runMigration(ctx, pool, name); err != nil {
			return err
		}
		log.Printf("[INFO] applied migration %s", name)
	}
	return nil
}

func migrationNames(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// startTracking creates schema_migrations and, for a populated database,
// baselines it at the first migration.
func startTracking(ctx context.Context, pool PgxPool, baseline string) error {
	var tables int
	if err := pool.QueryRow(ctx, countUserTablesSQL).Scan(&tables); err != nil {
		return fmt.Errorf("count tables: %w", err)
	}
	if _, err := pool.Exec(ctx, createMigrationTableSQL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	if tables == 0 {
		return nil
	}
	return recordMigration(ctx, pool, baseline)
}

func queryBool(ctx context.Context, pool PgxPool, what, sql string, args ...any) (bool, error) {
	var ok bool
	if err := pool.QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	return ok, nil
}

func runMigration(ctx context.Context, pool PgxPool, name string) error {
	contents, err := migrations.Files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if err := recordMigration(ctx, tx, name); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func recordMigration(ctx context.Context, db execer, name string) error {
	if _, err := db.Exec(ctx, recordMigrationSQL, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return nil
}
