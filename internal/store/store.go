package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbPool is the subset of pgxpool.Pool used by the repositories.
type dbPool interface {
	PgxPool
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool dbPool

	Users     UserRepository
	Calendars CalendarRepository
	Events    EventRepository
	Shares    ShareRepository
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool *pgxpool.Pool) *Store {
	return newStore(pool)
}

func newStore(pool dbPool) *Store {
	return &Store{
		pool:      pool,
		Users:     &userRepo{pool: pool},
		Calendars: &calendarRepo{pool: pool},
		Events:    &eventRepo{pool: pool},
		Shares:    &shareRepo{pool: pool},
	}
}

// Migrate applies any pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	defer observeDB(ctx, "db.migrate")()
	return ApplyMigrations(ctx, s.pool)
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
