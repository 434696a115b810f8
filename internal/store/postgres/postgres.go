// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/patdx/fly-watch/internal/model"
	"github.com/patdx/fly-watch/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) UpsertMachine(ctx context.Context, machine *model.Machine, watermark *int64) error {
	return queryUpsertMachine(ctx, s.db, machine, watermark)
}

func (s *PostgresStore) GetAllMachines(ctx context.Context) ([]*model.StoredMachine, error) {
	return queryGetAllMachines(ctx, s.db)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.StateChangeEvent) (int64, error) {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) MarkEventNotified(ctx context.Context, eventID int64) error {
	return queryMarkEventNotified(ctx, s.db, eventID)
}

func (s *PostgresStore) GetUnnotifiedEvents(ctx context.Context) ([]*model.StateChangeEvent, error) {
	return queryGetUnnotifiedEvents(ctx, s.db)
}

func (s *PostgresStore) GetAllEvents(ctx context.Context) ([]*model.StateChangeEvent, error) {
	return queryGetAllEvents(ctx, s.db)
}
