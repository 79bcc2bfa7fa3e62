package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

var ErrDirtyMigration = errors.New("database is in a dirty migration state")

type Migrator struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewDatabaseMigrator(db *sqlx.DB, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the schema if needed and applies all pending migrations to it.
// Returns the schema version after migrating.
func (m *Migrator) Migrate(ctx context.Context, schemaName string) (uint, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate: failed to connect to db: %w", err)
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(schemaName)))
	if err != nil {
		return 0, fmt.Errorf("migrate: failed to create schema: %w", err)
	}

	instance, err := newMigrateInstance(ctx, conn, schemaName)
	if err != nil {
		return 0, err
	}
	defer instance.Close()

	logger := m.logger.With(slog.String("schema", schemaName))

	before, dirty, err := schemaVersion(instance)
	if err != nil {
		return 0, err
	}
	if dirty {
		return 0, fmt.Errorf("migrate: schema %s at version %d: %w", schemaName, before, ErrDirtyMigration)
	}

	logger.InfoContext(ctx, "Starting migrations", "fromVersion", before)
	err = instance.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.InfoContext(ctx, "Schema up to date", "version", before)
		return before, nil
	} else if err != nil {
		return 0, fmt.Errorf("migrate: failed to migrate: %w", err)
	}

	after, _, err := schemaVersion(instance)
	if err != nil {
		return 0, err
	}
	logger.InfoContext(ctx, "Migrations completed", "fromVersion", before, "toVersion", after)

	return after, nil
}

// newMigrateInstance scopes a migrate instance to schemaName on the given connection
func newMigrateInstance(ctx context.Context, conn *sql.Conn, schemaName string) (*migrate.Migrate, error) {
	_, err := conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(schemaName)))
	if err != nil {
		return nil, fmt.Errorf("migrate: failed to set search path: %w", err)
	}

	source, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: failed to read embedded migrations: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{
		DatabaseName: DB_NAME,
		SchemaName:   schemaName,
	})
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("migrate: failed to create postgres driver: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("migrate: failed to create migration instance: %w", err)
	}

	return instance, nil
}

func schemaVersion(instance *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := instance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		// Fresh schema
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("migrate: failed to read schema version: %w", err)
	}
	return version, dirty, nil
}
