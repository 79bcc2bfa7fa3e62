package database

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

const latestVersion = 6

func TestMigrator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping migrator tests in short mode.")
	}
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newSchema := func(t *testing.T, db *sqlx.DB, schemaName string) {
		t.Helper()
		db.MustExec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(schemaName)))
	}

	t.Run("migrate up creates all tables", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		schemaName := "migrate_up_tables"

		db, err := NewPostgresDatabase(LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		newSchema(t, db, schemaName)

		version, err := NewDatabaseMigrator(db, logger).Migrate(ctx, schemaName)
		require.NoError(t, err)
		require.Equal(t, uint(latestVersion), version)

		var tables []string
		err = db.SelectContext(ctx, &tables, `
			SELECT table_name FROM information_schema.tables
			WHERE table_schema = $1 AND table_name <> 'schema_migrations'
			ORDER BY table_name`, schemaName)
		require.NoError(t, err)
		require.Equal(t, []string{"api_calls", "cache", "player_stats", "players", "seasons", "weapon_mastery"}, tables)
	})

	t.Run("migrating twice is a no-op", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		schemaName := "migrate_twice"

		db, err := NewPostgresDatabase(LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		newSchema(t, db, schemaName)

		migrator := NewDatabaseMigrator(db, logger)
		_, err = migrator.Migrate(ctx, schemaName)
		require.NoError(t, err)

		version, err := migrator.Migrate(ctx, schemaName)
		require.NoError(t, err)
		require.Equal(t, uint(latestVersion), version)
	})

	t.Run("migrate up and down", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		schemaName := "migrate_up_down"

		db, err := NewPostgresDatabase(LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		newSchema(t, db, schemaName)

		_, err = NewDatabaseMigrator(db, logger).Migrate(ctx, schemaName)
		require.NoError(t, err)

		conn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		instance, err := newMigrateInstance(ctx, conn, schemaName)
		require.NoError(t, err)
		defer instance.Close()

		// Should not even be ErrNoChange
		require.NoError(t, instance.Down())

		version, dirty, err := schemaVersion(instance)
		require.NoError(t, err)
		require.False(t, dirty)
		require.Equal(t, uint(0), version)
	})

	t.Run("dirty schema is refused", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		schemaName := "migrate_dirty"

		db, err := NewPostgresDatabase(LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		newSchema(t, db, schemaName)

		migrator := NewDatabaseMigrator(db, logger)
		_, err = migrator.Migrate(ctx, schemaName)
		require.NoError(t, err)

		db.MustExec(fmt.Sprintf("UPDATE %s.schema_migrations SET dirty = true", pq.QuoteIdentifier(schemaName)))

		_, err = migrator.Migrate(ctx, schemaName)
		require.ErrorIs(t, err, ErrDirtyMigration)
	})
}
