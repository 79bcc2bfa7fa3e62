package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pochinki/pochinki/internal/config"
)

const DB_NAME = "pochinki"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=pochinki sslmode=disable"

const MAIN_SCHEMA = "pochinki"
const TESTING_SCHEMA = "pochinki_test"

// The ingestion cycle is sequential, so the pool mostly serves concurrent API reads
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	connectTimeout  = 10 * time.Second
)

func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

// GetConnectionString builds a libpq connection string. A host starting with / is a unix
// socket directory (Cloud SQL), other hosts require tls.
func GetConnectionString(dbUsername, dbPassword, host string) string {
	parts := []string{
		fmt.Sprintf("user=%s", dbUsername),
		fmt.Sprintf("password=%s", dbPassword),
		fmt.Sprintf("database=%s", DB_NAME),
		fmt.Sprintf("host=%s", host),
	}
	if !strings.HasPrefix(host, "/") {
		parts = append(parts, "sslmode=require")
	}
	return strings.Join(parts, " ")
}

func NewPostgresDatabase(connectionString string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	err = createDatabaseIfNotExists(ctx, db, DB_NAME)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return db, nil
}

func NewPostgresDatabaseFromConfig(conf config.Config) (*sqlx.DB, error) {
	connectionString := LOCAL_CONNECTION_STRING
	if !conf.IsDevelopment() || conf.DBHost() != "" {
		connectionString = GetConnectionString(conf.DBUsername(), conf.DBPassword(), conf.DBHost())
	}

	db, err := NewPostgresDatabase(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres database: %w", err)
	}

	return db, nil
}

func createDatabaseIfNotExists(ctx context.Context, db *sqlx.DB, dbName string) error {
	var exists bool
	err := db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName)
	if err != nil {
		return fmt.Errorf("createDB: failed to check if database exists: %w", err)
	}
	if exists {
		return nil
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		return fmt.Errorf("createDB: failed to create database: %w", err)
	}

	return nil
}
