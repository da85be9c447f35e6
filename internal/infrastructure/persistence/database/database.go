// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string

	logger        *logging.ChanneledLogger
	slowThreshold time.Duration
}

// DataSourceName builds the go-sqlite3 DSN for the embedded store. Every
// connection waits up to busyTimeout for a lock and begins write
// transactions with BEGIN IMMEDIATE.
func DataSourceName(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprintf("%d", busyTimeout.Milliseconds()))
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")
	params.Set("_foreign_keys", "on")
	return "file:" + path + "?" + params.Encode()
}

// NewConnectionWithLogger opens the store described by settings: the remote
// libsql database when DatabaseURL is set, otherwise the embedded SQLite file.
func NewConnectionWithLogger(settings *config.Settings, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()

	driverName, dsn, err := resolveDataSource(settings)
	if err != nil {
		logger.Database().Error("Invalid database configuration", "error", err.Error())
		return nil, err
	}
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	if settings.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(settings.DBMaxOpenConns)
	}
	if settings.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(settings.DBMaxIdleConns)
	}
	if settings.DBConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(settings.DBConnMaxLifetime)
	}

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		db.Close()
		return nil, err
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)

	conn := &DB{
		DB:            db,
		Driver:        driverName,
		logger:        logger,
		slowThreshold: settings.SlowQueryThreshold,
	}
	conn.CheckSlow("DATABASE_CONNECTION", duration)
	return conn, nil
}

func resolveDataSource(settings *config.Settings) (string, string, error) {
	if settings.DatabaseURL != "" {
		if !strings.HasPrefix(settings.DatabaseURL, "libsql://") && !strings.HasPrefix(settings.DatabaseURL, "https://") {
			return "", "", fmt.Errorf("unsupported DATABASE_URL scheme")
		}
		return DriverLibSQL, settings.DatabaseURL, nil
	}

	if settings.DatabasePath == "" {
		return "", "", fmt.Errorf("database path is empty")
	}
	if dir := filepath.Dir(settings.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return DriverSQLite, DataSourceName(settings.DatabasePath, settings.DBBusyTimeout), nil
}

// WithTx runs fn inside a transaction. With the embedded driver the
// transaction is IMMEDIATE, so the write lock is taken up front.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
