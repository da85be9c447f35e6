package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSourceName(t *testing.T) {
	dsn := DataSourceName("/tmp/x.db", 20*time.Second)
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "_busy_timeout=20000")
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_foreign_keys=on")
}

func TestNewConnectionCreatesDirectoryAndUsesWAL(t *testing.T) {
	settings := &config.Settings{
		DatabasePath:   filepath.Join(t.TempDir(), "nested", "survey.db"),
		DBBusyTimeout:  time.Second,
		DBMaxOpenConns: 4,
	}
	db, err := NewConnectionWithLogger(settings, logging.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverSQLite, db.Driver)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestResolveDataSourceRejectsUnknownScheme(t *testing.T) {
	_, _, err := resolveDataSource(&config.Settings{DatabaseURL: "postgres://nope"})
	assert.Error(t, err)

	driver, dsn, err := resolveDataSource(&config.Settings{DatabaseURL: "libsql://survey.example.turso.io?authToken=x"})
	require.NoError(t, err)
	assert.Equal(t, DriverLibSQL, driver)
	assert.Equal(t, "libsql://survey.example.turso.io?authToken=x", dsn)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	settings := &config.Settings{DatabasePath: filepath.Join(t.TempDir(), "tx.db"), DBBusyTimeout: time.Second}
	db, err := NewConnectionWithLogger(settings, logging.NewDiscardLogger())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO t (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (v) VALUES (2)`)
		return err
	}))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.False(t, IsBusy(errors.New("other")))
	assert.True(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
	assert.False(t, IsUniqueViolation(nil))
}
