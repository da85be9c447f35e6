package database

import (
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// GetSlowQueryThreshold returns the configured slow query threshold
func (db *DB) GetSlowQueryThreshold() time.Duration {
	if db.slowThreshold <= 0 {
		return 500 * time.Millisecond
	}
	return db.slowThreshold
}

// CheckSlow logs query on the slow-query channel when duration exceeds the threshold.
func (db *DB) CheckSlow(query string, duration time.Duration) {
	if db.logger == nil {
		return
	}
	threshold := db.GetSlowQueryThreshold()

	// Schema upgrades legitimately take longer.
	if strings.HasPrefix(query, "SCHEMA_") {
		threshold *= 3
	}

	if duration > threshold {
		db.logger.LogSlowQuery(query, duration)
	}
}

// IsBusy reports whether err is a lock timeout from the embedded store.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
