// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	schema "github.com/makhaen-survey/makhaen-go/internal/infrastructure/database"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
	"github.com/stretchr/testify/require"
)

// NewSettings returns settings rooted in a fresh temporary directory.
func NewSettings(t testing.TB) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		DatabasePath:       filepath.Join(dir, "makhaen.db"),
		DBBusyTimeout:      5 * time.Second,
		DBMaxOpenConns:     8,
		DBMaxIdleConns:     4,
		SlowQueryThreshold: time.Second,

		UploadDir:         filepath.Join(dir, "uploads"),
		MaxUploadBytes:    8 << 20,
		ThumbnailsEnabled: false,
		ThumbnailWidths:   []int{64},

		SessionSecret:      "test-session-secret",
		SessionTTL:         time.Hour,
		SessionCookie:      "makhaen_session",
		AdminPassword:      "9999",
		UserPassword:       "8888",
		LoginMaxFailures:   10,
		LoginFailureWindow: time.Minute,

		DeviceSurveyor:   "Hardware_Box",
		PresenceWindow:   5 * time.Minute,
		PresenceFloorOne: true,
		StatsCacheTTL:    time.Minute,
		LiveTickInterval: time.Minute,
	}
}

// NewLogger returns a logger that discards output.
func NewLogger(t testing.TB) *logging.ChanneledLogger {
	t.Helper()
	return logging.NewDiscardLogger()
}

// OpenStore opens the database described by settings without touching the schema.
func OpenStore(t testing.TB, settings *config.Settings) *database.DB {
	t.Helper()
	db, err := database.NewConnectionWithLogger(settings, NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// DefaultAccounts mirrors the accounts seeded at startup.
func DefaultAccounts(settings *config.Settings) []schema.DefaultAccount {
	return []schema.DefaultAccount{
		{Username: "admin", Password: settings.AdminPassword, Role: survey.RoleAdmin},
		{Username: "user01", Password: settings.UserPassword, Role: survey.RoleUser},
	}
}

// MustOpenStore returns an upgraded and seeded store in a temporary directory.
func MustOpenStore(t testing.TB) (*database.DB, *config.Settings) {
	t.Helper()
	settings := NewSettings(t)
	db := OpenStore(t, settings)

	manager := schema.NewSchemaManager(db, NewLogger(t))
	_, err := manager.Upgrade(context.Background())
	require.NoError(t, err)
	require.NoError(t, manager.SeedDefaultAccounts(context.Background(), DefaultAccounts(settings), false))
	return db, settings
}
