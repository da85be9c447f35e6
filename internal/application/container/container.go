// Package container provides dependency injection for all singleton services
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/application/services"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	schema "github.com/makhaen-survey/makhaen-go/internal/infrastructure/database"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/media"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/messaging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/metrics"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
	surveystore "github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/security"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	Settings *config.Settings
	Logger   *logging.ChanneledLogger
	Metrics  *metrics.Metrics
	DB       *database.DB

	// Repositories
	Records  survey.RecordRepository
	Accounts survey.AccountRepository
	Presence survey.PresenceRepository

	// Media
	Files      *media.FileStore
	Thumbnails *media.ThumbnailGenerator

	// Application services
	AuthService      *services.AuthService
	PresenceService  *services.PresenceService
	StatsService     *services.StatsService
	IngestionService *services.IngestionService
	SurveyService    *services.SurveyService

	LiveHub *messaging.LiveHub
}

// Options tunes container construction.
type Options struct {
	// SkipSeed leaves the accounts table untouched after the schema upgrade.
	SkipSeed bool
}

// DefaultAccounts returns the operator accounts seeded at startup.
func DefaultAccounts(settings *config.Settings) []schema.DefaultAccount {
	return []schema.DefaultAccount{
		{Username: "admin", Password: settings.AdminPassword, Role: survey.RoleAdmin},
		{Username: "user01", Password: settings.UserPassword, Role: survey.RoleUser},
	}
}

// NewContainer opens the store, brings its schema up to date, seeds the
// default accounts and wires every service around it.
func NewContainer(ctx context.Context, settings *config.Settings, logger *logging.ChanneledLogger, opts Options) (*Container, error) {
	if settings.SessionSecret == "" {
		secret, err := security.GenerateSecureKey(64)
		if err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		settings.SessionSecret = secret
		logger.Startup().Warn("SESSION_SECRET not set, generated an ephemeral key; sessions end on restart")
	}

	m, err := metrics.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	start := time.Now()
	db, err := database.NewConnectionWithLogger(settings, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.LogStartupPhase("database", time.Since(start), true, map[string]any{"driver": db.Driver})

	if err := PrepareSchema(ctx, db, settings, logger, opts); err != nil {
		db.Close()
		return nil, err
	}

	c := &Container{
		Settings: settings,
		Logger:   logger,
		Metrics:  m,
		DB:       db,
		Records:  surveystore.NewSQLRecordRepository(db, logger),
		Accounts: surveystore.NewSQLAccountRepository(db, logger),
		Presence: surveystore.NewSQLPresenceRepository(db, logger),
	}

	c.Files = media.NewFileStore(settings.UploadDir, logger)
	if settings.ThumbnailsEnabled {
		c.Thumbnails = media.NewThumbnailGenerator(c.Files, settings.ThumbnailWidths, logger)
	}

	c.AuthService = services.NewAuthService(c.Accounts, settings, logger, m)
	c.PresenceService = services.NewPresenceService(c.Presence, settings.PresenceWindow, logger, services.WithPresenceMetrics(m))
	c.StatsService = services.NewStatsService(c.Records, c.Accounts, settings.StatsCacheTTL, logger)

	c.LiveHub = messaging.NewLiveHub(c.PresenceService.CountOnline, settings.LiveTickInterval, logger)
	c.LiveHub.OnConnectionChange(m.LiveConnected)

	c.IngestionService = services.NewIngestionService(c.Records, c.Files, c.Thumbnails, settings, c.StatsService, c.LiveHub, logger, m)
	c.SurveyService = services.NewSurveyService(c.Records, c.StatsService, c.LiveHub, logger, m)

	return c, nil
}

// PrepareSchema upgrades the schema, which also rehashes legacy passwords,
// and seeds the default accounts unless opts.SkipSeed is set.
func PrepareSchema(ctx context.Context, db *database.DB, settings *config.Settings, logger *logging.ChanneledLogger, opts Options) error {
	start := time.Now()
	manager := schema.NewSchemaManager(db, logger)

	plan, err := manager.Upgrade(ctx)
	if err != nil {
		logger.LogStartupPhase("schema", time.Since(start), false, map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to upgrade schema: %w", err)
	}

	if !opts.SkipSeed {
		if err := manager.SeedDefaultAccounts(ctx, DefaultAccounts(settings), settings.ResetDefaultPasswords); err != nil {
			return fmt.Errorf("failed to seed default accounts: %w", err)
		}
	}

	logger.LogStartupPhase("schema", time.Since(start), true, map[string]any{
		"steps":    len(plan.Steps),
		"warnings": len(plan.Warnings),
		"rehashed": plan.Rehashed,
	})
	return nil
}

// Close releases the store and logger.
func (c *Container) Close() error {
	c.IngestionService.Wait()
	if err := c.DB.Close(); err != nil {
		return err
	}
	return c.Logger.Close()
}
