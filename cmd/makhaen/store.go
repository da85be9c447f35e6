package main

import (
	"context"
	"fmt"

	"github.com/makhaen-survey/makhaen-go/internal/application/startup"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
)

// openStore opens the configured store for an operator command. Logging is
// silent unless verbose is set.
func openStore(ctx context.Context, verbose bool) (*database.DB, *config.Settings, *logging.ChanneledLogger, error) {
	logger := logging.NewDiscardLogger()
	if verbose {
		l, err := startup.NewLogger()
		if err != nil {
			return nil, nil, nil, err
		}
		logger = l
	}

	settings := config.Snapshot()
	db, err := database.NewConnectionWithLogger(settings, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("ping store: %w", err)
	}
	return db, settings, logger, nil
}
