// Package startup prepares the application server
package startup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/makhaen-survey/makhaen-go/internal/application/container"
	"github.com/makhaen-survey/makhaen-go/internal/application/services"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/presentation/http/server"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
)

// ErrAlreadyRunning is returned when another server holds the data directory lock.
var ErrAlreadyRunning = errors.New("another makhaen server is already running on this data directory")

// NewLogger builds the channeled logger from the LOG_* settings.
func NewLogger() (*logging.ChanneledLogger, error) {
	cfg := logging.DefaultLoggerConfig()
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	cfg.JSONFormat = config.LogJSON
	if config.LogDir != "" {
		cfg.OutputToFile = true
		cfg.LogDirectory = config.LogDir
	}
	return logging.NewChanneledLogger(cfg)
}

// LockPath returns the lock file guarding the store described by settings.
func LockPath(settings *config.Settings) string {
	dir := settings.UploadDir
	if settings.DatabaseURL == "" {
		dir = filepath.Dir(settings.DatabasePath)
	}
	return filepath.Join(dir, ".makhaen.lock")
}

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize() error {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return Run(ctx, config.Port)
}

// Run starts the server on port and returns after ctx is cancelled and
// everything has shut down.
func Run(ctx context.Context, port string) error {
	start := time.Now().UTC()

	logger, err := NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	settings := config.Snapshot()

	// Step 1: Take the single-server lock on the data directory
	lockPath := LockPath(settings)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Shutdown().Warn("Failed to release data directory lock", "error", err.Error())
		}
	}()
	logger.Startup().Info("Data directory lock acquired", "lock", lockPath)

	// Step 2: Create dependency injection container (store, schema, services)
	appContainer, err := container.NewContainer(ctx, settings, logger, container.Options{})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			logger.Shutdown().Info("Shutdown requested during startup", "duration", time.Since(start))
			logger.Close()
			return nil
		}
		logger.Startup().Error("Container initialization failed", "error", err.Error())
		return err
	}
	logger.Startup().Info("Dependency injection container created", "duration", time.Since(start))

	// Step 3: Start background workers
	bgCtx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	hubDone := make(chan struct{})
	go func() {
		appContainer.LiveHub.Run(bgCtx)
		close(hubDone)
	}()
	go presenceJanitor(bgCtx, appContainer.PresenceService, logger)

	// Step 4: Start HTTP server
	httpServer := server.New(port, appContainer)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"address", httpServer.Addr(),
		"driver", appContainer.DB.Driver)

	select {
	case <-ctx.Done():
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
		cancelBackgroundTasks()
		<-hubDone
		appContainer.Close()
		return err
	}

	shutdownStart := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	cancelBackgroundTasks()
	<-hubDone

	logger.Shutdown().Info("Waiting for thumbnail workers...")
	appContainer.IngestionService.Wait()
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	if err := appContainer.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
		return err
	}
	return nil
}

// presenceJanitor purges stale visitor rows between landing page hits so the
// visitors table stays small on quiet installations.
func presenceJanitor(ctx context.Context, presence *services.PresenceService, logger *logging.ChanneledLogger) {
	ticker := time.NewTicker(presence.Window())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := presence.PurgeStale(ctx, now, presence.Window())
			if err != nil {
				logger.Presence().Warn("Presence purge failed", "error", err.Error())
				continue
			}
			if n > 0 {
				logger.Presence().Debug("Purged stale visitors", "count", n)
			}
		}
	}
}

// setupLogging configures the gin mode and the standard logger used before
// the channeled logger exists.
func setupLogging() {
	switch config.GinMode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(config.GinMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
