package services

import (
	"context"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/metrics"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/security"
)

// DefaultPresenceWindow is how long a visitor counts as online after a touch.
const DefaultPresenceWindow = 5 * time.Minute

// PresenceService tracks which browser sessions were active recently.
type PresenceService struct {
	repo    survey.PresenceRepository
	window  time.Duration
	clock   func() time.Time
	logger  *logging.ChanneledLogger
	metrics *metrics.Metrics
}

// PresenceOption configures a PresenceService.
type PresenceOption func(*PresenceService)

// WithClock replaces the wall clock, for simulated time.
func WithClock(clock func() time.Time) PresenceOption {
	return func(p *PresenceService) { p.clock = clock }
}

// WithPresenceMetrics publishes counts to m.
func WithPresenceMetrics(m *metrics.Metrics) PresenceOption {
	return func(p *PresenceService) { p.metrics = m }
}

// NewPresenceService creates a new presence tracker.
func NewPresenceService(repo survey.PresenceRepository, window time.Duration, logger *logging.ChanneledLogger, opts ...PresenceOption) *PresenceService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	p := &PresenceService{repo: repo, window: window, clock: time.Now, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Touch marks token as seen now, minting a token when none is given, and
// purges stale rows. Store errors are logged and reported through ok; they
// never fail the caller.
func (p *PresenceService) Touch(ctx context.Context, token string) (string, bool) {
	if token == "" {
		token = security.GenerateVisitorToken()
	}
	now := p.clock().UTC()
	if err := p.repo.TouchAndPurge(ctx, token, now, now.Add(-p.window)); err != nil {
		p.logger.Presence().Warn("Presence touch failed", "token", logging.MaskToken(token), "error", err.Error())
		return token, false
	}
	return token, true
}

// PurgeStale deletes rows last seen before now minus window.
func (p *PresenceService) PurgeStale(ctx context.Context, now time.Time, window time.Duration) (int64, error) {
	return p.repo.PurgeStale(ctx, now.UTC().Add(-window))
}

// CountOnline purges stale rows and counts the rest in one transaction.
func (p *PresenceService) CountOnline(ctx context.Context) (int, error) {
	n, err := p.repo.CountSince(ctx, p.clock().UTC().Add(-p.window))
	if err != nil {
		p.logger.Presence().Error("Presence count failed", "error", err.Error())
		return 0, err
	}
	p.metrics.SetOnlineVisitors(n)
	return n, nil
}

// Window returns the presence window.
func (p *PresenceService) Window() time.Duration { return p.window }
