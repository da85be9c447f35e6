package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/patrickmn/go-cache"
)

const statsKey = "landing"

// StatsService serves the landing aggregates from a short-lived cache.
type StatsService struct {
	records  survey.RecordRepository
	accounts survey.AccountRepository
	cache    *cache.Cache
	logger   *logging.ChanneledLogger

	// generation advances on every Invalidate; totals read under an older
	// generation are returned but not cached.
	generation atomic.Uint64
}

// NewStatsService creates a new stats service caching results for ttl.
func NewStatsService(records survey.RecordRepository, accounts survey.AccountRepository, ttl time.Duration, logger *logging.ChanneledLogger) *StatsService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsService{
		records:  records,
		accounts: accounts,
		cache:    cache.New(ttl, 2*ttl),
		logger:   logger,
	}
}

// Landing returns record and account totals.
func (s *StatsService) Landing(ctx context.Context) (survey.Stats, error) {
	if cached, found := s.cache.Get(statsKey); found {
		return cached.(survey.Stats), nil
	}
	gen := s.generation.Load()

	records, err := s.records.Count(ctx)
	if err != nil {
		return survey.Stats{}, err
	}
	users, err := s.accounts.Count(ctx)
	if err != nil {
		return survey.Stats{}, err
	}

	stats := survey.Stats{TotalRecords: records, TotalUsers: users}
	if s.generation.Load() == gen {
		s.cache.SetDefault(statsKey, stats)
	} else {
		s.logger.Survey().Debug("Landing totals changed while counting, not cached")
	}
	return stats, nil
}

// Invalidate drops cached totals after a write.
func (s *StatsService) Invalidate() {
	s.generation.Add(1)
	s.cache.Flush()
}
