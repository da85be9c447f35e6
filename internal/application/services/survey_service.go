package services

import (
	"context"
	"errors"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/messaging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/metrics"
)

// earthRadiusMeters is the mean radius used to turn s2 angles into distances.
const earthRadiusMeters = 6371008.8

// SurveyService applies access control to reads and deletes of survey records.
type SurveyService struct {
	records survey.RecordRepository
	stats   *StatsService
	events  EventPublisher
	logger  *logging.ChanneledLogger
	metrics *metrics.Metrics
}

// NewSurveyService creates a new survey service. stats and events may be nil.
func NewSurveyService(records survey.RecordRepository, stats *StatsService, events EventPublisher, logger *logging.ChanneledLogger, m *metrics.Metrics) *SurveyService {
	return &SurveyService{records: records, stats: stats, events: events, logger: logger, metrics: m}
}

// ListAll returns every record, newest first. Every identity may read.
func (s *SurveyService) ListAll(ctx context.Context, identity survey.Identity) ([]*survey.Record, error) {
	if !survey.CanRead(identity) {
		return nil, survey.ErrUnauthorized
	}
	return s.records.ListAll(ctx)
}

// Get returns one record or ErrNotFound.
func (s *SurveyService) Get(ctx context.Context, id int64) (*survey.Record, error) {
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, survey.ErrNotFound
	}
	return rec, nil
}

// Delete removes record id when identity is an admin or its surveyor. The
// image file stays on disk.
func (s *SurveyService) Delete(ctx context.Context, identity survey.Identity, id int64) error {
	if !survey.CanWrite(identity) {
		s.metrics.RecordDelete("unauthorized")
		return survey.ErrAuthFailure
	}

	rec, err := s.records.DeleteAuthorized(ctx, id, func(surveyor string) bool {
		return survey.CanDelete(identity, surveyor)
	})
	switch {
	case err == nil:
	case errors.Is(err, survey.ErrNotFound):
		s.metrics.RecordDelete("not_found")
		return err
	case errors.Is(err, survey.ErrUnauthorized):
		s.metrics.RecordDelete("unauthorized")
		s.logger.Auth().Warn("Delete refused", "user", identity.Username, "id", id)
		return err
	default:
		s.metrics.RecordDelete(failureOutcome(err))
		s.logger.Survey().Error("Survey delete failed", "id", id, "busy", errors.Is(err, survey.ErrBusy), "error", err.Error())
		return err
	}

	s.metrics.RecordDelete("deleted")
	s.logger.Survey().Info("Survey deleted", "id", id, "by", identity.Username, "role", identity.Role, "file", rec.ImageName)
	if s.stats != nil {
		s.stats.Invalidate()
	}
	if s.events != nil {
		s.events.Publish(messaging.EventSurveyDeleted, map[string]any{"id": id})
	}
	return nil
}

// Nearest returns records ordered by great-circle distance from (lat, lng).
// limit <= 0 returns all of them.
func (s *SurveyService) Nearest(ctx context.Context, lat, lng float64, limit int) ([]*survey.PlacedRecord, error) {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	target := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	placed := make([]*survey.PlacedRecord, 0, len(records))
	for _, rec := range records {
		p := s2.PointFromLatLng(s2.LatLngFromDegrees(rec.Lat, rec.Lng))
		placed = append(placed, &survey.PlacedRecord{
			Record:         rec,
			DistanceMeters: target.Distance(p).Radians() * earthRadiusMeters,
		})
	}

	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].DistanceMeters < placed[j].DistanceMeters
	})
	if limit > 0 && len(placed) > limit {
		placed = placed[:limit]
	}
	return placed, nil
}

// failureOutcome labels a storage failure for metrics: "busy" for lock
// timeouts, "failed" otherwise.
func failureOutcome(err error) string {
	if errors.Is(err, survey.ErrBusy) {
		return "busy"
	}
	return "failed"
}
