package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/media"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/messaging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/metrics"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
)

// EventPublisher receives survey lifecycle events.
type EventPublisher interface {
	Publish(eventType string, data any)
}

// UploadRequest is one multipart upload as received from a client.
type UploadRequest struct {
	Fields survey.SubmissionFields
	// Image is nil when the request carried no image part.
	Image io.Reader
}

// IngestResult describes a stored upload.
type IngestResult struct {
	FileName string
	Record   *survey.Record
}

// IngestionService turns uploads into stored image files and survey rows.
type IngestionService struct {
	records  survey.RecordRepository
	files    *media.FileStore
	thumbs   *media.ThumbnailGenerator
	settings *config.Settings
	stats    *StatsService
	events   EventPublisher
	logger   *logging.ChanneledLogger
	metrics  *metrics.Metrics
	now      func() time.Time

	thumbsWG sync.WaitGroup
}

// NewIngestionService creates a new ingestion pipeline. thumbs, stats and
// events may be nil.
func NewIngestionService(
	records survey.RecordRepository,
	files *media.FileStore,
	thumbs *media.ThumbnailGenerator,
	settings *config.Settings,
	stats *StatsService,
	events EventPublisher,
	logger *logging.ChanneledLogger,
	m *metrics.Metrics,
) *IngestionService {
	return &IngestionService{
		records:  records,
		files:    files,
		thumbs:   thumbs,
		settings: settings,
		stats:    stats,
		events:   events,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Ingest validates req, writes the image and then inserts the row. The
// record is attributed to the identity's username or, without a login, to
// the configured device surveyor.
func (s *IngestionService) Ingest(ctx context.Context, identity survey.Identity, req UploadRequest) (*IngestResult, error) {
	if s.settings.UploadRequiresLogin && !identity.Authenticated() {
		s.metrics.RecordUpload("forbidden", 0)
		return nil, survey.ErrAuthFailure
	}

	sub, err := survey.ParseSubmission(req.Fields)
	if err != nil {
		s.metrics.RecordUpload("invalid", 0)
		return nil, err
	}
	if req.Image == nil {
		s.metrics.RecordUpload("invalid", 0)
		return nil, survey.NewValidationError("image", "no image uploaded")
	}

	surveyor := s.settings.DeviceSurveyor
	if identity.Authenticated() {
		surveyor = identity.Username
	}

	counter := &countingReader{r: req.Image}
	name, err := s.files.Save(s.now(), sub.Extension, counter)
	if err != nil {
		s.metrics.RecordUpload("failed", 0)
		s.logger.Survey().Error("Failed to store image file", "error", err.Error(), "original", sub.OriginalName)
		return nil, survey.StorageError("store image", err)
	}

	rec := &survey.Record{
		ImageName:  name,
		Lat:        sub.Lat,
		Lng:        sub.Lng,
		Accuracy:   sub.Accuracy,
		Surveyor:   surveyor,
		Prediction: sub.Prediction,
		Confidence: sub.Confidence,
		Status:     survey.StatusCompleted,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		s.metrics.RecordUpload(failureOutcome(err), 0)
		s.logger.Survey().Warn("Survey row insert failed, image file left orphaned",
			"file", name, "busy", errors.Is(err, survey.ErrBusy), "error", err.Error())
		return nil, survey.StorageError("insert survey", err)
	}

	s.metrics.RecordUpload("stored", counter.n)
	s.logger.Survey().Info("Survey stored", "id", rec.ID, "file", name, "surveyor", surveyor, "bytes", counter.n)

	if s.stats != nil {
		s.stats.Invalidate()
	}
	if s.events != nil {
		s.events.Publish(messaging.EventSurveyCreated, rec)
	}
	s.generateThumbnails(name)

	return &IngestResult{FileName: name, Record: rec}, nil
}

func (s *IngestionService) generateThumbnails(name string) {
	if s.thumbs == nil || !s.settings.ThumbnailsEnabled {
		return
	}
	s.thumbsWG.Add(1)
	go func() {
		defer s.thumbsWG.Done()
		if _, err := s.thumbs.Generate(name); err != nil {
			s.metrics.ThumbnailFailed()
			s.logger.Media().Warn("Thumbnail generation failed", "file", name, "error", err.Error())
		}
	}()
}

// Wait blocks until background thumbnail work has finished.
func (s *IngestionService) Wait() {
	s.thumbsWG.Wait()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
