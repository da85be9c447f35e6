// Package survey provides the concrete SQL-based implementations of the
// survey domain repositories (Record, Account, Presence).
package survey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
)

// TimeLayout is how the store writes DATETIME values (always UTC).
const TimeLayout = "2006-01-02 15:04:05"

const recordColumns = `id, img_name, lat, lng, accuracy, surveyor, prediction, confidence,
	strftime('%Y-%m-%d %H:%M:%S', timestamp), status`

// SQLRecordRepository is the SQL-based implementation of the RecordRepository.
type SQLRecordRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLRecordRepository creates a new instance of the repository.
func NewSQLRecordRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLRecordRepository {
	return &SQLRecordRepository{db: db, logger: logger}
}

var _ survey.RecordRepository = (*SQLRecordRepository)(nil)

// Create inserts rec and fills in the store-assigned id, timestamp and status.
func (r *SQLRecordRepository) Create(ctx context.Context, rec *survey.Record) error {
	const query = `
		INSERT INTO surveys (img_name, lat, lng, accuracy, surveyor, prediction, confidence, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, strftime('%Y-%m-%d %H:%M:%S', timestamp)`

	start := time.Now()
	r.logger.Database().Debug("Executing survey insert", "imgName", rec.ImageName, "surveyor", rec.Surveyor)

	if rec.Status == "" {
		rec.Status = survey.StatusCompleted
	}

	var stamp string
	err := r.db.QueryRowContext(ctx, query,
		rec.ImageName,
		rec.Lat,
		rec.Lng,
		rec.Accuracy,
		nullString(rec.Surveyor),
		nullString(rec.Prediction),
		nullFloat(rec.Confidence),
		rec.Status,
	).Scan(&rec.ID, &stamp)
	if err != nil {
		r.logger.Database().Error("Failed to insert survey", "error", err.Error(), "imgName", rec.ImageName)
		return storageFailure("insert survey", err)
	}

	if rec.Timestamp, err = parseTime(stamp); err != nil {
		return storageFailure("insert survey", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Survey inserted", "id", rec.ID, "imgName", rec.ImageName, "duration", duration)
	r.db.CheckSlow(query, duration)
	return nil
}

// FindByID retrieves a record by id. It returns (nil, nil) when no row exists.
func (r *SQLRecordRepository) FindByID(ctx context.Context, id int64) (*survey.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM surveys WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading survey by ID", "id", id)

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Database().Debug("Survey not found by ID", "id", id)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load survey by ID", "error", err.Error(), "id", id)
		return nil, storageFailure("load survey", err)
	}

	r.db.CheckSlow(query, time.Since(start))
	return rec, nil
}

// ListAll returns every record, newest first.
func (r *SQLRecordRepository) ListAll(ctx context.Context) ([]*survey.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM surveys ORDER BY timestamp DESC, id DESC`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Database().Error("Failed to list surveys", "error", err.Error())
		return nil, storageFailure("list surveys", err)
	}
	defer rows.Close()

	records := make([]*survey.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storageFailure("list surveys", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFailure("list surveys", err)
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Surveys listed", "count", len(records), "duration", duration)
	r.db.CheckSlow(query, duration)
	return records, nil
}

// Count returns the number of stored records.
func (r *SQLRecordRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM surveys`).Scan(&n); err != nil {
		r.logger.Database().Error("Failed to count surveys", "error", err.Error())
		return 0, storageFailure("count surveys", err)
	}
	return n, nil
}

// DeleteAuthorized loads, checks and deletes in one immediate transaction so
// the ownership check cannot race a concurrent delete.
func (r *SQLRecordRepository) DeleteAuthorized(ctx context.Context, id int64, authorize func(surveyor string) bool) (*survey.Record, error) {
	start := time.Now()
	r.logger.Database().Debug("Executing survey delete", "id", id)

	var deleted *survey.Record
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM surveys WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return survey.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !authorize(rec.Surveyor) {
			return survey.ErrUnauthorized
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM surveys WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return survey.ErrNotFound
		}
		deleted = rec
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, survey.ErrNotFound), errors.Is(err, survey.ErrUnauthorized):
		r.logger.Database().Debug("Survey delete refused", "id", id, "reason", err.Error())
		return nil, err
	default:
		r.logger.Database().Error("Failed to delete survey", "error", err.Error(), "id", id)
		return nil, storageFailure("delete survey", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Survey deleted", "id", id, "imgName", deleted.ImageName, "duration", duration)
	r.db.CheckSlow("DELETE FROM surveys", duration)
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*survey.Record, error) {
	var (
		rec        survey.Record
		accuracy   sql.NullFloat64
		surveyor   sql.NullString
		prediction sql.NullString
		confidence sql.NullFloat64
		stamp      sql.NullString
		status     sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.ImageName, &rec.Lat, &rec.Lng, &accuracy,
		&surveyor, &prediction, &confidence, &stamp, &status)
	if err != nil {
		return nil, err
	}

	rec.Accuracy = accuracy.Float64
	rec.Surveyor = surveyor.String
	rec.Prediction = prediction.String
	if confidence.Valid {
		c := confidence.Float64
		rec.Confidence = &c
	}
	rec.Status = status.String
	if stamp.Valid {
		if rec.Timestamp, err = parseTime(stamp.String); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
