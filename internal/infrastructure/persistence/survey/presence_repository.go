package survey

import (
	"context"
	"database/sql"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
)

// SQLPresenceRepository is the SQL-based implementation of the PresenceRepository.
type SQLPresenceRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLPresenceRepository creates a new instance of the repository.
func NewSQLPresenceRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLPresenceRepository {
	return &SQLPresenceRepository{db: db, logger: logger}
}

var _ survey.PresenceRepository = (*SQLPresenceRepository)(nil)

const (
	upsertVisitor = `INSERT INTO visitors (session_id, last_seen) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET last_seen = excluded.last_seen`
	purgeVisitors = `DELETE FROM visitors WHERE last_seen < ?`
	countVisitors = `SELECT COUNT(*) FROM visitors`
)

// TouchAndPurge records token as seen at now and drops rows older than cutoff.
func (r *SQLPresenceRepository) TouchAndPurge(ctx context.Context, token string, now, cutoff time.Time) error {
	start := time.Now()
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertVisitor, token, formatTime(now)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, purgeVisitors, formatTime(cutoff))
		return err
	})
	if err != nil {
		return storageFailure("touch presence", err)
	}
	r.db.CheckSlow(upsertVisitor, time.Since(start))
	return nil
}

// PurgeStale drops rows older than cutoff.
func (r *SQLPresenceRepository) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeVisitors, formatTime(cutoff))
	if err != nil {
		return 0, storageFailure("purge presence", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.Presence().Debug("Stale visitors purged", "count", n)
	}
	return n, nil
}

// CountSince purges rows older than cutoff and counts what is left.
func (r *SQLPresenceRepository) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, purgeVisitors, formatTime(cutoff)); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, countVisitors).Scan(&n)
	})
	if err != nil {
		return 0, storageFailure("count presence", err)
	}
	return n, nil
}
