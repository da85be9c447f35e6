package survey

import (
	"context"
	"time"
)

// RecordRepository persists survey records.
type RecordRepository interface {
	Create(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id int64) (*Record, error)
	ListAll(ctx context.Context) ([]*Record, error)
	Count(ctx context.Context) (int, error)
	// DeleteAuthorized removes the record in one transaction when authorize
	// accepts its surveyor. It returns ErrNotFound or ErrUnauthorized otherwise.
	DeleteAuthorized(ctx context.Context, id int64, authorize func(surveyor string) bool) (*Record, error)
}

// AccountRepository reads operator accounts.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Count(ctx context.Context) (int, error)
}

// PresenceRepository stores visitor liveness rows.
type PresenceRepository interface {
	// TouchAndPurge upserts token at now and drops rows older than cutoff in
	// one transaction.
	TouchAndPurge(ctx context.Context, token string, now, cutoff time.Time) error
	// PurgeStale drops rows older than cutoff and returns how many went.
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
	// CountSince purges rows older than cutoff and counts the survivors in one
	// transaction.
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
}
