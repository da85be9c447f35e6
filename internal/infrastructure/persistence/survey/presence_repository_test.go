package survey

import (
	"context"
	"testing"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceTouchPurgeAndCount(t *testing.T) {
	db, _ := testsupport.MustOpenStore(t)
	repo := NewSQLPresenceRepository(db, testsupport.NewLogger(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	require.NoError(t, repo.TouchAndPurge(ctx, "a", base, base.Add(-window)))
	require.NoError(t, repo.TouchAndPurge(ctx, "b", base.Add(time.Minute), base.Add(time.Minute-window)))
	require.NoError(t, repo.TouchAndPurge(ctx, "a", base.Add(2*time.Minute), base.Add(2*time.Minute-window)))

	n, err := repo.CountSince(ctx, base.Add(2*time.Minute-window))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// b was last seen at +1m, a at +2m.
	n, err = repo.CountSince(ctx, base.Add(6*time.Minute+30*time.Second-window))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	purged, err := repo.PurgeStale(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	n, err = repo.CountSince(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
