package survey

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
	"github.com/makhaen-survey/makhaen-go/internal/testsupport"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordRepo(t *testing.T) *SQLRecordRepository {
	t.Helper()
	db, _ := testsupport.MustOpenStore(t)
	return NewSQLRecordRepository(db, testsupport.NewLogger(t))
}

func TestCreateAndFindRoundTripsFloats(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	lat, err := strconv.ParseFloat("19.030812345678901", 64)
	require.NoError(t, err)
	lng, err := strconv.ParseFloat("99.92630000000001", 64)
	require.NoError(t, err)
	conf := 0.87654321

	rec := &survey.Record{
		ImageName:  "20260101_120000_01hx.jpg",
		Lat:        lat,
		Lng:        lng,
		Accuracy:   4.5,
		Surveyor:   "user01",
		Prediction: "Zanthoxylum",
		Confidence: &conf,
	}
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.Equal(t, survey.StatusCompleted, rec.Status)
	assert.WithinDuration(t, time.Now().UTC(), rec.Timestamp, time.Minute)

	got, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, math.Float64bits(lat), math.Float64bits(got.Lat))
	assert.Equal(t, math.Float64bits(lng), math.Float64bits(got.Lng))
	require.NotNil(t, got.Confidence)
	assert.Equal(t, conf, *got.Confidence)
	assert.Equal(t, rec.Timestamp, got.Timestamp)
	assert.Equal(t, "Zanthoxylum", got.Prediction)
}

func TestOptionalColumnsStayNull(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	rec := &survey.Record{ImageName: "a.jpg", Lat: 1, Lng: 2, Surveyor: "Hardware_Box"}
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Prediction)
	assert.Nil(t, got.Confidence)
	assert.Zero(t, got.Accuracy)
}

func TestFindMissingReturnsNil(t *testing.T) {
	repo := newRecordRepo(t)
	got, err := repo.FindByID(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestImageNameIsUnique(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &survey.Record{ImageName: "same.jpg", Lat: 1, Lng: 1}))
	err := repo.Create(ctx, &survey.Record{ImageName: "same.jpg", Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, survey.ErrStorage)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestListAllNewestFirst(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	_, err := repo.db.Exec(`INSERT INTO surveys (img_name, lat, lng, surveyor, timestamp) VALUES
		('old.jpg', 1, 1, 'a', '2025-01-01 08:00:00'),
		('new.jpg', 1, 1, 'b', '2025-06-01 08:00:00'),
		('tie1.jpg', 1, 1, 'c', '2025-03-01 08:00:00'),
		('tie2.jpg', 1, 1, 'c', '2025-03-01 08:00:00')`)
	require.NoError(t, err)

	records, err := repo.ListAll(ctx)
	require.NoError(t, err)
	var names []string
	for _, r := range records {
		names = append(names, r.ImageName)
	}
	assert.Equal(t, []string{"new.jpg", "tie2.jpg", "tie1.jpg", "old.jpg"}, names)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestDeleteAuthorized(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	rec := &survey.Record{ImageName: "owned.jpg", Lat: 1, Lng: 1, Surveyor: "user01"}
	require.NoError(t, repo.Create(ctx, rec))

	_, err := repo.DeleteAuthorized(ctx, rec.ID, func(s string) bool { return s == "someone" })
	assert.ErrorIs(t, err, survey.ErrUnauthorized)

	deleted, err := repo.DeleteAuthorized(ctx, rec.ID, func(s string) bool { return s == "user01" })
	require.NoError(t, err)
	assert.Equal(t, "owned.jpg", deleted.ImageName)

	_, err = repo.DeleteAuthorized(ctx, rec.ID, func(string) bool { return true })
	assert.ErrorIs(t, err, survey.ErrNotFound)
}

func TestConcurrentDeletesHaveOneWinner(t *testing.T) {
	repo := newRecordRepo(t)
	ctx := context.Background()

	rec := &survey.Record{ImageName: "race.jpg", Lat: 1, Lng: 1, Surveyor: "user01"}
	require.NoError(t, repo.Create(ctx, rec))

	const workers = 8
	results := make(chan error, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := repo.DeleteAuthorized(ctx, rec.ID, func(s string) bool { return s == "user01" })
			results <- err
		}()
		go func() {
			defer wg.Done()
			_, err := repo.DeleteAuthorized(ctx, rec.ID, func(s string) bool { return s == "intruder" })
			if err == nil {
				err = errors.New("intruder deleted the record")
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, notFound, unauthorized int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, survey.ErrNotFound):
			notFound++
		case errors.Is(err, survey.ErrUnauthorized):
			unauthorized++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers*2-1, notFound+unauthorized)
}

func TestStorageFailuresAreClassified(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewSQLRecordRepository(&database.DB{DB: mockDB, Driver: "sqlmock"}, logging.NewDiscardLogger())
	ctx := context.Background()
	locked := errors.New("database is locked")

	mock.ExpectQuery("INSERT INTO surveys").WillReturnError(locked)
	err = repo.Create(ctx, &survey.Record{ImageName: "x.jpg"})
	assert.ErrorIs(t, err, survey.ErrStorage)
	assert.ErrorIs(t, err, locked)
	assert.Equal(t, "insert survey failed: database is locked", err.Error())

	mock.ExpectQuery("FROM surveys ORDER BY").WillReturnError(locked)
	_, err = repo.ListAll(ctx)
	assert.ErrorIs(t, err, survey.ErrStorage)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM surveys WHERE id").WithArgs(int64(3)).WillReturnError(locked)
	mock.ExpectRollback()
	_, err = repo.DeleteAuthorized(ctx, 3, func(string) bool { return true })
	assert.ErrorIs(t, err, survey.ErrStorage)
	assert.NotErrorIs(t, err, survey.ErrNotFound)

	mock.ExpectBegin().WillReturnError(locked)
	_, err = repo.DeleteAuthorized(ctx, 3, func(string) bool { return true })
	assert.ErrorIs(t, err, survey.ErrStorage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTimeoutsAreMarkedBusy(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewSQLRecordRepository(&database.DB{DB: mockDB, Driver: "sqlmock"}, logging.NewDiscardLogger())
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO surveys").WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})
	err = repo.Create(ctx, &survey.Record{ImageName: "x.jpg"})
	assert.ErrorIs(t, err, survey.ErrStorage)
	assert.ErrorIs(t, err, survey.ErrBusy)
	assert.Equal(t, "insert survey", survey.StorageOp(err))

	mock.ExpectBegin().WillReturnError(sqlite3.Error{Code: sqlite3.ErrLocked})
	_, err = repo.DeleteAuthorized(ctx, 3, func(string) bool { return true })
	assert.ErrorIs(t, err, survey.ErrBusy)

	mock.ExpectQuery("FROM surveys ORDER BY").WillReturnError(errors.New("disk I/O error"))
	_, err = repo.ListAll(ctx)
	assert.ErrorIs(t, err, survey.ErrStorage)
	assert.NotErrorIs(t, err, survey.ErrBusy)

	assert.NoError(t, mock.ExpectationsWereMet())
}
