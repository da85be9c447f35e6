package startup

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	prevDB, prevUploads, prevThumbs, prevSecret := config.DatabasePath, config.UploadDir, config.ThumbnailsEnabled, config.SessionSecret
	prevLevel := config.LogLevel
	t.Cleanup(func() {
		config.DatabasePath, config.UploadDir, config.ThumbnailsEnabled, config.SessionSecret = prevDB, prevUploads, prevThumbs, prevSecret
		config.LogLevel = prevLevel
	})

	config.DatabasePath = filepath.Join(dir, "data", "makhaen.db")
	config.UploadDir = filepath.Join(dir, "uploads")
	config.ThumbnailsEnabled = false
	config.SessionSecret = "startup-test-secret"
	config.LogLevel = "error"
	return dir
}

func TestLockPath(t *testing.T) {
	s := &config.Settings{DatabasePath: "/srv/makhaen/data/makhaen.db", UploadDir: "/srv/makhaen/uploads"}
	assert.Equal(t, "/srv/makhaen/data/.makhaen.lock", LockPath(s))

	s.DatabaseURL = "libsql://survey.example.turso.io"
	assert.Equal(t, "/srv/makhaen/uploads/.makhaen.lock", LockPath(s))
}

func TestRunRefusesSecondInstance(t *testing.T) {
	useTempDataDir(t)

	held := flock.New(LockPath(config.Snapshot()))
	require.NoError(t, mkdirFor(held.Path()))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	err = Run(context.Background(), "0")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	dir := useTempDataDir(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, port) }()

	healthURL := "http://" + net.JoinHostPort("127.0.0.1", port) + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second, 50*time.Millisecond, "server never became healthy")

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.FileExists(t, filepath.Join(dir, "data", "makhaen.db"))

	// The lock is released, so a new instance could start.
	lock := flock.New(LockPath(config.Snapshot()))
	ok, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	lock.Unlock()
}

func TestRunCancelledDuringStartupIsClean(t *testing.T) {
	useTempDataDir(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, freePort(t)) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	return port
}

func mkdirFor(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
