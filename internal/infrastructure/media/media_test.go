package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var derivedName = regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-z]{26}\.jpg$`)

func TestDeriveFileName(t *testing.T) {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	name, err := DeriveFileName(now, ".jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "20260203_040506_"), name)
	assert.Regexp(t, derivedName, name)
}

func TestSaveNeverOverwrites(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "uploads"), logging.NewDiscardLogger())
	now := time.Now()

	const workers = 64
	names := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name, err := store.Save(now, ".jpg", bytes.NewReader([]byte{byte(i)}))
			assert.NoError(t, err)
			names <- name
		}(i)
	}
	wg.Wait()
	close(names)

	seen := map[string]bool{}
	for n := range names {
		assert.Regexp(t, derivedName, n)
		assert.False(t, seen[n])
		seen[n] = true
		assert.True(t, store.Exists(n))
	}
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, workers)
}

func TestPathStripsDirectories(t *testing.T) {
	store := NewFileStore("/srv/uploads", logging.NewDiscardLogger())
	assert.Equal(t, filepath.Join("/srv/uploads", "x.jpg"), store.Path("../../x.jpg"))
}

func TestThumbnails(t *testing.T) {
	store := NewFileStore(t.TempDir(), logging.NewDiscardLogger())

	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for x := 0; x < 120; x++ {
		img.Set(x, x%80, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	name, err := store.Save(time.Now(), ".png", &buf)
	require.NoError(t, err)

	gen := NewThumbnailGenerator(store, []int{60, 30}, logging.NewDiscardLogger())
	paths, err := gen.Generate(name)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	assert.Equal(t, filepath.Join(gen.ThumbsDir(), ThumbnailName(name, 60)), paths[0])

	_, err = gen.Generate("missing.png")
	assert.Error(t, err)
}
