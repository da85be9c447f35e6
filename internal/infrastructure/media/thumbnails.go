package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
)

// ThumbnailGenerator writes resized WebP copies of stored images.
type ThumbnailGenerator struct {
	store  *FileStore
	widths []int
	logger *logging.ChanneledLogger
}

// NewThumbnailGenerator creates a generator writing into <upload dir>/thumbs.
func NewThumbnailGenerator(store *FileStore, widths []int, logger *logging.ChanneledLogger) *ThumbnailGenerator {
	return &ThumbnailGenerator{store: store, widths: widths, logger: logger}
}

// ThumbsDir returns the directory thumbnails are written to.
func (g *ThumbnailGenerator) ThumbsDir() string {
	return filepath.Join(g.store.Dir(), "thumbs")
}

// ThumbnailName returns the file name of the width-px thumbnail of name.
func ThumbnailName(name string, width int) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return fmt.Sprintf("%s_%dpx.webp", base, width)
}

// Generate decodes the stored image and writes one thumbnail per configured
// width. On failure every thumbnail already written is removed.
func (g *ThumbnailGenerator) Generate(name string) ([]string, error) {
	img, err := imaging.Open(g.store.Path(name), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if err := os.MkdirAll(g.ThumbsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create thumbs directory: %w", err)
	}

	written := make([]string, 0, len(g.widths))
	for _, width := range g.widths {
		if width >= img.Bounds().Dx() {
			width = img.Bounds().Dx()
		}
		resized := imaging.Resize(img, width, 0, imaging.Lanczos)

		thumbPath := filepath.Join(g.ThumbsDir(), ThumbnailName(name, width))
		if err := webp.Save(thumbPath, resized, &webp.Options{Quality: 85}); err != nil {
			for _, p := range written {
				os.Remove(p)
			}
			return nil, fmt.Errorf("save thumbnail %s: %w", filepath.Base(thumbPath), err)
		}
		written = append(written, thumbPath)
	}

	g.logger.Media().Debug("Thumbnails generated", "name", name, "count", len(written))
	return written, nil
}
