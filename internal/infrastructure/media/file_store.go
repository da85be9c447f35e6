// Package media stores uploaded survey photographs and their thumbnails.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/security"
)

// maxNameAttempts bounds retries when a derived name already exists on disk.
const maxNameAttempts = 3

// ErrNameExhausted is returned when every derived name collided.
var ErrNameExhausted = errors.New("could not derive an unused file name")

// DeriveFileName returns YYYYMMDD_HHMMSS_<token><ext> for now.
func DeriveFileName(now time.Time, ext string) (string, error) {
	token, err := security.GenerateFileToken(now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s%s", now.Format("20060102_150405"), token, ext), nil
}

// FileStore writes images into a single upload directory.
type FileStore struct {
	dir    string
	logger *logging.ChanneledLogger
}

// NewFileStore creates a new FileStore rooted at dir.
func NewFileStore(dir string, logger *logging.ChanneledLogger) *FileStore {
	return &FileStore{dir: dir, logger: logger}
}

// Dir returns the upload directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the on-disk location of name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Save writes src under a freshly derived name and returns that name. Files
// are created exclusively, so an existing file is never overwritten.
func (s *FileStore) Save(now time.Time, ext string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		name, err := DeriveFileName(now, ext)
		if err != nil {
			return "", err
		}

		f, err := os.OpenFile(s.Path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			s.logger.Media().Warn("Derived file name already exists, retrying", "name", name, "attempt", attempt)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create image file: %w", err)
		}

		written, err := io.Copy(f, src)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(s.Path(name))
			return "", fmt.Errorf("write image file: %w", err)
		}

		s.logger.Media().Debug("Image file written", "name", name, "bytes", written)
		return name, nil
	}
	return "", ErrNameExhausted
}

// Exists reports whether name is present in the upload directory.
func (s *FileStore) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}
