// Package capture stores uploaded camera frames under generated,
// timestamped names.
package capture

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/smart-traffic/internal/fsutil"
	"github.com/banshee-data/smart-traffic/internal/security"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
)

// ImageName returns the stored name for a frame captured at t:
// traffic_<yyyyMMdd>_<HHmmss>_<microseconds>.jpg in UTC.
func ImageName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("traffic_%s_%06d.jpg", t.Format("20060102_150405"), t.Nanosecond()/int(time.Microsecond))
}

// Store writes frames into a single directory.
type Store struct {
	fs    fsutil.FileSystem
	dir   string
	clock timeutil.Clock
}

// NewStore returns a Store rooted at dir. Nil fs and clock default to the
// real filesystem and wall clock.
func NewStore(fs fsutil.FileSystem, dir string, clock timeutil.Clock) *Store {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{fs: fs, dir: dir, clock: clock}
}

// Dir returns the capture directory.
func (s *Store) Dir() string { return s.dir }

// EnsureDir creates the capture directory if it is missing.
func (s *Store) EnsureDir() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create capture directory %s: %w", s.dir, err)
	}
	return nil
}

// Save copies r into a new file and returns its path. clientName is
// checked with security.SecureUploadName but never used for the stored
// name; its sentinel errors are returned unwrapped.
func (s *Store) Save(clientName string, r io.Reader) (string, error) {
	if _, err := security.SecureUploadName(clientName); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, ImageName(s.clock.Now()))
	if s.fs.Local() {
		if err := security.ValidatePathWithinDirectory(path, s.dir); err != nil {
			return "", err
		}
	}
	if err := s.EnsureDir(); err != nil {
		return "", err
	}

	w, err := s.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		s.fs.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := w.Close(); err != nil {
		s.fs.Remove(path)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	return path, nil
}
