// Package storage writes uploaded videos to local disk.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	timestampLayout = "20060102_150405"
	uniqueIDLength  = 8
	dirPerm         = 0o750
	filePerm        = 0o640
	fallbackName    = "video"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// VideoStore saves uploads under a single directory with collision-free names.
type VideoStore struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

// NewVideoStore creates dir if needed. maxBytes <= 0 disables the size limit.
func NewVideoStore(dir string, maxBytes int64) (*VideoStore, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &VideoStore{
		dir:      dir,
		maxBytes: maxBytes,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// Dir returns the upload directory.
func (s *VideoStore) Dir() string {
	return s.dir
}

// Save copies src to a new file named <timestamp>_<id>_<original name> and
// returns its path. A partial file is removed on failure.
func (s *VideoStore) Save(originalName string, src io.Reader) (string, error) {
	path := filepath.Join(s.dir, s.fileName(originalName))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}

	reader := src
	if s.maxBytes > 0 {
		reader = io.LimitReader(src, s.maxBytes+1)
	}
	written, copyErr := io.Copy(f, reader)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("write video file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close video file: %w", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		err = fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Remove deletes a stored video. Missing files are not an error.
func (s *VideoStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove video file: %w", err)
	}
	return nil
}

func (s *VideoStore) fileName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		if r == '/' || r == 0 || r == ' ' {
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "" || base == ".." {
		base = fallbackName
	}
	id := strings.ReplaceAll(s.newID(), "-", "")
	if len(id) > uniqueIDLength {
		id = id[:uniqueIDLength]
	}
	return fmt.Sprintf("%s_%s_%s", s.now().Format(timestampLayout), id, base)
}
