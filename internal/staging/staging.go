// Package staging writes upload bodies to uniquely named temp files that
// are removed by Release on every exit path.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File is a staged upload on local disk.
type File struct {
	Path string
	Size int64
}

// Stage copies r into a new file under dir. dir is created if missing;
// an empty dir means os.TempDir. On error nothing is left behind.
func Stage(dir string, r io.Reader) (*File, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}

	path := filepath.Join(dir, "upload-"+uuid.NewString())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	return &File{Path: path, Size: n}, nil
}

// Release removes the staged file. It is safe to call more than once.
func (f *File) Release() error {
	if f == nil {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staging file: %w", err)
	}
	return nil
}
