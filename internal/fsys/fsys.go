// Package fsys answers the filesystem questions the sender session asks:
// what kind of thing a path is, and how many bytes it holds.
package fsys

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/beamship/beam/internal/session"
)

type FS struct{}

func New() *FS {
	return &FS{}
}

// Classify reports whether path names a regular file or a directory.
func (FS) Classify(path string) (session.PathKind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("classifying path %q: %w", path, err)
	}
	if info.IsDir() {
		return session.KindDirectory, nil
	}
	return session.KindFile, nil
}

// FileSize returns the size of the file at path, or the summed size of
// all regular files under it when path is a directory.
func (FS) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("sizing path %q: %w", path, err)
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing directory %q: %w", path, err)
	}
	return total, nil
}
