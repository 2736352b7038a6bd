package bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DirStore implements Store on a local directory, mirroring bucket keys
// as a file tree. Dry runs publish through a DirStore so the generated
// index pages can be inspected, and served, without touching the bucket.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at root. The directory is created
// on first write, not here.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// List walks the tree under the root and returns slash-separated keys
// relative to it. A missing root yields an empty listing rather than an
// error, matching a bucket that holds no objects.
func (d *DirStore) List(_ context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", d.root, err)
	}
	return keys, nil
}

// Open opens the file backing key.
func (d *DirStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(d.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

// Put writes contents to the file backing key, creating parent
// directories as needed.
func (d *DirStore) Put(_ context.Context, key string, contents []byte) error {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(p, contents, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the file backing key is present.
func (d *DirStore) Exists(_ context.Context, key string) (bool, error) {
	if _, err := os.Stat(d.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, nil
}

func (d *DirStore) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}
