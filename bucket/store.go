// Package bucket provides the object storage backends the indexer reads
// wheels from and publishes index pages to. A Store addresses objects by
// slash-separated keys relative to the bucket root; the same keys work
// against the live S3 bucket, a local directory standing in for it during
// dry runs, and the in-memory store used in tests.
package bucket

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store. Callers
// that treat absence as recoverable match it with errors.Is.
var ErrNotFound = errors.New("object not found")

// Store is the contract shared by all storage backends. Listing order is
// backend-defined; callers must not rely on it.
type Store interface {
	// List returns every key in the store, recursively.
	List(ctx context.Context) ([]string, error)

	// Open returns a streaming reader over the object at key. The caller
	// closes it. Returns an error wrapping ErrNotFound when the key does
	// not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes contents to key, replacing any existing object.
	Put(ctx context.Context, key string, contents []byte) error

	// Exists reports whether key is present without reading the object.
	Exists(ctx context.Context, key string) (bool, error)
}

// ListSuffix returns every key in s that ends with suffix, in the order
// the backend listed them. Listing failures propagate; there is no
// best-effort mode.
func ListSuffix(ctx context.Context, s Store, suffix string) ([]string, error) {
	keys, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, key := range keys {
		if strings.HasSuffix(key, suffix) {
			matched = append(matched, key)
		}
	}
	return matched, nil
}
