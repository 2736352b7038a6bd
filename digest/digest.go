// Package digest computes, persists, and verifies SHA-256 digests for
// bucket objects. Each artifact's digest lives in a sidecar object (the
// artifact key with ".sha256sum" appended) holding the bare lowercase hex
// string, so later runs reuse it instead of re-hashing the artifact.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dtrifiro/vllm-wheels-bucket-indexer/bucket"
)

// Suffix is appended to an artifact key to form its sidecar key.
const Suffix = ".sha256sum"

// chunkSize is the read granularity for streaming hashes. Wheels can be
// multi-gigabyte; the hash loop never holds more than one chunk.
const chunkSize = 8 * 1024 * 1024

// Manager reads and writes digest sidecars in a bucket store.
type Manager struct {
	store  bucket.Store
	dryRun bool
	logger *slog.Logger
}

// NewManager creates a Manager over store. In dry-run mode computed
// digests are never written back. A nil logger falls back to
// slog.Default().
func NewManager(store bucket.Store, dryRun bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, dryRun: dryRun, logger: logger}
}

// Get reads the persisted digest for the artifact at key. The sidecar
// contents are returned verbatim. Returns an error wrapping ErrNotFound
// when no sidecar exists; the caller decides whether absence is
// recoverable.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	rc, err := m.store.Open(ctx, key+Suffix)
	if err != nil {
		if errors.Is(err, bucket.ErrNotFound) {
			return "", fmt.Errorf("%w: %s%s", ErrNotFound, key, Suffix)
		}
		return "", fmt.Errorf("failed to read digest for %s: %w", key, err)
	}
	defer rc.Close()

	contents, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read digest for %s: %w", key, err)
	}
	return string(contents), nil
}

// Compute streams the artifact at key through SHA-256 and returns the
// lowercase hex digest. With compare set, the persisted digest is read
// first: a missing sidecar fails with ErrNotFound and a differing value
// fails with *MismatchError. With write set, the digest is persisted to
// the sidecar, skipped and logged in dry-run mode.
func (m *Manager) Compute(ctx context.Context, key string, write, compare bool) (string, error) {
	var stored string
	if compare {
		var err error
		stored, err = m.Get(ctx, key)
		if err != nil {
			return "", err
		}
	}

	computed, err := m.hash(ctx, key)
	if err != nil {
		return "", err
	}

	if compare && computed != stored {
		return "", &MismatchError{Key: key, Stored: stored, Computed: computed}
	}

	if write {
		if m.dryRun {
			m.logger.Warn("dry run: skipping digest write", "key", key+Suffix)
		} else if err := m.store.Put(ctx, key+Suffix, []byte(computed)); err != nil {
			return "", fmt.Errorf("failed to write digest for %s: %w", key, err)
		}
	}

	return computed, nil
}

// Resolve returns the digest for key, reading the sidecar when present
// and computing and persisting it when absent. Missing digests are
// backfilled at most once per artifact; subsequent runs reuse the stored
// value without touching the artifact bytes.
func (m *Manager) Resolve(ctx context.Context, key string) (string, error) {
	d, err := m.Get(ctx, key)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	m.logger.Info("digest missing, computing", "key", key)
	return m.Compute(ctx, key, true, false)
}

// VerifyAll recomputes the digest of every key and compares it against
// the persisted sidecar, returning one error per failing artifact.
// Verification continues past failures.
func (m *Manager) VerifyAll(ctx context.Context, keys []string) []error {
	var failures []error
	for _, key := range keys {
		if _, err := m.Compute(ctx, key, false, true); err != nil {
			m.logger.Error("digest verification failed", "key", key, "error", err)
			failures = append(failures, err)
			continue
		}
		m.logger.Debug("digest verified", "key", key)
	}
	return failures
}

// hash streams the object through a SHA-256 accumulator in fixed-size
// chunks.
func (m *Manager) hash(ctx context.Context, key string) (string, error) {
	rc, err := m.store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", key, err)
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, rc, make([]byte, chunkSize)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", key, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
