package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dtrifiro/vllm-wheels-bucket-indexer/bucket"
	"github.com/dtrifiro/vllm-wheels-bucket-indexer/digest"
)

// WheelSuffix identifies wheel artifacts in bucket listings.
const WheelSuffix = ".whl"

// Options configures an Indexer.
type Options struct {
	// Store is the bucket holding the wheels.
	Store bucket.Store
	// Publish is the store index pages are written to. Defaults to
	// Store; dry runs pass a DirStore here instead.
	Publish bucket.Store
	// Bucket is the bucket name, which becomes the leading segment of
	// every wheel path.
	Bucket string
	// Module is the package name served by the index.
	Module string
	// BaseURL, when non-empty, makes link targets absolute.
	BaseURL string
	// Digests, when non-nil, embeds each wheel's digest in its link.
	Digests *digest.Manager
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Indexer ties together listing, building, and publishing for one
// bucket. It is stateless between runs: every Run re-lists and
// re-renders from the current bucket contents. Only digests carry over,
// cached as sidecar objects next to the wheels.
type Indexer struct {
	store      bucket.Store
	publisher  *Publisher
	builder    *Builder
	digests    *digest.Manager
	bucketName string
	logger     *slog.Logger
}

// New creates an Indexer from opts.
func New(opts Options) *Indexer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publish := opts.Publish
	if publish == nil {
		publish = opts.Store
	}
	return &Indexer{
		store:      opts.Store,
		publisher:  NewPublisher(publish, opts.Module, logger),
		builder:    NewBuilder(opts.Module, opts.BaseURL, opts.Digests, logger),
		digests:    opts.Digests,
		bucketName: opts.Bucket,
		logger:     logger,
	}
}

// ListWheels returns the bucket-qualified path of every wheel in the
// bucket, in backend listing order.
func (ix *Indexer) ListWheels(ctx context.Context) ([]string, error) {
	return ix.listPaths(ctx, WheelSuffix)
}

// ListDigests returns the bucket-qualified path of every digest sidecar
// in the bucket.
func (ix *Indexer) ListDigests(ctx context.Context) ([]string, error) {
	return ix.listPaths(ctx, digest.Suffix)
}

func (ix *Indexer) listPaths(ctx context.Context, suffix string) ([]string, error) {
	keys, err := bucket.ListSuffix(ctx, ix.store, suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s objects in %s: %w", suffix, ix.bucketName, err)
	}
	paths := make([]string, len(keys))
	for i, key := range keys {
		paths[i] = ix.bucketName + "/" + key
	}
	return paths, nil
}

// Run lists the bucket once, renders every index page, and publishes
// them all: the aggregate page, the nightly page, and one page per
// release. Publishing is fault-isolated per page; failed writes are
// logged and the remaining pages still go out.
func (ix *Indexer) Run(ctx context.Context) (*Output, error) {
	paths, err := ix.ListWheels(ctx)
	if err != nil {
		return nil, err
	}
	ix.logger.Info("indexing bucket", "bucket", ix.bucketName, "wheels", len(paths))

	out, err := ix.builder.Build(ctx, paths)
	if err != nil {
		return nil, err
	}

	ix.publisher.Write(ctx, out.Aggregate, "")
	ix.publisher.Write(ctx, out.Nightly, NightlyRelease)
	for release, page := range out.Releases {
		ix.publisher.Write(ctx, page, release)
	}
	return out, nil
}

// VerifyDigests streams every wheel in the bucket and compares its
// digest against the persisted sidecar, returning one error per failing
// wheel. An empty slice means every wheel checked out.
func (ix *Indexer) VerifyDigests(ctx context.Context) ([]error, error) {
	if ix.digests == nil {
		return nil, errors.New("digest support is disabled")
	}
	keys, err := bucket.ListSuffix(ctx, ix.store, WheelSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s objects in %s: %w", WheelSuffix, ix.bucketName, err)
	}
	return ix.digests.VerifyAll(ctx, keys), nil
}
