package index

import (
	"context"
	"log/slog"
	"path"

	"github.com/dtrifiro/vllm-wheels-bucket-indexer/bucket"
)

// Publisher writes rendered index pages to their targets: keys in the
// live bucket, or files under the dry-run output directory. Both are
// bucket.Store implementations, so the write path is identical and only
// the store differs.
type Publisher struct {
	store  bucket.Store
	module string
	logger *slog.Logger
}

// NewPublisher creates a Publisher writing pages for module into store.
func NewPublisher(store bucket.Store, module string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, module: module, logger: logger}
}

// Write publishes contents to "<prefix>/<module>/index.html", or
// "<module>/index.html" when prefix is empty. Write failures are logged
// with the failing target and otherwise swallowed: one page's failure
// must not abort publication of the remaining pages.
func (p *Publisher) Write(ctx context.Context, contents, prefix string) {
	target := path.Join(prefix, p.module, "index.html")
	if err := p.store.Put(ctx, target, []byte(contents)); err != nil {
		p.logger.Error("failed to write index", "target", target, "error", err)
		return
	}
	p.logger.Info("wrote index", "target", target)
}
