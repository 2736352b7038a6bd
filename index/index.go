// Package index builds and publishes PEP 503 style package index pages
// from the wheels stored in a bucket. Every run produces an aggregate
// page over all versioned wheels, a page for the rolling nightly builds,
// and one page per release, each listing links that pip can resolve.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dtrifiro/vllm-wheels-bucket-indexer/digest"
)

// NightlyRelease is the reserved release group for rolling builds. All
// nightly wheels merge into a single page and never get a per-release
// page of their own.
const NightlyRelease = "nightly"

const docTemplate = `
<!DOCTYPE html>
<html>
    <body>
    <h1>Links for %s</h1>
%s
    </body>
</html>
`

// Output is the result of one build pass: the rendered aggregate page,
// the nightly page, and one page per non-nightly release.
type Output struct {
	Aggregate string
	Nightly   string
	Releases  map[string]string
}

// Builder renders index pages from wheel listings.
type Builder struct {
	module  string
	baseURL string
	digests *digest.Manager
	logger  *slog.Logger
}

// NewBuilder creates a Builder for module. A non-empty baseURL is
// prefixed onto every link target so the links resolve from outside the
// bucket; an empty baseURL leaves targets relative to the page location.
// A non-nil digests manager embeds each wheel's SHA-256 as a URL
// fragment, letting pip verify downloads.
func NewBuilder(module, baseURL string, digests *digest.Manager, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		module:  module,
		baseURL: strings.TrimRight(baseURL, "/"),
		digests: digests,
		logger:  logger,
	}
}

// Build renders all index pages for the given wheel paths. Each path
// must have exactly three slash-separated segments (bucket, release,
// filename); malformed paths are logged and skipped. Digest resolution
// failures other than a missing sidecar abort the build.
func (b *Builder) Build(ctx context.Context, paths []string) (*Output, error) {
	var aggregate, nightly []string
	releases := make(map[string][]string)

	for _, p := range paths {
		release, name, ok := splitPath(p)
		if !ok {
			b.logger.Error("could not parse wheel path, skipping", "path", p)
			continue
		}

		link, err := b.renderLink(ctx, release, name)
		if err != nil {
			return nil, err
		}

		if release == NightlyRelease {
			nightly = append(nightly, link)
			continue
		}
		aggregate = append(aggregate, link)
		releases[release] = append(releases[release], link)
	}

	out := &Output{
		Aggregate: renderDoc(b.module, aggregate),
		Nightly:   renderDoc(b.module, nightly),
		Releases:  make(map[string]string, len(releases)),
	}
	for release, links := range releases {
		out.Releases[release] = renderDoc(b.module, links)
	}
	return out, nil
}

// renderLink produces one anchor line for a wheel. The target is the
// percent-encoded release/filename pair, optionally absolutized and
// optionally carrying the digest fragment.
func (b *Builder) renderLink(ctx context.Context, release, name string) (string, error) {
	href := escapePath(release + "/" + name)
	if b.baseURL != "" {
		href = b.baseURL + "/" + href
	}
	if b.digests == nil {
		return fmt.Sprintf(`<a href="%s">%s</a><br/>`, href, name), nil
	}

	d, err := b.digests.Resolve(ctx, release+"/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve digest for %s/%s: %w", release, name, err)
	}
	return fmt.Sprintf(`<a href="%s#%s">%s</a><br/>`, href, d, name), nil
}

// splitPath splits a bucket-qualified wheel path into its release id and
// wheel filename. ok is false unless the path has exactly three
// segments.
func splitPath(p string) (release, name string, ok bool) {
	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// escapePath percent-encodes each segment of a slash path, leaving the
// separators intact.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func renderDoc(module string, links []string) string {
	return fmt.Sprintf(docTemplate, module, strings.Join(links, "\n"))
}
