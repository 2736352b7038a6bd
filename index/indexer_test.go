package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/dtrifiro/vllm-wheels-bucket-indexer/bucket"
	"github.com/dtrifiro/vllm-wheels-bucket-indexer/digest"
)

func seedWheels(t *testing.T, store bucket.Store, keys ...string) {
	t.Helper()
	ctx := context.Background()
	for _, key := range keys {
		// Wheel contents are the key itself, good enough for digests.
		if err := store.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put %q failed: %v", key, err)
		}
	}
}

func TestIndexer_ListWheels(t *testing.T) {
	store := bucket.NewMemStore()
	seedWheels(t, store, "abc123/a.whl", "nightly/b.whl")
	ctx := context.Background()
	if err := store.Put(ctx, "abc123/a.whl"+digest.Suffix, []byte("d")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ix := New(Options{Store: store, Bucket: "vllm-wheels", Module: "vllm"})
	wheels, err := ix.ListWheels(ctx)
	if err != nil {
		t.Fatalf("ListWheels failed: %v", err)
	}
	sort.Strings(wheels)
	want := []string{"vllm-wheels/abc123/a.whl", "vllm-wheels/nightly/b.whl"}
	if len(wheels) != len(want) {
		t.Fatalf("expected %d wheels, got %d: %v", len(want), len(wheels), wheels)
	}
	for i := range want {
		if wheels[i] != want[i] {
			t.Errorf("wheel[%d] = %q, want %q", i, wheels[i], want[i])
		}
	}

	digests, err := ix.ListDigests(ctx)
	if err != nil {
		t.Fatalf("ListDigests failed: %v", err)
	}
	if len(digests) != 1 || digests[0] != "vllm-wheels/abc123/a.whl"+digest.Suffix {
		t.Errorf("unexpected digest paths: %v", digests)
	}
}

func TestIndexer_Run(t *testing.T) {
	store := bucket.NewMemStore()
	seedWheels(t, store,
		"abc123/pkg-1.0-x.whl",
		"nightly/pkg-1.1-x.whl",
	)
	ctx := context.Background()

	ix := New(Options{
		Store:   store,
		Bucket:  "vllm-wheels",
		Module:  "vllm",
		Digests: digest.NewManager(store, false, nil),
	})
	out, err := ix.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Live mode publishes into the same bucket the wheels live in.
	for target, page := range map[string]string{
		"vllm/index.html":         out.Aggregate,
		"nightly/vllm/index.html": out.Nightly,
		"abc123/vllm/index.html":  out.Releases["abc123"],
	} {
		got, ok := store.Bytes(target)
		if !ok {
			t.Errorf("no page published at %q", target)
			continue
		}
		if string(got) != page {
			t.Errorf("published page at %q does not match build output", target)
		}
	}

	wheelDigest := sha256Hex([]byte("abc123/pkg-1.0-x.whl"))
	if !strings.Contains(out.Aggregate, "#"+wheelDigest) {
		t.Errorf("aggregate link missing digest fragment: %q", out.Aggregate)
	}
	if sidecar, ok := store.Bytes("abc123/pkg-1.0-x.whl" + digest.Suffix); !ok || string(sidecar) != wheelDigest {
		t.Errorf("sidecar = %q, ok = %v; want %q", sidecar, ok, wheelDigest)
	}
}

func TestIndexer_SecondRunReusesDigests(t *testing.T) {
	store := bucket.NewMemStore()
	seedWheels(t, store, "abc123/pkg-1.0-x.whl")
	ctx := context.Background()

	ix := New(Options{
		Store:   store,
		Bucket:  "vllm-wheels",
		Module:  "vllm",
		Digests: digest.NewManager(store, false, nil),
	})
	first, err := ix.Run(ctx)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := ix.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.Aggregate != second.Aggregate {
		t.Error("aggregate page changed between identical runs")
	}
	if n := store.Opens("abc123/pkg-1.0-x.whl"); n != 1 {
		t.Errorf("wheel re-read on second run: %d opens, want 1", n)
	}
	if n := store.Puts("abc123/pkg-1.0-x.whl" + digest.Suffix); n != 1 {
		t.Errorf("sidecar rewritten on second run: %d puts, want 1", n)
	}
}

func TestIndexer_DryRunPublishesToDirectory(t *testing.T) {
	store := bucket.NewMemStore()
	seedWheels(t, store, "abc123/pkg-1.0-x.whl", "nightly/pkg-1.1-x.whl")
	outputDir := t.TempDir()
	ctx := context.Background()

	ix := New(Options{
		Store:   store,
		Publish: bucket.NewDirStore(outputDir),
		Bucket:  "vllm-wheels",
		Module:  "vllm",
		BaseURL: "https://vllm-wheels.s3.us-west-2.amazonaws.com",
		Digests: digest.NewManager(store, true, nil),
	})
	if _, err := ix.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, rel := range []string{
		filepath.Join("vllm", "index.html"),
		filepath.Join("nightly", "vllm", "index.html"),
		filepath.Join("abc123", "vllm", "index.html"),
	} {
		page, err := os.ReadFile(filepath.Join(outputDir, rel))
		if err != nil {
			t.Errorf("expected page on disk at %s: %v", rel, err)
			continue
		}
		if !strings.Contains(string(page), "Links for vllm") {
			t.Errorf("page %s not rendered: %q", rel, page)
		}
	}

	aggregate, err := os.ReadFile(filepath.Join(outputDir, "vllm", "index.html"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(aggregate), `href="https://vllm-wheels.s3.us-west-2.amazonaws.com/abc123/`) {
		t.Errorf("dry-run links not absolute: %q", aggregate)
	}

	// Dry run must leave the bucket untouched.
	if ok, _ := store.Exists(ctx, "vllm/index.html"); ok {
		t.Error("dry run published into the bucket")
	}
	if ok, _ := store.Exists(ctx, "abc123/pkg-1.0-x.whl"+digest.Suffix); ok {
		t.Error("dry run persisted a digest sidecar")
	}
}

func TestIndexer_RunSkipsMalformedKeys(t *testing.T) {
	store := bucket.NewMemStore()
	seedWheels(t, store, "abc123/ok.whl", "stray.whl", "deep/branch/extra/bad.whl")

	ix := New(Options{Store: store, Bucket: "vllm-wheels", Module: "vllm"})
	out, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.Aggregate, "ok.whl") {
		t.Error("well-formed wheel missing from aggregate")
	}
	if strings.Contains(out.Aggregate, "stray.whl") || strings.Contains(out.Aggregate, "bad.whl") {
		t.Errorf("malformed key leaked into aggregate: %q", out.Aggregate)
	}
}

func TestIndexer_VerifyDigests(t *testing.T) {
	store := bucket.NewMemStore()
	ctx := context.Background()
	seedWheels(t, store, "abc123/good.whl", "abc123/corrupt.whl")
	if err := store.Put(ctx, "abc123/good.whl"+digest.Suffix, []byte(sha256Hex([]byte("abc123/good.whl")))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "abc123/corrupt.whl"+digest.Suffix, []byte("0000")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ix := New(Options{
		Store:   store,
		Bucket:  "vllm-wheels",
		Module:  "vllm",
		Digests: digest.NewManager(store, false, nil),
	})
	failures, err := ix.VerifyDigests(ctx)
	if err != nil {
		t.Fatalf("VerifyDigests failed: %v", err)
	}
	if len(failures) != 1 {
		t.Errorf("expected 1 failure, got %d: %v", len(failures), failures)
	}
}

func TestIndexer_VerifyDigestsRequiresDigests(t *testing.T) {
	ix := New(Options{Store: bucket.NewMemStore(), Bucket: "vllm-wheels", Module: "vllm"})

	if _, err := ix.VerifyDigests(context.Background()); err == nil {
		t.Fatal("expected error with digests disabled")
	}
}
