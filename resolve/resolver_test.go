package resolve_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/resolve"
)

// stubFetcher fabricates archives locally and counts how often the network
// would have been touched.
type stubFetcher struct {
	version       string
	expected      string
	versionCalls  atomic.Int64
	downloadCalls atomic.Int64
}

func (s *stubFetcher) LatestVersion(ctx context.Context, target resolve.Target) (string, error) {
	s.versionCalls.Add(1)
	return s.version, nil
}

func (s *stubFetcher) Fetch(ctx context.Context, target resolve.Target, destDir string) (resolve.Download, error) {
	s.downloadCalls.Add(1)
	path := filepath.Join(destDir, "release.archive")
	if err := os.WriteFile(path, []byte("archive"), 0o644); err != nil {
		return resolve.Download{}, err
	}
	return resolve.Download{Path: path, SHA256: "abc123", Expected: s.expected, Size: 7}, nil
}

// stubExtractor fabricates the binaries an archive would contain.
type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	var out []string
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		p := filepath.Join(destDir, name)
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func newTestResolver(t *testing.T, fetcher resolve.Fetcher) *resolve.Resolver {
	t.Helper()
	r, err := resolve.NewResolver(t.TempDir(),
		resolve.WithFetcher(fetcher),
		resolve.WithExtractor(stubExtractor{}),
	)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestResolveInstallsAndCaches(t *testing.T) {
	fetcher := &stubFetcher{version: "6.1"}
	resolver := newTestResolver(t, fetcher)
	target := resolve.Target{OS: "linux", Arch: "amd64"}

	install, err := resolver.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if install.Version != "6.1" {
		t.Fatalf("version = %q", install.Version)
	}
	if install.FFmpegPath() == "" || install.FFprobePath() == "" {
		t.Fatalf("binaries = %q", install.Binaries)
	}
	if _, err := os.Stat(install.FFmpegPath()); err != nil {
		t.Fatalf("ffmpeg binary missing: %v", err)
	}

	// Second resolve must be a pure cache hit: zero network operations.
	again, err := resolver.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.Version != "6.1" || again.InstallDir != install.InstallDir {
		t.Fatalf("cache hit mismatch: %+v", again)
	}
	if fetcher.versionCalls.Load() != 1 || fetcher.downloadCalls.Load() != 1 {
		t.Fatalf("network touched on cache hit: versions=%d downloads=%d",
			fetcher.versionCalls.Load(), fetcher.downloadCalls.Load())
	}
}

func TestResolveRevalidatesDamagedInstall(t *testing.T) {
	fetcher := &stubFetcher{version: "6.1"}
	resolver := newTestResolver(t, fetcher)
	target := resolve.Target{OS: "linux", Arch: "amd64"}

	install, err := resolver.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Delete a binary out from under the cache; the next resolve must
	// detect the damage and download again.
	if err := os.Remove(install.FFmpegPath()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), target); err != nil {
		t.Fatalf("re-resolve: %v", err)
	}
	if fetcher.downloadCalls.Load() != 2 {
		t.Fatalf("downloads = %d, want 2", fetcher.downloadCalls.Load())
	}
}

func TestResolveChecksumMismatch(t *testing.T) {
	fetcher := &stubFetcher{version: "6.1", expected: "deadbeef"}
	resolver := newTestResolver(t, fetcher)

	_, err := resolver.Resolve(context.Background(), resolve.Target{OS: "linux", Arch: "amd64"})
	if !errors.Is(err, resolve.ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestResolveConcurrentSingleDownload(t *testing.T) {
	fetcher := &stubFetcher{version: "6.1"}
	resolver := newTestResolver(t, fetcher)
	target := resolve.Target{OS: "linux", Arch: "amd64"}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = resolver.Resolve(context.Background(), target)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolver %d: %v", i, err)
		}
	}
	if fetcher.downloadCalls.Load() != 1 {
		t.Fatalf("downloads = %d, want 1", fetcher.downloadCalls.Load())
	}
}

type emptyExtractor struct{}

func (emptyExtractor) Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	return []string{filepath.Join(destDir, "README")}, nil
}

func TestResolveRejectsArchiveWithoutFFmpeg(t *testing.T) {
	resolver, err := resolve.NewResolver(t.TempDir(),
		resolve.WithFetcher(&stubFetcher{version: "6.1"}),
		resolve.WithExtractor(emptyExtractor{}),
	)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	_, err = resolver.Resolve(context.Background(), resolve.Target{OS: "linux", Arch: "amd64"})
	if !errors.Is(err, resolve.ErrExtractFailed) {
		t.Fatalf("err = %v, want ErrExtractFailed", err)
	}
}

func TestResolveRecordsInstall(t *testing.T) {
	dir := t.TempDir()
	store, err := resolve.OpenStore(filepath.Join(dir, "installs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	resolver, err := resolve.NewResolver(dir,
		resolve.WithFetcher(&stubFetcher{version: "7.0"}),
		resolve.WithExtractor(stubExtractor{}),
		resolve.WithStore(store),
	)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	target := resolve.Target{OS: "linux", Arch: "amd64"}
	if _, err := resolver.Resolve(context.Background(), target); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	recorded, err := store.Latest(context.Background(), target)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if recorded.Version != "7.0" || recorded.Target != target {
		t.Fatalf("recorded = %+v", recorded)
	}
}
