package resolve_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/resolve"
)

func TestParseMacVersion(t *testing.T) {
	manifest := `{"name":"ffmpeg","type":"release","version":"6.0","size":78134528}`
	version, ok := resolve.ParseMacVersion(manifest)
	if !ok || version != "6.0" {
		t.Fatalf("got %q, %v", version, ok)
	}
	if _, ok := resolve.ParseMacVersion(`{"name":"ffmpeg"}`); ok {
		t.Fatal("manifest without version must not parse")
	}
}

func TestParseLinuxVersion(t *testing.T) {
	manifest := "build: ffmpeg-5.1.1-amd64-static.tar.xz\nversion: 5.1.1\n\ngcc: 8.3.0"
	version, ok := resolve.ParseLinuxVersion(manifest)
	if !ok || version != "5.1.1" {
		t.Fatalf("got %q, %v", version, ok)
	}
	if _, ok := resolve.ParseLinuxVersion("no version line here"); ok {
		t.Fatal("readme without version must not parse")
	}
}

func TestTargetURLs(t *testing.T) {
	supported := []resolve.Target{
		{OS: "windows", Arch: "amd64"},
		{OS: "darwin", Arch: "amd64"},
		{OS: "linux", Arch: "amd64"},
	}
	for _, target := range supported {
		if _, err := target.ManifestURL(); err != nil {
			t.Fatalf("%s manifest: %v", target.Key(), err)
		}
		if _, err := target.DownloadURL(); err != nil {
			t.Fatalf("%s download: %v", target.Key(), err)
		}
	}

	// Apple silicon has a download but no manifest.
	m1 := resolve.Target{OS: "darwin", Arch: "arm64"}
	if _, err := m1.DownloadURL(); err != nil {
		t.Fatalf("darwin-arm64 download: %v", err)
	}
	if _, err := m1.ManifestURL(); !errors.Is(err, resolve.ErrUnsupportedPlatform) {
		t.Fatalf("darwin-arm64 manifest err = %v", err)
	}

	exotic := resolve.Target{OS: "plan9", Arch: "386"}
	if _, err := exotic.DownloadURL(); !errors.Is(err, resolve.ErrUnsupportedPlatform) {
		t.Fatalf("plan9 err = %v", err)
	}
}

func TestHTTPFetcherLatestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("build: ffmpeg-6.0-amd64-static.tar.xz\nversion: 6.0\n"))
	}))
	defer server.Close()

	fetcher := resolve.NewHTTPFetcher(resolve.WithManifestURL(server.URL))
	version, err := fetcher.LatestVersion(context.Background(), resolve.Target{OS: "linux", Arch: "amd64"})
	if err != nil {
		t.Fatalf("latest version: %v", err)
	}
	if version != "6.0" {
		t.Fatalf("version = %q", version)
	}
}

func TestHTTPFetcherPinnedVersionSkipsNetwork(t *testing.T) {
	fetcher := resolve.NewHTTPFetcher(resolve.WithManifestURL("http://127.0.0.1:1/unreachable"))
	version, err := fetcher.LatestVersion(context.Background(), resolve.Target{OS: "darwin", Arch: "arm64"})
	if err != nil {
		t.Fatalf("pinned version: %v", err)
	}
	if version != "7.0" {
		t.Fatalf("version = %q", version)
	}
}

func TestHTTPFetcherDownload(t *testing.T) {
	payload := []byte("pretend this is a tarball")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	fetcher := resolve.NewHTTPFetcher(resolve.WithDownloadURL(server.URL + "/ffmpeg-release-amd64-static.tar.xz"))
	download, err := fetcher.Fetch(context.Background(), resolve.Target{OS: "linux", Arch: "amd64"}, t.TempDir())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if download.Size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", download.Size, len(payload))
	}
	if download.SHA256 == "" {
		t.Fatal("checksum not computed")
	}
}

func TestHTTPFetcherDownloadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := resolve.NewHTTPFetcher(resolve.WithDownloadURL(server.URL))
	_, err := fetcher.Fetch(context.Background(), resolve.Target{OS: "linux", Arch: "amd64"}, t.TempDir())
	if !errors.Is(err, resolve.ErrDownloadFailed) {
		t.Fatalf("err = %v, want ErrDownloadFailed", err)
	}
}
