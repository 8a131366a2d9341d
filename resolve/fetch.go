package resolve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Download describes a fetched release archive.
type Download struct {
	// Path is the location of the downloaded archive on disk.
	Path string
	// SHA256 is the hex digest computed while downloading.
	SHA256 string
	// Expected is the upstream-published digest, when one is available.
	// Empty means no verification is possible.
	Expected string
	// Size is the archive size in bytes.
	Size int64
}

// Fetcher obtains release metadata and archives for a target. Implementations
// must be safe for concurrent use.
type Fetcher interface {
	// LatestVersion reports the newest published version for the target.
	LatestVersion(ctx context.Context, target Target) (string, error)
	// Fetch downloads the release archive into destDir and returns its
	// location and checksum.
	Fetch(ctx context.Context, target Target, destDir string) (Download, error)
}

// HTTPFetcher downloads official static builds over HTTPS. The zero value is
// not usable; construct with NewHTTPFetcher.
type HTTPFetcher struct {
	client *http.Client

	// manifestURL and downloadURL override the per-target defaults. Tests
	// point them at a local server.
	manifestURL string
	downloadURL string
}

// HTTPOption customizes an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient substitutes the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithManifestURL overrides the version manifest URL.
func WithManifestURL(url string) HTTPOption {
	return func(f *HTTPFetcher) { f.manifestURL = url }
}

// WithDownloadURL overrides the archive download URL.
func WithDownloadURL(url string) HTTPOption {
	return func(f *HTTPFetcher) { f.downloadURL = url }
}

// NewHTTPFetcher returns a fetcher for the official published builds.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{client: &http.Client{Timeout: 10 * time.Minute}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// LatestVersion fetches and parses the platform's version manifest. Targets
// without a manifest report their pinned version without any request.
func (f *HTTPFetcher) LatestVersion(ctx context.Context, target Target) (string, error) {
	if v, ok := target.pinnedVersion(); ok {
		return v, nil
	}
	url := f.manifestURL
	if url == "" {
		var err error
		if url, err = target.ManifestURL(); err != nil {
			return "", err
		}
	}
	body, err := f.get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%w: fetch manifest: %w", ErrDownloadFailed, err)
	}
	version, ok := target.parseManifestVersion(string(body))
	if !ok {
		return "", fmt.Errorf("%w: unparseable manifest from %s", ErrDownloadFailed, url)
	}
	return version, nil
}

// Fetch streams the release archive to disk, hashing it along the way.
func (f *HTTPFetcher) Fetch(ctx context.Context, target Target, destDir string) (Download, error) {
	url := f.downloadURL
	if url == "" {
		var err error
		if url, err = target.DownloadURL(); err != nil {
			return Download{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Download{}, fmt.Errorf("%w: server returned %s for %s", ErrDownloadFailed, resp.Status, url)
	}

	name := path.Base(url)
	if name == "." || name == "/" || name == "" {
		name = "ffmpeg-release"
	}
	archivePath := filepath.Join(destDir, name)
	file, err := os.Create(archivePath)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	hasher := sha256.New()
	size, err := io.Copy(file, io.TeeReader(resp.Body, hasher))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(archivePath)
		return Download{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	return Download{
		Path:   archivePath,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
		Size:   size,
	}, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s for %s", resp.Status, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
