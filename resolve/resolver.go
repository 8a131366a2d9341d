package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/errwrap"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/logging"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/sidecar"
)

const component = "resolve"

// markerName is the validation marker written after a successful install.
const markerName = ".install.json"

const lockRetryDelay = 250 * time.Millisecond

type marker struct {
	Version  string   `json:"version"`
	Checksum string   `json:"checksum"`
	Binaries []string `json:"binaries"`
}

// Resolver installs FFmpeg builds into a local cache and reuses them on
// subsequent calls.
type Resolver struct {
	cacheDir  string
	fetcher   Fetcher
	extractor Extractor
	store     *Store
	logger    *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithFetcher substitutes the release fetcher, mainly for tests.
func WithFetcher(f Fetcher) Option {
	return func(r *Resolver) {
		if f != nil {
			r.fetcher = f
		}
	}
}

// WithExtractor substitutes the archive extractor.
func WithExtractor(e Extractor) Option {
	return func(r *Resolver) {
		if e != nil {
			r.extractor = e
		}
	}
}

// WithStore attaches a manifest store that records completed installs.
func WithStore(s *Store) Option {
	return func(r *Resolver) { r.store = s }
}

// WithResolverLogger attaches a logger for download diagnostics.
func WithResolverLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver returns a resolver caching installs under cacheDir. An empty
// cacheDir falls back to the sidecar directory next to the running
// executable.
func NewResolver(cacheDir string, opts ...Option) (*Resolver, error) {
	if cacheDir == "" {
		dir, err := sidecar.Dir()
		if err != nil {
			return nil, errwrap.Wrap(ErrNotFound, component, "cache dir", "", err)
		}
		cacheDir = dir
	}
	r := &Resolver{
		cacheDir:  cacheDir,
		fetcher:   NewHTTPFetcher(),
		extractor: ArchiveExtractor{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CacheDir returns the root of the install cache.
func (r *Resolver) CacheDir() string { return r.cacheDir }

// Resolve returns a validated install for the target, downloading one only
// when the cache misses. Concurrent resolvers racing on the same cache
// serialize on a file lock; the losers observe the winner's install and
// perform no network work.
func (r *Resolver) Resolve(ctx context.Context, target Target) (*Install, error) {
	installDir := filepath.Join(r.cacheDir, target.Key())

	if install, ok := r.cached(installDir, target); ok {
		return install, nil
	}

	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return nil, errwrap.Wrap(ErrDownloadFailed, component, "prepare cache", "", err)
	}

	lock := flock.New(filepath.Join(r.cacheDir, target.Key()+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, errwrap.Wrap(ErrDownloadFailed, component, "acquire lock", "", err)
	}
	if !locked {
		return nil, errwrap.Wrap(ErrDownloadFailed, component, "acquire lock", "lock unavailable", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	// Another resolver may have finished the install while we waited.
	if install, ok := r.cached(installDir, target); ok {
		return install, nil
	}
	return r.install(ctx, target, installDir)
}

func (r *Resolver) install(ctx context.Context, target Target, installDir string) (*Install, error) {
	version, err := r.fetcher.LatestVersion(ctx, target)
	if err != nil {
		return nil, err
	}
	r.logger.Info("downloading ffmpeg",
		logging.String(logging.FieldTarget, target.Key()),
		logging.String("version", version))

	downloadDir, err := os.MkdirTemp(r.cacheDir, "download-*")
	if err != nil {
		return nil, errwrap.Wrap(ErrDownloadFailed, component, "stage download", "", err)
	}
	defer os.RemoveAll(downloadDir)

	download, err := r.fetcher.Fetch(ctx, target, downloadDir)
	if err != nil {
		return nil, err
	}
	if download.Expected != "" && !strings.EqualFold(download.Expected, download.SHA256) {
		return nil, errwrap.Wrap(ErrChecksumMismatch, component, "verify",
			"got "+download.SHA256+", want "+download.Expected, nil)
	}

	stageDir, err := os.MkdirTemp(r.cacheDir, "unpack-*")
	if err != nil {
		return nil, errwrap.Wrap(ErrExtractFailed, component, "stage unpack", "", err)
	}
	defer os.RemoveAll(stageDir)

	staged, err := r.extractor.Extract(ctx, download.Path, stageDir)
	if err != nil {
		return nil, err
	}
	if !containsBinary(staged, "ffmpeg") {
		return nil, errwrap.Wrap(ErrExtractFailed, component, "verify", "archive lacks ffmpeg", nil)
	}

	binaries := make([]string, 0, len(staged))
	for _, bin := range staged {
		binaries = append(binaries, filepath.Join(installDir, filepath.Base(bin)))
	}
	if err := writeMarker(stageDir, marker{Version: version, Checksum: download.SHA256, Binaries: binaries}); err != nil {
		return nil, err
	}

	// Publish atomically: the install dir either has the complete layout
	// plus marker, or does not exist.
	if err := os.RemoveAll(installDir); err != nil {
		return nil, errwrap.Wrap(ErrExtractFailed, component, "publish", "clear old install", err)
	}
	if err := os.Rename(stageDir, installDir); err != nil {
		return nil, errwrap.Wrap(ErrExtractFailed, component, "publish", "", err)
	}

	install := &Install{
		Target:      target,
		Version:     version,
		Checksum:    download.SHA256,
		InstallDir:  installDir,
		Binaries:    binaries,
		InstalledAt: time.Now().UTC(),
	}
	if r.store != nil {
		if err := r.store.Record(ctx, install); err != nil {
			r.logger.Warn("recording install failed", logging.Error(err))
		}
	}
	r.logger.Info("ffmpeg installed",
		logging.String(logging.FieldTarget, target.Key()),
		logging.String("version", version),
		logging.String("dir", installDir))
	return install, nil
}

// cached validates an existing install: the marker must parse and every
// listed binary must still be an executable file.
func (r *Resolver) cached(installDir string, target Target) (*Install, bool) {
	data, err := os.ReadFile(filepath.Join(installDir, markerName))
	if err != nil {
		return nil, false
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil || m.Version == "" || len(m.Binaries) == 0 {
		return nil, false
	}
	for _, bin := range m.Binaries {
		info, err := os.Stat(bin)
		if err != nil || !sidecar.IsExecutable(info) {
			return nil, false
		}
	}
	return &Install{
		Target:     target,
		Version:    m.Version,
		Checksum:   m.Checksum,
		InstallDir: installDir,
		Binaries:   m.Binaries,
	}, true
}

func writeMarker(dir string, m marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errwrap.Wrap(ErrExtractFailed, component, "write marker", "", err)
	}
	if err := os.WriteFile(filepath.Join(dir, markerName), data, 0o644); err != nil {
		return errwrap.Wrap(ErrExtractFailed, component, "write marker", "", err)
	}
	return nil
}

func containsBinary(paths []string, name string) bool {
	for _, p := range paths {
		if trimExe(p) == name {
			return true
		}
	}
	return false
}

func trimExe(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".exe")
}
