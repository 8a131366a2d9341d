package resolve_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/resolve"
)

func openTestStore(t *testing.T) *resolve.Store {
	t.Helper()
	store, err := resolve.OpenStore(filepath.Join(t.TempDir(), "installs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRecordAndLatest(t *testing.T) {
	store := openTestStore(t)
	target := resolve.Target{OS: "linux", Arch: "amd64"}

	first := &resolve.Install{
		Target:      target,
		Version:     "6.0",
		Checksum:    "aaa",
		InstallDir:  "/cache/linux-amd64",
		Binaries:    []string{"/cache/linux-amd64/ffmpeg"},
		InstalledAt: time.Now().Add(-time.Hour),
	}
	if err := store.Record(context.Background(), first); err != nil {
		t.Fatalf("record: %v", err)
	}
	second := &resolve.Install{
		Target:      target,
		Version:     "6.1",
		Checksum:    "bbb",
		InstallDir:  "/cache/linux-amd64",
		Binaries:    []string{"/cache/linux-amd64/ffmpeg", "/cache/linux-amd64/ffprobe"},
		InstalledAt: time.Now(),
	}
	if err := store.Record(context.Background(), second); err != nil {
		t.Fatalf("record: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("ids = %d, %d", first.ID, second.ID)
	}

	latest, err := store.Latest(context.Background(), target)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != "6.1" || latest.Target != target {
		t.Fatalf("latest = %+v", latest)
	}
	if latest.FFprobePath() != "/cache/linux-amd64/ffprobe" {
		t.Fatalf("ffprobe path = %q", latest.FFprobePath())
	}
}

func TestStoreLatestNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Latest(context.Background(), resolve.Target{OS: "linux", Arch: "arm64"})
	if !errors.Is(err, resolve.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreList(t *testing.T) {
	store := openTestStore(t)
	for _, v := range []string{"5.1", "6.0", "7.0"} {
		install := &resolve.Install{
			Target:      resolve.Target{OS: "linux", Arch: "amd64"},
			Version:     v,
			Checksum:    "sum-" + v,
			InstallDir:  "/cache",
			Binaries:    []string{"/cache/ffmpeg"},
			InstalledAt: time.Now(),
		}
		if err := store.Record(context.Background(), install); err != nil {
			t.Fatalf("record %s: %v", v, err)
		}
	}

	installs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(installs) != 3 {
		t.Fatalf("got %d installs, want 3", len(installs))
	}
	// Newest first.
	if installs[0].Version != "7.0" || installs[2].Version != "5.1" {
		t.Fatalf("order = %q, %q, %q", installs[0].Version, installs[1].Version, installs[2].Version)
	}
}
