package resolve

import (
	"context"
	"os"
	"os/exec"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/errwrap"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/sidecar"
)

// Locate returns a usable ffmpeg binary without touching the network. The
// search order is: the explicit override, the sidecar install next to the
// running executable, then the system PATH.
func Locate(configured string) (string, error) {
	if configured != "" {
		if info, err := os.Stat(configured); err == nil && sidecar.IsExecutable(info) {
			return configured, nil
		}
		return "", errwrap.Wrap(ErrNotFound, component, "locate", "configured path "+configured+" is not an executable", nil)
	}
	if p, err := sidecar.Path("ffmpeg"); err == nil {
		if info, statErr := os.Stat(p); statErr == nil && sidecar.IsExecutable(info) {
			return p, nil
		}
	}
	name := "ffmpeg" + sidecar.ExeSuffix()
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", errwrap.Wrap(ErrNotFound, component, "locate", "no ffmpeg in sidecar dir or PATH", nil)
}

// Installed reports whether the binary at path runs and accepts -version.
func Installed(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, path, "-version")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
