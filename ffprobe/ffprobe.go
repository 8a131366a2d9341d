// Package ffprobe locates and probes the FFprobe binary that often ships
// alongside FFmpeg. Not every distribution includes it, so callers should
// treat absence as a normal condition.
package ffprobe

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/sidecar"
)

// Path returns the preferred ffprobe binary: the sidecar install when
// present, otherwise the bare name resolved through PATH at spawn time.
func Path() string {
	fallback := "ffprobe" + sidecar.ExeSuffix()
	p, err := SidecarPath()
	if err != nil {
		return fallback
	}
	if info, err := os.Stat(p); err == nil && sidecar.IsExecutable(info) {
		return p
	}
	return fallback
}

// SidecarPath returns the expected ffprobe location next to the running
// executable, whether or not it exists.
func SidecarPath() (string, error) {
	return sidecar.Path("ffprobe")
}

// Version runs `ffprobe -version` and returns the raw first line of output.
// Version parsing beyond that is not implemented for ffprobe.
func Version(ctx context.Context) (string, error) {
	return VersionWithPath(ctx, Path())
}

// VersionWithPath probes an explicit ffprobe binary.
func VersionWithPath(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Installed reports whether an ffprobe binary is available and runs.
func Installed(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, Path(), "-version")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
