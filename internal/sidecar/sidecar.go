// Package sidecar locates binaries bundled next to the running executable.
//
// By convention downloaded FFmpeg tools live in an ffmpeg_dir directory
// adjacent to the host binary, mirroring how the tools are unpacked by the
// resolver when no explicit cache directory is configured.
package sidecar

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// DirName is the conventional directory for bundled binaries, relative to the
// running executable.
const DirName = "ffmpeg_dir"

// ExeSuffix is the platform executable extension.
func ExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// Dir returns the sidecar directory next to the running executable.
func Dir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	parent := filepath.Dir(exe)
	if parent == "" {
		return "", errors.New("cannot determine executable directory")
	}
	return filepath.Join(parent, DirName), nil
}

// Path returns the expected sidecar path for the named tool, e.g. "ffmpeg".
func Path(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+ExeSuffix()), nil
}

// IsExecutable reports whether info describes a regular file with an execute
// bit set (always true for files on Windows).
func IsExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
