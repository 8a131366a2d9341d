package command

import (
	"context"
	"errors"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
)

// Version runs `ffmpeg -version` at path and parses the version number out
// of the banner. The banner goes to stdout for -version, which the stream
// parses the same way as stderr diagnostics.
func Version(ctx context.Context, path string) (string, error) {
	_, stream, err := NewWithPath(path).Args("-version").Run(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = stream.Close()
	}()

	var version string
	for ev := range stream.Events() {
		switch ev.Kind {
		case event.KindVersion:
			if ev.Version != nil {
				version = ev.Version.Version
			}
		case event.KindExit:
			if ev.Exit != nil && !ev.Exit.Success() {
				return "", errors.New("ffmpeg -version exited with non-zero status")
			}
		}
	}
	if version == "" {
		return "", errors.New("failed to parse ffmpeg version")
	}
	return version, nil
}
