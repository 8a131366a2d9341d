package resolve

import (
	"runtime"
	"strings"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/errwrap"
)

// Target identifies a platform a build is resolved for.
type Target struct {
	OS   string
	Arch string
}

// CurrentTarget returns the target for the running platform.
func CurrentTarget() Target {
	return Target{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Key returns a filesystem-safe identifier, e.g. "linux-amd64".
func (t Target) Key() string {
	return t.OS + "-" + t.Arch
}

// ManifestURL returns the URL of the version manifest published for the
// target. Apple silicon builds have no manifest; version is pinned instead.
func (t Target) ManifestURL() (string, error) {
	switch {
	case t.OS == "windows" && t.Arch == "amd64":
		return "https://www.gyan.dev/ffmpeg/builds/release-version", nil
	case t.OS == "darwin" && t.Arch == "amd64":
		return "https://evermeet.cx/ffmpeg/info/ffmpeg/release", nil
	case t.OS == "linux" && t.Arch == "amd64":
		return "https://johnvansickle.com/ffmpeg/release-readme.txt", nil
	default:
		return "", errwrap.Wrap(ErrUnsupportedPlatform, "resolve", "manifest url", t.Key(), nil)
	}
}

// DownloadURL returns the release archive URL for the target.
func (t Target) DownloadURL() (string, error) {
	switch {
	case t.OS == "windows" && t.Arch == "amd64":
		return "https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip", nil
	case t.OS == "linux" && t.Arch == "amd64":
		return "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz", nil
	case t.OS == "darwin" && t.Arch == "amd64":
		return "https://evermeet.cx/ffmpeg/getrelease/zip", nil
	case t.OS == "darwin" && t.Arch == "arm64":
		return "https://www.osxexperts.net/ffmpeg7arm.zip", nil
	default:
		return "", errwrap.Wrap(ErrUnsupportedPlatform, "resolve", "download url", t.Key(), nil)
	}
}

// pinnedVersion returns a hardcoded version for targets without a manifest.
func (t Target) pinnedVersion() (string, bool) {
	if t.OS == "darwin" && t.Arch == "arm64" {
		return "7.0", true
	}
	return "", false
}

// ParseMacVersion extracts the version number from the evermeet.cx JSON
// manifest, e.g. {"name":"ffmpeg","type":"release","version":"6.0",...}.
func ParseMacVersion(manifest string) (string, bool) {
	_, rest, ok := strings.Cut(manifest, `"version":`)
	if !ok {
		return "", false
	}
	parts := strings.Split(strings.TrimSpace(rest), `"`)
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ParseLinuxVersion extracts the version number from the johnvansickle.com
// release readme, which contains a line like "version: 5.1.1".
func ParseLinuxVersion(manifest string) (string, bool) {
	_, rest, ok := strings.Cut(manifest, "version:")
	if !ok {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// parseManifestVersion interprets the raw manifest body per platform. The
// Windows manifest is the bare version string.
func (t Target) parseManifestVersion(body string) (string, bool) {
	switch t.OS {
	case "windows":
		v := strings.TrimSpace(body)
		return v, v != ""
	case "darwin":
		return ParseMacVersion(body)
	case "linux":
		return ParseLinuxVersion(body)
	}
	return "", false
}
