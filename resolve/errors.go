package resolve

import "errors"

var (
	// ErrNotFound indicates no usable FFmpeg install exists for the target.
	ErrNotFound = errors.New("ffmpeg not found")
	// ErrUnsupportedPlatform indicates no published build exists for the
	// target platform; binaries must be provided manually.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrDownloadFailed indicates the release archive could not be fetched.
	ErrDownloadFailed = errors.New("download failed")
	// ErrChecksumMismatch indicates the downloaded archive did not match the
	// expected checksum.
	ErrChecksumMismatch = errors.New("archive checksum mismatch")
	// ErrExtractFailed indicates the archive could not be unpacked or did
	// not contain an ffmpeg binary.
	ErrExtractFailed = errors.New("archive extraction failed")
)
