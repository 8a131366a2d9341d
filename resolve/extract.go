package resolve

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Extractor unpacks a release archive into a directory, returning the paths
// of the FFmpeg binaries it produced.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) ([]string, error)
}

// ArchiveExtractor handles the archive formats the official builds ship in:
// zip for Windows and macOS, tar.xz for the Linux static builds. Everything
// except the ffmpeg, ffprobe, and ffplay binaries is discarded, and the
// directory layout inside the archive is flattened away.
type ArchiveExtractor struct{}

// Extract unpacks archivePath into destDir.
func (ArchiveExtractor) Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	var (
		bins []string
		err  error
	)
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		bins, err = extractZip(ctx, archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		bins, err = extractTarball(ctx, archivePath, destDir, decompressGzip)
	case strings.HasSuffix(archivePath, ".tar.xz"), strings.HasSuffix(archivePath, ".txz"):
		bins, err = extractTarball(ctx, archivePath, destDir, decompressXz)
	default:
		return nil, fmt.Errorf("%w: unrecognized archive format %q", ErrExtractFailed, filepath.Base(archivePath))
	}
	if err != nil {
		return nil, err
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: no ffmpeg binaries in %s", ErrExtractFailed, filepath.Base(archivePath))
	}
	return bins, nil
}

// wantedBinary reports whether an archive entry is one of the tools we keep.
func wantedBinary(name string) bool {
	base := filepath.Base(filepath.ToSlash(name))
	base = strings.TrimSuffix(base, ".exe")
	switch base {
	case "ffmpeg", "ffprobe", "ffplay":
		return true
	}
	return false
}

func extractZip(ctx context.Context, archivePath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %w", ErrExtractFailed, err)
	}
	defer reader.Close()

	var bins []string
	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.FileInfo().IsDir() || !wantedBinary(entry.Name) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrExtractFailed, entry.Name, err)
		}
		dest, err := writeBinary(destDir, filepath.Base(filepath.ToSlash(entry.Name)), rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		bins = append(bins, dest)
	}
	return bins, nil
}

func extractTarball(ctx context.Context, archivePath, destDir string, decompress func(io.Reader) (io.Reader, error)) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %w", ErrExtractFailed, err)
	}
	defer file.Close()

	raw, err := decompress(file)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %w", ErrExtractFailed, err)
	}

	var bins []string
	tr := tar.NewReader(raw)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read tar: %w", ErrExtractFailed, err)
		}
		if header.Typeflag != tar.TypeReg || !wantedBinary(header.Name) {
			continue
		}
		dest, err := writeBinary(destDir, filepath.Base(filepath.ToSlash(header.Name)), tr)
		if err != nil {
			return nil, err
		}
		bins = append(bins, dest)
	}
	return bins, nil
}

func decompressGzip(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

func decompressXz(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}

func writeBinary(destDir, name string, src io.Reader) (string, error) {
	dest := filepath.Join(destDir, name)
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrExtractFailed, name, err)
	}
	_, err = io.Copy(file, src)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("%w: write %s: %w", ErrExtractFailed, name, err)
	}
	return dest, nil
}
