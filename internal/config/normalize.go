package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProcess()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.FFmpegPath, err = expandPath(c.Paths.FFmpegPath); err != nil {
		return fmt.Errorf("paths.ffmpeg_path: %w", err)
	}
	if c.Paths.ManifestDB, err = expandPath(c.Paths.ManifestDB); err != nil {
		return fmt.Errorf("paths.manifest_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeProcess() {
	if c.Process.EventBuffer <= 0 {
		c.Process.EventBuffer = defaultEventBuffer
	}
	if c.Process.GracePeriodSeconds <= 0 {
		c.Process.GracePeriodSeconds = defaultGracePeriodSeconds
	}
	if c.Process.DeadlineSeconds < 0 {
		c.Process.DeadlineSeconds = 0
	}
	if c.Process.TailLines <= 0 {
		c.Process.TailLines = defaultTailLines
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
