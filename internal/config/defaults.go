package config

const (
	defaultManifestDB         = "~/.cache/ffmpeg-sidecar/installs.db"
	defaultEventBuffer        = 64
	defaultGracePeriodSeconds = 3
	defaultTailLines          = 16
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
)
