package logging

import (
	"context"
	"log/slog"
)

// Standardized attribute keys used across the library.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldBinary    = "binary"
	FieldPipe      = "pipe"
	FieldTarget    = "target"
	FieldPhase     = "phase"
)

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
