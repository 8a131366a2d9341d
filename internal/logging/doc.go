// Package logging provides slog attribute helpers and constructors shared
// across the sidecar library.
//
// It centralizes field naming so handles, pumps, and the resolver emit data
// with the same shape, and provides a no-op logger for tests and wiring code
// that cannot fail. Prefer these helpers over hand-rolled slog setup.
package logging
