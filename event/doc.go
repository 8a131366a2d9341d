// Package event defines the structured events derived from FFmpeg process
// output and the terminal outcomes of a job.
//
// The parser and the process stream both traffic exclusively in these types so
// the unstable textual grammar of FFmpeg's diagnostics stays isolated in the
// logparse package. An Event is a tagged variant: Kind selects which payload
// pointer is populated. Metadata accumulates the input/output topology of a
// job, and Snapshot tracks cumulative progress.
package event
