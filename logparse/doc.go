// Package logparse interprets FFmpeg's semi-structured diagnostic text as
// typed events.
//
// FFmpeg's log output is not a designed protocol: field names, spacing, and
// units drift between versions. All pattern matching lives here so format
// drift requires only localized change. Every recognizer is best-effort; a
// line that matches nothing is passed through as a low-confidence log message,
// never an error.
//
// The Parser is a line-oriented state machine. It tracks which section of the
// output it is in (an input block, an output block, the stream mapping table)
// so stream lines can be attributed to the right side, and it freezes the
// input stream list permanently once the first progress line arrives.
package logparse
