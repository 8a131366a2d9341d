// Package child spawns and supervises ffmpeg processes.
//
// A Handle owns the child process plus its three pipes. Stream layers the
// line pumps and log parser on top of a handle and delivers typed events on
// a bounded channel; the stream is also the component that reaps the process
// and reports its final Outcome. Consumers that only need raw pipes can take
// them from the handle directly and skip the stream entirely.
package child
