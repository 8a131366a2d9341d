package event

// Source identifies which output pipe produced a line.
type Source string

const (
	SourceStdout Source = "stdout"
	SourceStderr Source = "stderr"
)

// RawLine is one line of process output tagged with its pipe and a per-pipe
// monotonic sequence number. Err is set at most once per pipe, as a terminal
// read failure.
type RawLine struct {
	Source Source
	Seq    uint64
	Text   string
	Err    error
}
