package event

// Kind discriminates the payload carried by an Event.
type Kind string

const (
	KindVersion       Kind = "version"
	KindConfiguration Kind = "configuration"
	KindInput         Kind = "input"
	KindOutput        Kind = "output"
	KindDuration      Kind = "duration"
	KindStreamMapping Kind = "stream_mapping"
	KindInputStream   Kind = "input_stream"
	KindOutputStream  Kind = "output_stream"
	KindProgress      Kind = "progress"
	KindLog           Kind = "log"
	KindError         Kind = "error"
	KindExit          Kind = "exit"
)

// LogLevel classifies diagnostic lines by their embedded severity marker.
type LogLevel string

const (
	LevelUnknown LogLevel = "unknown"
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
	LevelFatal   LogLevel = "fatal"
)

// Event is one structured unit derived from process output or lifecycle.
// Exactly one payload field matching Kind is non-nil.
type Event struct {
	Kind          Kind
	Version       *Version
	Configuration *Configuration
	Input         *Input
	Output        *Output
	Duration      *Duration
	StreamMapping *StreamMapping
	Stream        *Stream
	Progress      *Progress
	Log           *Log
	Error         *Log
	Exit          *Exit
}

// Version reports the FFmpeg build version from the banner.
type Version struct {
	Version string
	Raw     string
}

// Configuration lists the build flags FFmpeg was compiled with.
type Configuration struct {
	Flags []string
	Raw   string
}

// Input marks the start of an input section in the diagnostics.
type Input struct {
	Index int
	Path  string
	Raw   string
}

// Output marks the start of an output section in the diagnostics.
type Output struct {
	Index int
	To    string
	Raw   string
}

// Duration reports the detected duration of one input, in seconds.
type Duration struct {
	InputIndex int
	Seconds    float64
	Raw        string
}

// StreamMapping is one line of the "Stream mapping:" section. Each mapping
// line corresponds to one output stream.
type StreamMapping struct {
	Raw string
}

// Log is a diagnostic line with its classified severity.
type Log struct {
	Level   LogLevel
	Message string
}

// Exit is the terminal event of a stream: the reaped process status.
// Exactly one Exit ends every event sequence.
type Exit struct {
	Code     int
	Signal   string
	Signaled bool
}

// Success reports whether the process exited normally with code zero.
func (e *Exit) Success() bool {
	return e != nil && !e.Signaled && e.Code == 0
}

// LogEvent builds a Log event with the given level.
func LogEvent(level LogLevel, message string) Event {
	return Event{Kind: KindLog, Log: &Log{Level: level, Message: message}}
}

// ErrorEvent builds a runtime Error event, used for pipe read failures and
// other non-parse faults surfaced through the sequence.
func ErrorEvent(message string) Event {
	return Event{Kind: KindError, Error: &Log{Level: LevelError, Message: message}}
}
