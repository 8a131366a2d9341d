package event

import "fmt"

// OutcomeKind classifies how a job terminated.
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeFailure  OutcomeKind = "failure"
	OutcomeKilled   OutcomeKind = "killed"
	OutcomeTimedOut OutcomeKind = "timed_out"
)

// Outcome is the terminal result of a job. Failure retains the tail of recent
// warning and error messages observed before exit, for diagnostics.
type Outcome struct {
	Kind   OutcomeKind
	Code   int
	Signal string
	Tail   []string
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return fmt.Sprintf("failure (exit code %d)", o.Code)
	case OutcomeKilled:
		if o.Signal != "" {
			return fmt.Sprintf("killed (%s)", o.Signal)
		}
		return "killed"
	case OutcomeTimedOut:
		return "timed out"
	default:
		return string(o.Kind)
	}
}

// TailRing keeps the most recent warning/error messages, bounded in size.
type TailRing struct {
	limit    int
	messages []string
}

// NewTailRing builds a ring retaining at most limit messages.
func NewTailRing(limit int) *TailRing {
	if limit <= 0 {
		limit = 16
	}
	return &TailRing{limit: limit}
}

// Observe records warning and error events; other kinds are ignored.
func (r *TailRing) Observe(ev Event) {
	if r == nil {
		return
	}
	var message string
	switch {
	case ev.Kind == KindError && ev.Error != nil:
		message = ev.Error.Message
	case ev.Kind == KindLog && ev.Log != nil &&
		(ev.Log.Level == LevelWarning || ev.Log.Level == LevelError || ev.Log.Level == LevelFatal):
		message = ev.Log.Message
	default:
		return
	}
	r.messages = append(r.messages, message)
	if len(r.messages) > r.limit {
		r.messages = r.messages[len(r.messages)-r.limit:]
	}
}

// Messages returns the retained tail, oldest first.
func (r *TailRing) Messages() []string {
	if r == nil || len(r.messages) == 0 {
		return nil
	}
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
