package event

import "errors"

// Metadata accumulates the input/output topology of a job from its event
// sequence. Every stream-mapping line corresponds to one output stream;
// collection is complete once that many output streams have been seen.
type Metadata struct {
	Inputs        []Input
	Outputs       []Output
	InputStreams  []Stream
	OutputStreams []Stream

	durations             []Duration
	expectedOutputStreams int
	completed             bool
}

// ErrMetadataComplete is returned when events are applied after completion.
var ErrMetadataComplete = errors.New("metadata already completed")

// ErrMetadataIncomplete indicates the event stream ended before the full
// topology was observed, usually because the child exited early.
var ErrMetadataIncomplete = errors.New("stream ended before metadata completed")

// NewMetadata returns an empty accumulator ready for Apply.
func NewMetadata() *Metadata { return &Metadata{} }

// Completed reports whether the full topology has been gathered.
func (m *Metadata) Completed() bool {
	return m != nil && m.completed
}

// Duration returns the duration in seconds of the first input, when known.
// Different inputs can theoretically disagree; this covers the common case.
func (m *Metadata) Duration() (float64, bool) {
	if m == nil || len(m.Inputs) == 0 {
		return 0, false
	}
	return m.InputDuration(m.Inputs[0].Index)
}

// InputDuration returns the detected duration of the input with the given
// index.
func (m *Metadata) InputDuration(index int) (float64, bool) {
	if m == nil {
		return 0, false
	}
	for _, d := range m.durations {
		if d.InputIndex == index {
			return d.Seconds, true
		}
	}
	return 0, false
}

// Apply folds one event into the metadata.
func (m *Metadata) Apply(ev Event) error {
	if m == nil {
		return nil
	}
	if m.completed {
		return ErrMetadataComplete
	}
	switch ev.Kind {
	case KindStreamMapping:
		m.expectedOutputStreams++
	case KindInput:
		if ev.Input != nil {
			m.Inputs = append(m.Inputs, *ev.Input)
		}
	case KindOutput:
		if ev.Output != nil {
			m.Outputs = append(m.Outputs, *ev.Output)
		}
	case KindDuration:
		if ev.Duration != nil {
			m.durations = append(m.durations, *ev.Duration)
		}
	case KindInputStream:
		if ev.Stream != nil {
			m.InputStreams = append(m.InputStreams, *ev.Stream)
		}
	case KindOutputStream:
		if ev.Stream != nil {
			m.OutputStreams = append(m.OutputStreams, *ev.Stream)
		}
	}
	if m.expectedOutputStreams > 0 && len(m.OutputStreams) == m.expectedOutputStreams {
		m.completed = true
	}
	return nil
}
