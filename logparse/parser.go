package logparse

import (
	"strings"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
)

// Phase is the coarse lifecycle state of the parser for one job.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseBanner
	PhaseInputAnalysis
	PhaseRunning
	PhaseDrained
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseBanner:
		return "banner"
	case PhaseInputAnalysis:
		return "input_analysis"
	case PhaseRunning:
		return "running"
	case PhaseDrained:
		return "drained"
	default:
		return "unknown"
	}
}

type sectionKind int

const (
	sectionOther sectionKind = iota
	sectionInput
	sectionOutput
	sectionMapping
)

// Parser is a stateful line interpreter for FFmpeg diagnostics. It is not
// safe for concurrent use; exactly one goroutine may advance it.
type Parser struct {
	phase        Phase
	section      sectionKind
	sectionIndex int
}

// NewParser returns a parser in its initial phase.
func NewParser() *Parser {
	return &Parser{}
}

// Phase reports the parser's current lifecycle phase.
func (p *Parser) Phase() Phase {
	return p.phase
}

// MarkDrained records that the terminal Exit event has been emitted. Any
// lines parsed afterwards degrade to plain log messages.
func (p *Parser) MarkDrained() {
	p.phase = PhaseDrained
}

// ParseLine interprets one line of output and returns exactly one event.
// Unrecognized or malformed lines are never fatal; they come back as
// LogMessage events with an unknown level.
func (p *Parser) ParseLine(line string) event.Event {
	if p.phase != PhaseRunning && p.phase != PhaseDrained {
		if ev, ok := p.parseStructural(line); ok {
			return ev
		}
	}

	if progress, ok := ParseProgress(line); ok {
		if p.phase != PhaseDrained {
			p.phase = PhaseRunning
			p.section = sectionOther
		}
		return event.Event{Kind: event.KindProgress, Progress: progress}
	}

	return event.LogEvent(Classify(line), line)
}

// parseStructural handles the banner and input-analysis grammar. Once the
// parser reaches Running these recognizers are skipped entirely: the stream
// list is frozen and repeated banner text (from a corrupted feed) must not
// rewind the state machine.
func (p *Parser) parseStructural(line string) (event.Event, bool) {
	if in, ok := ParseInput(line); ok {
		p.phase = PhaseInputAnalysis
		p.section = sectionInput
		p.sectionIndex = in.Index
		return event.Event{Kind: event.KindInput, Input: in}, true
	}
	if out, ok := ParseOutput(line); ok {
		p.phase = PhaseInputAnalysis
		p.section = sectionOutput
		p.sectionIndex = out.Index
		return event.Event{Kind: event.KindOutput, Output: out}, true
	}
	if strings.Contains(line, "Stream mapping:") {
		p.section = sectionMapping
		return event.LogEvent(Classify(line), line), true
	}

	if version, ok := ParseVersion(line); ok {
		if p.phase == PhaseInit {
			p.phase = PhaseBanner
		}
		return event.Event{Kind: event.KindVersion, Version: &event.Version{Version: version, Raw: line}}, true
	}
	if flags, ok := ParseConfiguration(line); ok {
		return event.Event{Kind: event.KindConfiguration, Configuration: &event.Configuration{Flags: flags, Raw: line}}, true
	}
	if seconds, ok := ParseDuration(line); ok {
		if p.section == sectionInput {
			return event.Event{Kind: event.KindDuration, Duration: &event.Duration{
				InputIndex: p.sectionIndex,
				Seconds:    seconds,
				Raw:        line,
			}}, true
		}
		return event.LogEvent(Classify(line), line), true
	}
	if p.section == sectionMapping && strings.Contains(line, "  Stream #") {
		return event.Event{Kind: event.KindStreamMapping, StreamMapping: &event.StreamMapping{Raw: line}}, true
	}
	if stream, ok := ParseStream(line); ok {
		switch p.section {
		case sectionInput:
			return event.Event{Kind: event.KindInputStream, Stream: stream}, true
		case sectionOutput:
			return event.Event{Kind: event.KindOutputStream, Stream: stream}, true
		default:
			// A stream line outside any section is an anomaly, not an error.
			return event.LogEvent(event.LevelUnknown, line), true
		}
	}
	return event.Event{}, false
}

// Classify maps a line's embedded severity marker to a log level.
func Classify(line string) event.LogLevel {
	switch {
	case strings.Contains(line, "[info]"):
		return event.LevelInfo
	case strings.Contains(line, "[warning]"):
		return event.LevelWarning
	case strings.Contains(line, "[error]"):
		return event.LevelError
	case strings.Contains(line, "[fatal]"):
		return event.LevelFatal
	default:
		return event.LevelUnknown
	}
}
