package child

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/errwrap"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/logging"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/logparse"
)

const (
	defaultEventBuffer = 64
	lineBuffer         = 128
	maxLineBytes       = 1 << 20
)

// StreamOption customizes stream construction.
type StreamOption func(*streamConfig)

type streamConfig struct {
	buffer    int
	grace     time.Duration
	deadline  time.Duration
	tailLimit int
}

// WithBuffer sets the capacity of the event channel. Producers block once
// the buffer fills, which backpressures the pipe pumps and ultimately the
// child itself.
func WithBuffer(n int) StreamOption {
	return func(cfg *streamConfig) {
		if n > 0 {
			cfg.buffer = n
		}
	}
}

// WithGracePeriod sets how long Close waits for a graceful quit before
// killing the child.
func WithGracePeriod(d time.Duration) StreamOption {
	return func(cfg *streamConfig) {
		if d > 0 {
			cfg.grace = d
		}
	}
}

// WithDeadline kills the child once it has run for d. The final outcome is
// reported as timed out rather than killed.
func WithDeadline(d time.Duration) StreamOption {
	return func(cfg *streamConfig) {
		if d > 0 {
			cfg.deadline = d
		}
	}
}

// WithTailLimit bounds how many diagnostic lines are retained for failure
// reporting.
func WithTailLimit(n int) StreamOption {
	return func(cfg *streamConfig) {
		if n > 0 {
			cfg.tailLimit = n
		}
	}
}

// Stream turns a child's pipe output into typed events.
//
// Both pipes are pumped concurrently into a single merge goroutine, the only
// goroutine that touches the parser. Events are delivered in arrival order
// on a bounded channel that closes after exactly one exit event. Closing the
// stream early triggers graceful shutdown of the child.
type Stream struct {
	handle *Handle

	events chan event.Event
	lines  chan event.RawLine
	done   chan struct{}

	grace    time.Duration
	deadline time.Duration

	closeOnce sync.Once
	timedOut  atomic.Bool

	mu       sync.Mutex
	snapshot event.Snapshot
	tail     *event.TailRing

	outcome   event.Outcome
	outcomeOK bool
}

// Stream claims both pipes (those not already taken) and begins delivering
// parsed events. It may be called once per handle.
func (h *Handle) Stream(ctx context.Context, opts ...StreamOption) (*Stream, error) {
	cfg := streamConfig{
		buffer:    defaultEventBuffer,
		grace:     DefaultGracePeriod,
		tailLimit: 0,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.pipeMu.Lock()
	if h.streaming {
		h.pipeMu.Unlock()
		return nil, errwrap.Wrap(ErrAlreadyStreaming, component, "stream", "", nil)
	}
	h.streaming = true
	stdout := h.stdout
	stderr := h.stderr
	h.stdout = nil
	h.stderr = nil
	h.pipeMu.Unlock()

	s := &Stream{
		handle:   h,
		events:   make(chan event.Event, cfg.buffer),
		lines:    make(chan event.RawLine, lineBuffer),
		done:     make(chan struct{}),
		grace:    cfg.grace,
		deadline: cfg.deadline,
		tail:     event.NewTailRing(cfg.tailLimit),
	}

	var pumps sync.WaitGroup
	if stdout != nil {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			s.pump(stdout, event.SourceStdout)
		}()
	}
	if stderr != nil {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			s.pump(stderr, event.SourceStderr)
		}()
	}
	go func() {
		pumps.Wait()
		close(s.lines)
	}()
	go s.run(ctx)
	return s, nil
}

// Events returns the channel of parsed events. The channel closes after the
// exit event has been delivered.
func (s *Stream) Events() <-chan event.Event { return s.events }

// Snapshot returns the latest aggregated progress view.
func (s *Stream) Snapshot() event.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Outcome reports the final process outcome. ok is false until the event
// channel has closed.
func (s *Stream) Outcome() (event.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.outcomeOK
}

// Close stops consumption and shuts the child down gracefully: quit request,
// grace period, then kill. It never blocks on the child; the event channel
// still closes once the exit has been observed.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		go func() {
			_ = s.handle.Quit()
			timer := time.NewTimer(s.grace)
			defer timer.Stop()
			select {
			case <-s.handle.waitDone:
			case <-timer.C:
				_ = s.handle.Kill()
			}
		}()
	})
	return nil
}

// CollectMetadata consumes events until the child's input and output layout
// is fully known, then returns it. Events consumed along the way are folded
// into the stream's snapshot but not redelivered. An early exit or error
// event fails the collection.
func (s *Stream) CollectMetadata(ctx context.Context) (*event.Metadata, error) {
	meta := event.NewMetadata()
	var faults []error
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-s.events:
			if !ok {
				return nil, errors.Join(append(faults, event.ErrMetadataIncomplete)...)
			}
			if ev.Kind == event.KindError && ev.Error != nil {
				faults = append(faults, errors.New(ev.Error.Message))
			}
			if err := meta.Apply(ev); err != nil {
				return nil, err
			}
			if meta.Completed() {
				return meta, nil
			}
		}
	}
}

// pump reads one pipe line by line into the shared merge channel. Sequence
// numbers are per pipe so relative order within a pipe is recoverable after
// the merge. EOF ends the pump silently; any other read error is forwarded
// as a terminal line.
func (s *Stream) pump(r io.ReadCloser, src event.Source) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(logparse.ScanLines)
	var seq uint64
	for scanner.Scan() {
		seq++
		s.lines <- event.RawLine{Source: src, Seq: seq, Text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		seq++
		s.lines <- event.RawLine{Source: src, Seq: seq, Err: err}
	}
}

// run is the merge loop: the sole consumer of raw lines, the sole parser
// mutator, and the goroutine that reaps the child and emits the exit event.
func (s *Stream) run(ctx context.Context) {
	parser := logparse.NewParser()

	var deadlineC <-chan time.Time
	if s.deadline > 0 {
		timer := time.NewTimer(s.deadline)
		defer timer.Stop()
		deadlineC = timer.C
	}

	// Shutdown paths (caller Close, ctx cancel, deadline) all converge on
	// terminating the child so the pipes hit EOF and the loop below ends.
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-deadlineC:
			s.timedOut.Store(true)
			_ = s.handle.Kill()
		case <-s.done:
		case <-s.handle.waitDone:
		}
	}()

	discarding := false
	for line := range s.lines {
		var ev event.Event
		if line.Err != nil {
			ev = event.ErrorEvent("read " + string(line.Source) + ": " + line.Err.Error())
		} else {
			ev = parser.ParseLine(line.Text)
		}
		s.observe(ev)
		if discarding {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			// Consumer is gone. Keep draining so the pumps reach EOF.
			discarding = true
		}
	}

	parser.MarkDrained()
	s.handle.reap()
	exit := exitFromState(s.handle.cmd.ProcessState)
	ev := event.Event{Kind: event.KindExit, Exit: &exit}
	s.finish(ev, exit)
}

func (s *Stream) observe(ev event.Event) {
	s.mu.Lock()
	if ev.Kind == event.KindProgress {
		s.snapshot.Apply(ev.Progress)
	}
	s.tail.Observe(ev)
	s.mu.Unlock()
}

// finish records the outcome and delivers the single exit event, then
// closes the channel. Exit is delivered even after Close when a consumer is
// still listening; if nobody is, it is dropped rather than blocked on.
func (s *Stream) finish(ev event.Event, exit event.Exit) {
	s.mu.Lock()
	s.outcome = s.deriveOutcome(exit)
	s.outcomeOK = true
	s.mu.Unlock()

	select {
	case s.events <- ev:
	case <-s.done:
		select {
		case s.events <- ev:
		default:
		}
	}
	close(s.events)

	s.handle.logger.Debug("child finished",
		logging.String(logging.FieldJobID, s.handle.id),
		logging.String("outcome", string(s.outcome.Kind)),
		logging.Int("code", exit.Code))
}

func (s *Stream) deriveOutcome(exit event.Exit) event.Outcome {
	switch {
	case s.timedOut.Load():
		return event.Outcome{Kind: event.OutcomeTimedOut, Code: exit.Code, Signal: exit.Signal}
	case exit.Signaled:
		return event.Outcome{Kind: event.OutcomeKilled, Code: exit.Code, Signal: exit.Signal}
	case exit.Code == 0:
		return event.Outcome{Kind: event.OutcomeSuccess}
	default:
		return event.Outcome{Kind: event.OutcomeFailure, Code: exit.Code, Tail: s.tail.Messages()}
	}
}

