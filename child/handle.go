package child

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/errwrap"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/logging"
)

const component = "child"

// DefaultGracePeriod bounds how long Stop waits between the polite quit
// request and the hard kill.
const DefaultGracePeriod = 3 * time.Second

// Option customizes process spawning.
type Option func(*spawnConfig)

type spawnConfig struct {
	logger *slog.Logger
	env    []string
	dir    string
}

// WithLogger attaches a logger used for lifecycle diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *spawnConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithEnv replaces the child's environment.
func WithEnv(env []string) Option {
	return func(cfg *spawnConfig) {
		cfg.env = env
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(cfg *spawnConfig) {
		cfg.dir = dir
	}
}

// Handle owns a spawned child process and its stdio pipes.
//
// The handle never reaps the process on its own: Wait (or a Stream built on
// the handle) performs the single Wait call once output has been drained, so
// trailing diagnostics are not lost to an early pipe teardown.
type Handle struct {
	id     string
	binary string
	args   []string
	cmd    *exec.Cmd
	logger *slog.Logger

	stdinMu sync.Mutex
	stdin   io.WriteCloser

	pipeMu sync.Mutex
	stdout io.ReadCloser
	stderr io.ReadCloser

	streaming bool

	waitOnce sync.Once
	waitDone chan struct{}
}

// Spawn starts binary with args and returns a handle supervising it. All
// three stdio pipes are attached; stderr is where ffmpeg writes its
// diagnostics, stdout stays clean for piped media output.
func Spawn(binary string, args []string, opts ...Option) (*Handle, error) {
	cfg := spawnConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd := exec.Command(binary, args...)
	if cfg.env != nil {
		cmd.Env = cfg.env
	}
	cmd.Dir = cfg.dir
	setSysProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errwrap.Wrap(ErrSpawn, component, "spawn", "attach stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errwrap.Wrap(ErrSpawn, component, "spawn", "attach stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errwrap.Wrap(ErrSpawn, component, "spawn", "attach stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errwrap.Wrap(ErrSpawn, component, "spawn", "start "+binary, err)
	}

	h := &Handle{
		id:       uuid.NewString(),
		binary:   binary,
		args:     args,
		cmd:      cmd,
		logger:   cfg.logger,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		waitDone: make(chan struct{}),
	}
	h.logger.Debug("child started",
		logging.String(logging.FieldJobID, h.id),
		logging.String(logging.FieldBinary, binary),
		logging.Int("pid", cmd.Process.Pid))
	return h, nil
}

// ID returns the unique identifier assigned to this child.
func (h *Handle) ID() string { return h.id }

// Binary returns the executable path the child was spawned from.
func (h *Handle) Binary() string { return h.binary }

// Pid returns the child's OS process id, or 0 if it never started.
func (h *Handle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// TakeStdout detaches the stdout pipe from the handle. After a successful
// take the caller owns the pipe and Stream will only consume stderr.
func (h *Handle) TakeStdout() (io.ReadCloser, error) {
	h.pipeMu.Lock()
	defer h.pipeMu.Unlock()
	if h.streaming || h.stdout == nil {
		return nil, errwrap.Wrap(ErrAlreadyStreaming, component, "take stdout", "", nil)
	}
	out := h.stdout
	h.stdout = nil
	return out, nil
}

// TakeStderr detaches the stderr pipe from the handle.
func (h *Handle) TakeStderr() (io.ReadCloser, error) {
	h.pipeMu.Lock()
	defer h.pipeMu.Unlock()
	if h.streaming || h.stderr == nil {
		return nil, errwrap.Wrap(ErrAlreadyStreaming, component, "take stderr", "", nil)
	}
	out := h.stderr
	h.stderr = nil
	return out, nil
}

// TakeStdin detaches the stdin pipe. SendStdin and Quit report
// ErrStdinUnavailable afterwards.
func (h *Handle) TakeStdin() (io.WriteCloser, error) {
	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()
	if h.stdin == nil {
		return nil, errwrap.Wrap(ErrStdinUnavailable, component, "take stdin", "", nil)
	}
	in := h.stdin
	h.stdin = nil
	return in, nil
}

// SendStdin writes data to the child's stdin. Writes are serialized so
// concurrent callers cannot interleave payloads.
func (h *Handle) SendStdin(data []byte) error {
	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()
	if h.stdin == nil {
		return errwrap.Wrap(ErrStdinUnavailable, component, "send stdin", "", nil)
	}
	if _, err := h.stdin.Write(data); err != nil {
		return errwrap.Wrap(ErrStdinUnavailable, component, "send stdin", "write", err)
	}
	return nil
}

// CloseStdin closes the child's stdin, signalling end of piped input.
func (h *Handle) CloseStdin() error {
	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()
	if h.stdin == nil {
		return nil
	}
	err := h.stdin.Close()
	h.stdin = nil
	return err
}

// Quit asks ffmpeg to finish gracefully by sending its interactive quit
// command. ffmpeg flushes trailers and exits cleanly, unlike a signal.
func (h *Handle) Quit() error {
	return h.SendStdin([]byte("q\n"))
}

// Kill forcibly terminates the child. On unix the whole process group is
// killed so ffmpeg's own helpers do not outlive it.
func (h *Handle) Kill() error {
	if h.cmd.Process == nil {
		return errwrap.Wrap(ErrNotStarted, component, "kill", "", nil)
	}
	h.logger.Debug("killing child",
		logging.String(logging.FieldJobID, h.id),
		logging.Int("pid", h.cmd.Process.Pid))
	return killProcess(h.cmd)
}

// Stop performs graceful shutdown: quit request, grace period, then kill.
// It returns once the process has been reaped or ctx is done. A grace of
// zero falls back to DefaultGracePeriod.
func (h *Handle) Stop(ctx context.Context, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	_ = h.Quit()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.waitDone:
	case <-ctx.Done():
		_ = h.Kill()
	case <-timer.C:
		_ = h.Kill()
	}
	return h.Wait(ctx)
}

// Wait blocks until the child exits or ctx is done. When no stream is
// consuming the pipes, Wait also triggers the reap itself.
func (h *Handle) Wait(ctx context.Context) error {
	h.pipeMu.Lock()
	streaming := h.streaming
	h.pipeMu.Unlock()
	if !streaming {
		go h.reap()
	}
	select {
	case <-h.waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitEvent reports the child's exit status. It is only valid once the
// process has been reaped; ok is false before then.
func (h *Handle) ExitEvent() (event.Exit, bool) {
	select {
	case <-h.waitDone:
	default:
		return event.Exit{}, false
	}
	return exitFromState(h.cmd.ProcessState), true
}

// reap calls Wait on the underlying command exactly once. Pumps must have
// drained both pipes first; Wait tears the pipes down.
func (h *Handle) reap() {
	h.waitOnce.Do(func() {
		_ = h.cmd.Wait()
		close(h.waitDone)
	})
}

func exitFromState(state *os.ProcessState) event.Exit {
	if state == nil {
		return event.Exit{Code: -1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return event.Exit{Code: -1, Signal: ws.Signal().String(), Signaled: true}
	}
	return event.Exit{Code: state.ExitCode()}
}
