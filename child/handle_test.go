package child_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/child"
)

func TestSpawnMissingBinary(t *testing.T) {
	_, err := child.Spawn("/nonexistent/ffmpeg-binary", []string{"-version"})
	if !errors.Is(err, child.ErrSpawn) {
		t.Fatalf("err = %v, want ErrSpawn", err)
	}
}

func TestHandleIdentity(t *testing.T) {
	requireShell(t)
	a := spawnShell(t, `true`)
	b := spawnShell(t, `true`)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("ids not unique: %q %q", a.ID(), b.ID())
	}
	if a.Binary() != "/bin/sh" {
		t.Fatalf("binary = %q", a.Binary())
	}
	if a.Pid() == 0 {
		t.Fatal("pid should be set for a started child")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitReportsExit(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `exit 7`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := handle.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	exit, ok := handle.ExitEvent()
	if !ok {
		t.Fatal("exit event unavailable after wait")
	}
	if exit.Code != 7 || exit.Signaled {
		t.Fatalf("exit = %+v", exit)
	}
}

func TestExitEventBeforeReap(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `sleep 5`)
	if _, ok := handle.ExitEvent(); ok {
		t.Fatal("exit event should not be available while running")
	}
	_ = handle.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := handle.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	exit, ok := handle.ExitEvent()
	if !ok || !exit.Signaled {
		t.Fatalf("exit = %+v, ok = %v", exit, ok)
	}
}

func TestStopKillsAfterGrace(t *testing.T) {
	requireShell(t)
	// The child ignores the quit request, so Stop has to escalate.
	handle := spawnShell(t, `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if err := handle.Stop(ctx, 200*time.Millisecond); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("stop took %v", elapsed)
	}
}

func TestStdinUnavailableAfterTake(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `cat >/dev/null`)
	stdin, err := handle.TakeStdin()
	if err != nil {
		t.Fatalf("take stdin: %v", err)
	}
	if err := handle.SendStdin([]byte("x")); !errors.Is(err, child.ErrStdinUnavailable) {
		t.Fatalf("send after take: %v", err)
	}
	if err := handle.Quit(); !errors.Is(err, child.ErrStdinUnavailable) {
		t.Fatalf("quit after take: %v", err)
	}
	stdin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := handle.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestUsageWhileRunning(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `sleep 5`)
	defer handle.Kill()

	if _, err := handle.Usage(); err != nil {
		t.Fatalf("usage: %v", err)
	}

	_ = handle.Kill()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = handle.Wait(ctx)
}
