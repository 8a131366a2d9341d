package child_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/child"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

// spawnShell runs a shell script as the supervised child.
func spawnShell(t *testing.T, script string, opts ...child.Option) *child.Handle {
	t.Helper()
	handle, err := child.Spawn("/bin/sh", []string{"-c", script}, opts...)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return handle
}

func drain(t *testing.T, stream *child.Stream) []event.Event {
	t.Helper()
	var events []event.Event
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	return events
}

func countExits(events []event.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == event.KindExit {
			n++
		}
	}
	return n
}

func TestStreamDeliversLinesAndSingleExit(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `printf 'hello\nworld\n' 1>&2`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	events := drain(t, stream)
	if countExits(events) != 1 {
		t.Fatalf("got %d exit events, want exactly 1", countExits(events))
	}
	last := events[len(events)-1]
	if last.Kind != event.KindExit {
		t.Fatalf("last event kind = %q, want exit", last.Kind)
	}
	if !last.Exit.Success() {
		t.Fatalf("exit = %+v", last.Exit)
	}

	var logs []string
	for _, ev := range events {
		if ev.Kind == event.KindLog {
			logs = append(logs, ev.Log.Message)
		}
	}
	if len(logs) != 2 || logs[0] != "hello" || logs[1] != "world" {
		t.Fatalf("logs = %q", logs)
	}

	outcome, ok := stream.Outcome()
	if !ok || outcome.Kind != event.OutcomeSuccess {
		t.Fatalf("outcome = %+v, ok = %v", outcome, ok)
	}
}

func TestStreamParsesDiagnostics(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `
printf 'ffmpeg version 6.0 Copyright (c) 2000-2023 the FFmpeg developers\n' 1>&2
printf 'frame=  120 fps=30 q=-1.0 size=    1024kB time=00:00:04.00 bitrate= 128.0kbits/s speed=1.0x\n' 1>&2
`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var sawVersion, sawProgress bool
	for _, ev := range drain(t, stream) {
		switch ev.Kind {
		case event.KindVersion:
			sawVersion = ev.Version.Version == "6.0"
		case event.KindProgress:
			sawProgress = ev.Progress.Frame == 120
		}
	}
	if !sawVersion || !sawProgress {
		t.Fatalf("sawVersion=%v sawProgress=%v", sawVersion, sawProgress)
	}

	snap := stream.Snapshot()
	if snap.Frame != 120 || snap.Seconds != 4 || snap.Updates != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestStreamPreservesPerPipeOrder(t *testing.T) {
	requireShell(t)
	// Both pipes written concurrently; the merge may interleave them but
	// must keep each pipe's own lines in order.
	handle := spawnShell(t, `
i=0; while [ $i -lt 50 ]; do echo "out $i"; i=$((i+1)); done &
j=0; while [ $j -lt 50 ]; do echo "err $j" 1>&2; j=$((j+1)); done
wait
`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var stdoutLines, stderrLines []string
	for _, ev := range drain(t, stream) {
		if ev.Kind != event.KindLog {
			continue
		}
		switch {
		case strings.HasPrefix(ev.Log.Message, "out "):
			stdoutLines = append(stdoutLines, ev.Log.Message)
		case strings.HasPrefix(ev.Log.Message, "err "):
			stderrLines = append(stderrLines, ev.Log.Message)
		}
	}

	checkOrdered := func(name, prefix string, lines []string) {
		t.Helper()
		if len(lines) != 50 {
			t.Fatalf("%s delivered %d lines, want 50", name, len(lines))
		}
		for i, line := range lines {
			if want := fmt.Sprintf("%s%d", prefix, i); line != want {
				t.Fatalf("%s line %d = %q, want %q", name, i, line, want)
			}
		}
	}
	checkOrdered("stdout", "out ", stdoutLines)
	checkOrdered("stderr", "err ", stderrLines)
}

func TestStreamFailureOutcomeCarriesTail(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `printf '[error] something broke\n' 1>&2; exit 3`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	drain(t, stream)

	outcome, ok := stream.Outcome()
	if !ok {
		t.Fatal("no outcome")
	}
	if outcome.Kind != event.OutcomeFailure || outcome.Code != 3 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(outcome.Tail) != 1 || !strings.Contains(outcome.Tail[0], "something broke") {
		t.Fatalf("tail = %q", outcome.Tail)
	}
}

func TestStreamKilledOutcome(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `sleep 30`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = handle.Kill()
	}()

	events := drain(t, stream)
	if countExits(events) != 1 {
		t.Fatalf("got %d exit events", countExits(events))
	}
	outcome, ok := stream.Outcome()
	if !ok || outcome.Kind != event.OutcomeKilled {
		t.Fatalf("outcome = %+v, ok = %v", outcome, ok)
	}
}

func TestStreamDeadlineTimesOut(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `sleep 30`)
	stream, err := handle.Stream(context.Background(), child.WithDeadline(100*time.Millisecond))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	start := time.Now()
	drain(t, stream)
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("deadline did not fire, waited %v", elapsed)
	}

	outcome, ok := stream.Outcome()
	if !ok || outcome.Kind != event.OutcomeTimedOut {
		t.Fatalf("outcome = %+v, ok = %v", outcome, ok)
	}
}

func TestStreamCloseKillsChild(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `while true; do echo tick 1>&2; sleep 1; done`)
	stream, err := handle.Stream(context.Background(), child.WithGracePeriod(100*time.Millisecond))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	// Read a first event so the child is known to be running.
	select {
	case <-stream.Events():
	case <-time.After(10 * time.Second):
		t.Fatal("no output from child")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The event channel must still terminate after shutdown.
	done := make(chan struct{})
	go func() {
		for range stream.Events() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("event channel did not close after Close")
	}

	outcome, ok := stream.Outcome()
	if !ok {
		t.Fatal("no outcome after close")
	}
	if outcome.Kind != event.OutcomeKilled {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestStreamCancelledContextShutsDown(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `while true; do echo tick 1>&2; sleep 1; done`)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := handle.Stream(ctx, child.WithGracePeriod(100*time.Millisecond))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		for range stream.Events() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("event channel did not close after context cancellation")
	}
}

func TestStreamAfterChildAlreadyExited(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `true`)
	// Give the child time to exit before the stream attaches. The stream
	// must still deliver exactly one exit event.
	time.Sleep(200 * time.Millisecond)

	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	events := drain(t, stream)
	if countExits(events) != 1 {
		t.Fatalf("got %d exit events", countExits(events))
	}
	// A child with no output produces nothing but the exit.
	if len(events) != 1 || events[0].Kind != event.KindExit {
		t.Fatalf("events = %+v, want a single exit", events)
	}
}

func TestStreamOnlyOnce(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `true`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if _, err := handle.Stream(context.Background()); !errors.Is(err, child.ErrAlreadyStreaming) {
		t.Fatalf("second stream: %v", err)
	}
	drain(t, stream)
}

func TestTakeStdoutKeepsMediaOutOfStream(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `printf 'rawbytes' ; printf 'diag\n' 1>&2`)

	stdout, err := handle.TakeStdout()
	if err != nil {
		t.Fatalf("take stdout: %v", err)
	}
	data, err := io.ReadAll(stdout)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(data) != "rawbytes" {
		t.Fatalf("stdout = %q", data)
	}

	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	var sawDiag bool
	for _, ev := range drain(t, stream) {
		if ev.Kind == event.KindLog && ev.Log.Message == "diag" {
			sawDiag = true
		}
	}
	if !sawDiag {
		t.Fatal("stderr diagnostics not delivered")
	}
}

func TestSendStdinReachesChild(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `read line; printf 'got %s\n' "$line" 1>&2`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if err := handle.SendStdin([]byte("hello\n")); err != nil {
		t.Fatalf("send stdin: %v", err)
	}

	var sawEcho bool
	for _, ev := range drain(t, stream) {
		if ev.Kind == event.KindLog && ev.Log.Message == "got hello" {
			sawEcho = true
		}
	}
	if !sawEcho {
		t.Fatal("stdin payload never echoed back")
	}
}

func TestCollectMetadata(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `
printf "Input #0, lavfi, from 'testsrc=duration=10':\n" 1>&2
printf '  Duration: 00:00:10.00, start: 0.000000, bitrate: N/A\n' 1>&2
printf '  Stream #0:0: Video: wrapped_avframe, rgb24, 320x240 [SAR 1:1 DAR 4:3], 25 fps, 25 tbr, 25 tbn\n' 1>&2
printf 'Stream mapping:\n' 1>&2
printf '  Stream #0:0 -> #0:0 (wrapped_avframe (native) -> h264 (libx264))\n' 1>&2
printf "Output #0, mp4, to 'test.mp4':\n" 1>&2
printf '  Stream #0:0: Video: h264 (High), yuv444p(tv, progressive), 320x240 [SAR 1:1 DAR 4:3], q=2-31, 25 fps, 12800 tbn\n' 1>&2
sleep 1
`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	meta, err := stream.CollectMetadata(ctx)
	if err != nil {
		t.Fatalf("collect metadata: %v", err)
	}
	if len(meta.Inputs) != 1 || len(meta.Outputs) != 1 {
		t.Fatalf("inputs=%d outputs=%d", len(meta.Inputs), len(meta.Outputs))
	}
	if len(meta.InputStreams) != 1 || len(meta.OutputStreams) != 1 {
		t.Fatalf("input streams=%d output streams=%d", len(meta.InputStreams), len(meta.OutputStreams))
	}
	if seconds, ok := meta.Duration(); !ok || seconds != 10 {
		t.Fatalf("duration = %v, %v", seconds, ok)
	}
	drain(t, stream)
}

func TestCollectMetadataFailsOnEarlyExit(t *testing.T) {
	requireShell(t)
	handle := spawnShell(t, `printf '[error] could not open input\n' 1>&2; exit 1`)
	stream, err := handle.Stream(context.Background())
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if _, err := stream.CollectMetadata(context.Background()); err == nil {
		t.Fatal("expected metadata collection to fail on early exit")
	}
}
