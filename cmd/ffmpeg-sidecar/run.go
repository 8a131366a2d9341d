package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/child"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/command"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/logging"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/resolve"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var deadlineFlag int

	cmd := &cobra.Command{
		Use:   "run -- <ffmpeg args...>",
		Short: "Run FFmpeg with live progress and a structured failure report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			ffmpegPath, err := resolve.Locate(cfg.Paths.FFmpegPath)
			if err != nil {
				return err
			}

			streamOpts := []child.StreamOption{
				child.WithBuffer(cfg.Process.EventBuffer),
				child.WithGracePeriod(ctx.gracePeriod()),
				child.WithTailLimit(cfg.Process.TailLines),
			}
			if deadlineFlag > 0 {
				streamOpts = append(streamOpts, child.WithDeadline(time.Duration(deadlineFlag)*time.Second))
			} else if cfg.Process.DeadlineSeconds > 0 {
				streamOpts = append(streamOpts, child.WithDeadline(time.Duration(cfg.Process.DeadlineSeconds)*time.Second))
			}

			handle, stream, err := command.NewWithPath(ffmpegPath).
				Args(args...).
				SpawnOptions(child.WithLogger(logging.NewComponentLogger(logger, "child"))).
				Run(cmd.Context(), streamOpts...)
			if err != nil {
				return err
			}
			defer stream.Close()

			tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
			for ev := range stream.Events() {
				printEvent(ev, tty)
			}
			if tty {
				fmt.Fprintln(os.Stderr)
			}

			outcome, ok := stream.Outcome()
			if !ok {
				return fmt.Errorf("no outcome for job %s", handle.ID())
			}
			if outcome.Kind != event.OutcomeSuccess {
				for _, line := range outcome.Tail {
					fmt.Fprintln(os.Stderr, line)
				}
				return fmt.Errorf("ffmpeg %s", outcome)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&deadlineFlag, "deadline", 0, "Kill the process after this many seconds")
	return cmd
}

func printEvent(ev event.Event, tty bool) {
	switch ev.Kind {
	case event.KindProgress:
		if ev.Progress == nil {
			return
		}
		line := fmt.Sprintf("frame=%d fps=%.1f time=%s speed=%.3gx",
			ev.Progress.Frame, ev.Progress.FPS, ev.Progress.Time, ev.Progress.Speed)
		if tty {
			fmt.Fprintf(os.Stderr, "\r%-70s", line)
		} else {
			fmt.Fprintln(os.Stderr, line)
		}
	case event.KindError:
		if ev.Error != nil {
			fmt.Fprintln(os.Stderr, ev.Error.Message)
		}
	case event.KindLog:
		if ev.Log != nil && (ev.Log.Level == event.LevelError || ev.Log.Level == event.LevelFatal) {
			fmt.Fprintln(os.Stderr, ev.Log.Message)
		}
	}
}
