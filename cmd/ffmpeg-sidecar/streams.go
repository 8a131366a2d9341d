package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/command"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/event"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/resolve"
)

func newStreamsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "streams <input>",
		Short: "List the streams FFmpeg detects in an input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ffmpegPath, err := resolve.Locate(cfg.Paths.FFmpegPath)
			if err != nil {
				return err
			}

			// A null output makes ffmpeg analyze the input fully and emit
			// the stream mapping we collect metadata from.
			_, stream, err := command.NewWithPath(ffmpegPath).
				HideBanner().
				Input(args[0]).
				Format("null").
				Output("-").
				Run(cmd.Context())
			if err != nil {
				return err
			}
			defer stream.Close()

			meta, err := stream.CollectMetadata(cmd.Context())
			if err != nil {
				return err
			}
			for range stream.Events() {
				// Drain the remainder so the child finishes cleanly.
			}

			rows := make([][]string, 0, len(meta.InputStreams))
			for _, s := range meta.InputStreams {
				rows = append(rows, streamRow(s))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Stream", "Type", "Format", "Language", "Details"}, rows))

			if seconds, ok := meta.Duration(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Duration: %.2fs\n", seconds)
			}
			return nil
		},
	}
}

func streamRow(s event.Stream) []string {
	id := strconv.Itoa(s.ParentIndex) + ":" + strconv.Itoa(s.StreamIndex)
	details := ""
	switch {
	case s.Video != nil:
		details = fmt.Sprintf("%s %dx%d %.4gfps", s.Video.PixFmt, s.Video.Width, s.Video.Height, s.Video.FPS)
	case s.Audio != nil:
		details = fmt.Sprintf("%dHz %s", s.Audio.SampleRate, s.Audio.Channels)
	}
	return []string{id, string(s.Kind), s.Format, languageName(s.Language), details}
}

// languageName turns a three-letter tag like "eng" into a display name.
// Unrecognized or absent tags pass through unchanged.
func languageName(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
