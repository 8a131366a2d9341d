package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/command"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/ffprobe"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/resolve"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Report the detected FFmpeg and FFprobe versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, 2)

			ffmpegPath, err := resolve.Locate(cfg.Paths.FFmpegPath)
			if err != nil {
				rows = append(rows, []string{"ffmpeg", "not found", ""})
			} else {
				version, verr := command.Version(cmd.Context(), ffmpegPath)
				if verr != nil {
					version = "unknown"
				}
				rows = append(rows, []string{"ffmpeg", version, ffmpegPath})
			}

			if ffprobe.Installed(cmd.Context()) {
				version, verr := ffprobe.Version(cmd.Context())
				if verr != nil {
					version = "unknown"
				}
				rows = append(rows, []string{"ffprobe", version, ffprobe.Path()})
			} else {
				rows = append(rows, []string{"ffprobe", "not found", ""})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Tool", "Version", "Path"}, rows))
			return nil
		},
	}
}
