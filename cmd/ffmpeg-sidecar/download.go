package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvtkrlbs/async-ffmpeg-sidecar/internal/logging"
	"github.com/dvtkrlbs/async-ffmpeg-sidecar/resolve"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download the latest FFmpeg build for this platform",
		Long: "Download checks the local cache first and only fetches a build when none " +
			"is installed or the installed one fails validation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			opts := []resolve.Option{
				resolve.WithResolverLogger(logging.NewComponentLogger(logger, "resolve")),
			}
			if cfg.Paths.ManifestDB != "" {
				store, err := openManifestStore(cfg.Paths.ManifestDB)
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, resolve.WithStore(store))
			}

			resolver, err := resolve.NewResolver(cfg.Paths.CacheDir, opts...)
			if err != nil {
				return err
			}
			install, err := resolver.Resolve(cmd.Context(), resolve.CurrentTarget())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(install.Binaries))
			for _, bin := range install.Binaries {
				names = append(names, filepath.Base(bin))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Version", "Target", "Directory", "Binaries"},
				[][]string{{install.Version, install.Target.Key(), install.InstallDir, strings.Join(names, ", ")}},
			))
			return nil
		},
	}
}

func openManifestStore(path string) (*resolve.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}
	return resolve.OpenStore(path)
}
