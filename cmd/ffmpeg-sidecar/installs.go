package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newInstallsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "installs",
		Short: "List downloads recorded in the install manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.ManifestDB == "" {
				return errors.New("paths.manifest_db is not configured")
			}
			store, err := openManifestStore(cfg.Paths.ManifestDB)
			if err != nil {
				return err
			}
			defer store.Close()

			installs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(installs))
			for _, install := range installs {
				rows = append(rows, []string{
					fmt.Sprintf("%d", install.ID),
					install.Target.Key(),
					install.Version,
					install.InstalledAt.Local().Format("2006-01-02 15:04"),
					install.InstallDir,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Target", "Version", "Installed", "Directory"}, rows, 0))
			return nil
		},
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
