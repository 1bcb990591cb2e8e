package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	evoserver "github.com/HendryAvila/evonest/internal/server"
	"github.com/HendryAvila/evonest/internal/updater"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update evonest to the latest release",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stderr, "Checking for updates...")

			result := updater.CheckVersion(evoserver.Version)
			if !result.UpdateAvailable {
				fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
				return nil
			}

			fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\nDownloading...\n",
				result.CurrentVersion, result.LatestVersion)

			if err := updater.SelfUpdate(evoserver.Version); err != nil {
				fmt.Fprintf(os.Stderr, "You can download manually from:\n  %s\n", result.ReleaseURL)
				return fmt.Errorf("update failed: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Updated to v%s. Restart evonest to use the new version.\n",
				result.LatestVersion)
			return nil
		},
	}
}
