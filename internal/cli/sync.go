package cli

import (
	"time"

	"github.com/spf13/cobra"

	"dip-trigger/internal/app"
)

var syncRetain time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download and store the history of the configured symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sync(cmd.Context(), app.SyncOptions{Retain: syncRetain})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarise the stored history per symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Status(cmd.Context())
	},
}

func init() {
	syncCmd.Flags().DurationVar(&syncRetain, "retain", 0, "Delete stored bars older than this (0 keeps everything)")
}
