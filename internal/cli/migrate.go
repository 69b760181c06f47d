package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dip-trigger/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate up|down",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(storage.MigrateUp), string(storage.MigrateDown)},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := storage.MigrationDirection(args[0])
		if direction != storage.MigrateUp && direction != storage.MigrateDown {
			return fmt.Errorf("unknown migration direction %q", args[0])
		}
		return getApp().Migrate(direction)
	},
}
