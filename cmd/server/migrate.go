package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/trip-approval/internal/container"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		bundle, err := container.ProvideDatabase(&cfg.Database, logger)
		if err != nil {
			return err
		}
		defer bundle.DB.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations to %s\n", bundle.Applied, cfg.Database.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
