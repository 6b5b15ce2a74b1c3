package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/container"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send due expense reminders once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		c, err := container.NewContainer(cfg, logger)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := c.Start(ctx, false); err != nil {
			return err
		}
		defer c.Close()

		result, err := c.Services().Reminders.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("reminder sweep failed: %w", err)
		}

		logger.Info("Reminder sweep finished",
			zap.Int("checked", result.Checked),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
		fmt.Fprintf(cmd.OutOrStdout(), "checked %d, sent %d, failed %d\n", result.Checked, result.Sent, result.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
