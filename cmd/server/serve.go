package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/container"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}

		logger.Info("Starting trip approval service",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("reminders", cfg.Reminder.Enabled),
			zap.Bool("lark", cfg.Lark.Enabled))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := container.NewContainer(cfg, logger)
		if err != nil {
			return err
		}
		if err := c.Start(ctx, true); err != nil {
			return err
		}
		defer c.Close()

		srv, err := c.HTTPServer()
		if err != nil {
			return err
		}

		// Start blocks until a signal cancels ctx and shuts the server down
		if err := srv.Start(ctx); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			return err
		}

		logger.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on; overrides server.port")
}
