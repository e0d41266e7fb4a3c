package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/quiet-hours/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: "Serves the dashboard, the JSON API and the reminder trigger endpoint. " +
			"With --dispatch-interval set, the reminder job also runs in-process.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load()
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				logger.Error("failed to create server", slog.String("error", err.Error()))
				return err
			}
			return srv.Start()
		},
	}
}
