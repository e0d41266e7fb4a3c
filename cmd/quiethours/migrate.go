package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/quiet-hours/internal/server"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load()
			if err != nil {
				return err
			}

			db, err := server.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			logger.Info("database is up to date", slog.String("path", cfg.DBPath))
			return db.Close()
		},
	}
}
