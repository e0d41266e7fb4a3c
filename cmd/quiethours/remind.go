package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/quiet-hours/internal/server"
)

func newRemindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send due reminders once and print the summary",
		Long: "Runs one reminder dispatch invocation and prints its JSON summary. " +
			"Per-block failures are part of the summary; the command exits non-zero " +
			"only when the candidate or profile query fails. Intended for cron.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load()
			if err != nil {
				return err
			}

			db, err := server.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			job, err := server.NewReminderJob(cfg, db, logger)
			if err != nil {
				return err
			}

			summary, err := job.Run(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
