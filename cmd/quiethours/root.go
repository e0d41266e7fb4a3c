package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/quiet-hours/internal/config"
)

// app carries the viper instance the commands share.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:          "quiethours",
		Short:        "Quiet Hours study block scheduler",
		Long:         "Schedules quiet study blocks and emails a reminder shortly before each one starts.",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String(config.KeyDBPath, "data/quiet-hours.db", "SQLite database path")
	flags.String(config.KeyLogLevel, "info", "log level: debug, info, warn or error")
	flags.String(config.KeyLogFormat, "text", "log format: text or json")
	flags.String(config.KeyNotifier, config.NotifierConsole, "email channel: console, sendgrid or resend")
	flags.String(config.KeyDisplayTimezone, "UTC", "time zone used in reminder emails and the dashboard")
	flags.Int(config.KeyDispatchConcurrency, 1, "reminder blocks processed in parallel")
	_ = a.v.BindPFlags(flags)

	serve := newServeCmd(a)
	serveFlags := serve.Flags()
	serveFlags.Int(config.KeyPort, 8080, "HTTP port")
	serveFlags.Duration(config.KeyDispatchInterval, time.Duration(0), "run the reminder job every interval (0 disables)")
	serveFlags.Bool(config.KeyCookieSecure, false, "mark session cookies Secure (HTTPS only)")
	_ = a.v.BindPFlags(serveFlags)

	root.AddCommand(serve, newRemindCmd(a), newMigrateCmd(a))
	return root
}

// load reads the configuration after flags are parsed.
func (a *app) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(), nil
}
