// Command quiethours runs the Quiet Hours study scheduler.
//
//	quiethours serve     HTTP API, dashboard and optional reminder ticker
//	quiethours remind    one reminder dispatch, summary printed as JSON
//	quiethours migrate   create or upgrade the database schema
//
// Configuration comes from flags, QH_* environment variables and an
// optional .env file in the working directory.
package main

import (
	"fmt"
	"os"

	"github.com/sakif/quiet-hours/internal/config"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
