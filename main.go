// Package main is the entry point for the issuebot CLI.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/issuebot/cmd"
	"github.com/danielolaszy/issuebot/internal/logging"
)

// main executes the root command and exits non-zero on failure.
func main() {
	logging.Debug("starting issuebot", "version", cmd.Version, "log_level", logging.LevelFromEnv())

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
