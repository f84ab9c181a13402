package cmd

import (
	"github.com/spf13/cobra"
)

const (
	appName        = "issuebot"
	defaultDataDir = ".gh-issues-bot"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Issuebot asks to be assigned to eligible GitHub issues",
	Long: `Issuebot watches a set of GitHub repositories for open, unassigned issues that
match per-repository label and title rules, and posts a comment asking to be
assigned to the oldest one. At most one request is outstanding at a time; a
new one is only posted after the previous request's cooldown has passed.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("data-dir", "d", defaultDataDir, "Directory holding the persisted request state")
	rootCmd.PersistentFlags().String("store", "json", "State store backend (json or sqlite)")
}
