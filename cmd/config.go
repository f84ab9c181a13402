package cmd

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/issuebot/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or check configuration files",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration file",
	Long: `Print a complete example configuration with placeholder credentials.

Example:
  issuebot config example --format yaml > config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}

		data, err := renderExample(format)
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file",
	Long: `Load a configuration file the same way the run command does and report
errors and warnings. The command fails when the file cannot be used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		if configPath == "" {
			return fmt.Errorf("config flag is required")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, warning := range cfg.Warnings() {
			fmt.Fprintf(out, "warning: %s\n", warning)
		}
		fmt.Fprintf(out, "%s is valid: %d repositories, poll every %s, cooldown %s\n",
			configPath, len(cfg.Repositories), cfg.PollInterval(), cfg.Cooldown())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configValidateCmd)

	configExampleCmd.Flags().String("format", "toml", "Output format (toml or yaml)")
	configValidateCmd.Flags().StringP("config", "c", "", "Path to the configuration file")
}

func renderExample(format string) ([]byte, error) {
	example := config.Example()

	switch strings.ToLower(format) {
	case "toml", "":
		return toml.Marshal(example)
	case "yaml", "yml":
		return yaml.Marshal(example)
	default:
		return nil, fmt.Errorf("unsupported format %q, expected toml or yaml", format)
	}
}
