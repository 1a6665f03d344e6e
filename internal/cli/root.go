// Package cli holds the ownercal commands: the interactive owner console and
// the reference calendar server it talks to.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ownercal/internal/infra/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCommand creates the root command for the ownercal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ownercal",
		Short: "Owner calendar console",
		Long: `Manage a property's availability calendar: browse months, block or
release dates and set nightly prices for date ranges.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file (defaults to $OWNERCAL_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")

	cmd.AddCommand(NewConsoleCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func (o *RootOptions) load() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadPath(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, nil
}
