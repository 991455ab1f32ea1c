package main

import (
	"fmt"
	"os"

	"github.com/aretw0/stepwise/internal/cli"
	"github.com/aretw0/stepwise/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stepwise",
	Short: "Stepwise runs multi-step data entry wizards",
	Long: `Stepwise drives step-by-step forms such as vehicle maintenance logs.
Runs are validated per step, autosaved, and can be resumed from the terminal,
the HTTP API or an MCP client.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: stepwise.{yaml,toml,json} in the working directory)")
	rootCmd.PersistentFlags().String("flows", "", "Directory of step documents to serve next to the built-in flows")
	rootCmd.PersistentFlags().String("store", "", "Run store backend: memory, file or redis")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// newFactory loads configuration with flags taking precedence over the
// environment and the config file.
func newFactory(cmd *cobra.Command) (*cli.Factory, error) {
	v := config.New()
	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"store.backend": "store",
		"log.level":     "log-level",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	path, _ := flags.GetString("config")
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, err
	}

	f := cli.NewFactory(cfg, nil)
	f.FlowsDir, _ = flags.GetString("flows")
	return f, nil
}
