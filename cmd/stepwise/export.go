package main

import (
	"fmt"

	"github.com/aretw0/stepwise/internal/cli"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export the entry of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		f, err := newFactory(cmd)
		if err != nil {
			return err
		}
		defer f.Close()
		store, err := f.Store()
		if err != nil {
			return err
		}
		state, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading run '%s': %w", args[0], err)
		}

		if output != "" {
			return cli.ExportFile(output, state.Flow, state.Data)
		}
		return cli.Export(cmd.OutOrStdout(), format, state.Flow, state.Data)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", cli.FormatYAML, "Output format: json, yaml or toml")
	exportCmd.Flags().StringP("output", "o", "", "Write to this file instead, in the format of its extension")
}
