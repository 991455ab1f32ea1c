package main

import (
	"fmt"

	"github.com/aretw0/stepwise/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow> <data-file>",
	Short: "Check a data file against a flow",
	Long: `Validates step data from a .json, .jsonc, .yaml or .toml file against every
visible step of the flow, reporting each problem.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFactory(cmd)
		if err != nil {
			return err
		}
		defer f.Close()

		flows, err := f.Flows()
		if err != nil {
			return err
		}
		cfg, err := flows.LoadFlow(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := cli.LoadDataFile(args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		problems := cli.ValidateData(cfg, data)
		if len(problems) == 0 {
			fmt.Fprintln(out, "Data is valid! ✅")
			return nil
		}
		for _, p := range problems {
			fmt.Fprintf(out, "- %s\n", p)
		}
		return fmt.Errorf("validation failed: %d problems", len(problems))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
