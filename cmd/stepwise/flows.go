package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the available flows",
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
		names, err := flows.ListFlows(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range names {
			cfg, err := flows.LoadFlow(cmd.Context(), name)
			if err != nil {
				fmt.Fprintf(out, "- %s (invalid: %v)\n", name, err)
				continue
			}
			fmt.Fprintf(out, "- %s (%d steps)\n", name, len(cfg.Steps))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
}
