package main

import (
	"fmt"

	"github.com/aretw0/stepwise/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export the flow as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD) of the flow's steps. With --run, the progress of a stored run is highlighted.`,
	Args:  cobra.ExactArgs(1),
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

		var overlay *graph.Overlay
		if runID, _ := cmd.Flags().GetString("run"); runID != "" {
			store, err := f.Store()
			if err != nil {
				return err
			}
			state, err := store.Load(cmd.Context(), runID)
			if err != nil {
				return fmt.Errorf("error loading run '%s': %w", runID, err)
			}
			overlay = graph.NewOverlay(cfg, state)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(cfg, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Highlight the progress of this stored run")
}
