package main

import (
	"errors"

	"github.com/aretw0/stepwise/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"runs"},
	Short:   "Manage stored runs",
	Long:    `List, inspect, and remove runs kept in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFactory(cmd)
		if err != nil {
			return err
		}
		defer f.Close()
		store, err := f.Store()
		if err != nil {
			return err
		}
		return cli.ListRuns(cmd.Context(), cmd.OutOrStdout(), store)
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Inspect the state of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := newFactory(cmd)
		if err != nil {
			return err
		}
		defer f.Close()
		store, err := f.Store()
		if err != nil {
			return err
		}
		return cli.InspectRun(cmd.Context(), cmd.OutOrStdout(), store, args[0])
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("requires at least one run id or --all")
		}
		f, err := newFactory(cmd)
		if err != nil {
			return err
		}
		defer f.Close()
		store, err := f.Store()
		if err != nil {
			return err
		}
		return cli.RemoveRuns(cmd.Context(), cmd.OutOrStdout(), store, args, all)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionRmCmd.Flags().Bool("all", false, "Remove every stored run")
}
