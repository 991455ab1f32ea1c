package main

import (
	"github.com/aretw0/stepwise/internal/cli"
	"github.com/aretw0/stepwise/pkg/maintenance"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [flow]",
	Short: "Fill in a flow on the terminal",
	Long: `Starts an interactive run of a flow (default: diy).
Answers are autosaved; pass --run with the same id to resume an interrupted run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow := maintenance.FlowDIY
		if len(args) > 0 {
			flow = args[0]
		}
		runID, _ := cmd.Flags().GetString("run")
		plain, _ := cmd.Flags().GetBool("plain")
		quiet, _ := cmd.Flags().GetBool("quiet")
		debug, _ := cmd.Flags().GetBool("debug")
		export, _ := cmd.Flags().GetString("export")

		f, err := newFactory(cmd)
		if err != nil {
			return err
		}
		defer f.Close()
		if debug {
			f.Config.Log.Level = "debug"
			f.Logger = cli.NewLogger(f.Config.Log, nil)
		}

		return cli.RunSession(cmd.Context(), f, cli.RunOptions{
			Flow:   flow,
			RunID:  runID,
			Plain:  plain,
			Quiet:  quiet,
			Debug:  debug,
			Export: export,
			In:     cmd.InOrStdin(),
			Out:    cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("run", "", "Run id to resume or create")
	runCmd.Flags().Bool("plain", false, "Line-based prompts without markdown rendering")
	runCmd.Flags().BoolP("quiet", "q", false, "Hide the banner and system messages")
	runCmd.Flags().Bool("debug", false, "Log step lifecycle events to stderr")
	runCmd.Flags().String("export", "", "Write the saved entry to this .json, .yaml or .toml file")
}
