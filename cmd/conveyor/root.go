package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor runs staged build pipelines against trigger events",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.StringArray("pipeline", nil, "pipeline definition file to include (repeatable)")
	persistent.String("artifact-root", "", "directory for stored artifacts")
	persistent.String("format", "pretty", "output format (pretty|json)")
	persistent.Bool("dry-run", false, "validate and print the plan without executing")
	persistent.BoolP("verbose", "v", false, "stream command output in real time")
	persistent.Bool("dedupe", false, "at most one running run per pipeline and branch")
	persistent.Int("port", 0, "listen port for serve")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
