package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/capflow"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "capflow %s (api %s)\n", capflow.Version, capflow.APIVersion)
			fmt.Fprintf(out, "commit: %s\n", capflow.GitCommit)
			fmt.Fprintf(out, "built:  %s\n", capflow.BuildDate)
			fmt.Fprintf(out, "go:     %s\n", runtime.Version())
		},
	}
}
