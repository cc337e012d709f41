package main

import (
	"github.com/spf13/cobra"

	"github.com/itsneelabh/capflow/pkg/config"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configFile  string
	logLevel    string
	logFormat   string
	manifest    string
	workflowDir string
	debug       bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "capflow",
		Short: "Capability-driven workflow engine",
		Long: `capflow resolves workflow phases to registered components by the
capability they provide, orders phases by their dependencies and runs
each dependency level concurrently.

Components come from a bootstrap manifest and workflows from YAML files.
Both fall back to the bundled defaults.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "config file (json or yaml)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "log format: json or human")
	pf.BoolVar(&f.debug, "debug", false, "shorthand for --log-level=debug")
	pf.StringVar(&f.manifest, "manifest", "", "bootstrap manifest (default is the bundled manifest)")
	pf.StringVar(&f.workflowDir, "workflows", "", "directory of workflow YAML files")

	cmd.AddCommand(
		newRunCmd(f),
		newPlanCmd(f),
		newInspectCmd(f),
		newServeCmd(f),
		newVersionCmd(),
	)
	return cmd
}

// options turns explicitly set flags into config options. Unset flags leave
// environment and file values alone.
func (f *rootFlags) options(cmd *cobra.Command) []config.Option {
	var opts []config.Option
	flags := cmd.Flags()
	if flags.Changed("config") && f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	if flags.Changed("log-level") {
		opts = append(opts, config.WithLogLevel(f.logLevel))
	}
	if flags.Changed("debug") && f.debug {
		opts = append(opts, config.WithLogLevel("debug"))
	}
	if flags.Changed("log-format") {
		opts = append(opts, config.WithLogFormat(f.logFormat))
	}
	if flags.Changed("manifest") {
		opts = append(opts, config.WithManifest(f.manifest))
	}
	if flags.Changed("workflows") {
		opts = append(opts, config.WithWorkflowDir(f.workflowDir))
	}
	return opts
}
