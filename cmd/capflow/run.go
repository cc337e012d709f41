package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/capflow/internal/utils"
	"github.com/itsneelabh/capflow/pkg/config"
	"github.com/itsneelabh/capflow/pkg/store"
)

type runFlags struct {
	input          string
	inputFile      string
	set            []string
	maxConcurrency int
	phaseTimeout   time.Duration
	persist        bool
}

func newRunCmd(rf *rootFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Execute a workflow and print the run record",
		Long: `Execute a workflow from the catalog and print its run record as JSON.

Input is parsed as JSON when possible and passed as a plain string
otherwise. --set adds key=value pairs to the run context.
The command fails when a required phase fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, rf, f, args[0])
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "workflow input (JSON or plain text)")
	cmd.Flags().StringVar(&f.inputFile, "input-file", "", "read workflow input from a file")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "extra run context entry key=value (repeatable)")
	cmd.Flags().IntVar(&f.maxConcurrency, "max-concurrency", 0, "phases run at once within a level")
	cmd.Flags().DurationVar(&f.phaseTimeout, "phase-timeout", 0, "timeout for phases without their own")
	cmd.Flags().BoolVar(&f.persist, "persist", false, "save the run record in the configured store")
	return cmd
}

func runWorkflow(cmd *cobra.Command, rf *rootFlags, f *runFlags, name string) error {
	var extra []config.Option
	if cmd.Flags().Changed("max-concurrency") {
		extra = append(extra, config.WithMaxConcurrency(f.maxConcurrency))
	}
	if cmd.Flags().Changed("phase-timeout") {
		extra = append(extra, config.WithPhaseTimeout(f.phaseTimeout))
	}

	a, err := newApp(cmd, rf, "cli", true, extra...)
	if err != nil {
		return err
	}
	defer a.close()

	def, err := a.catalog.Get(name)
	if err != nil {
		return err
	}

	input, err := readInput(f)
	if err != nil {
		return err
	}
	values, err := utils.ParseKeyValues(f.set)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var runs store.RunStore
	if f.persist {
		if runs, err = a.openStore(ctx); err != nil {
			return err
		}
		defer runs.Close()
	}
	exec, err := a.executor(nil, runs)
	if err != nil {
		return err
	}

	record, err := exec.Run(ctx, def, input, values)
	if err != nil {
		return err
	}
	if err := a.printJSON(record); err != nil {
		return err
	}
	if !record.Succeeded {
		return fmt.Errorf("workflow '%s' failed: %d of %d phases failed", name, record.Summary.Failed, record.Summary.Total)
	}
	return nil
}

// readInput returns the decoded JSON input, the raw text when it is not
// JSON, or nil when no input was given.
func readInput(f *runFlags) (interface{}, error) {
	raw := f.input
	if f.inputFile != "" {
		data, err := os.ReadFile(f.inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		raw = string(data)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, nil
	}
	return raw, nil
}

type planFlags struct {
	output string
}

func newPlanCmd(rf *rootFlags) *cobra.Command {
	f := &planFlags{}
	cmd := &cobra.Command{
		Use:   "plan <workflow>",
		Short: "Show the execution levels of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return planWorkflow(cmd, rf, f, args[0])
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "output format: text or json")
	return cmd
}

func planWorkflow(cmd *cobra.Command, rf *rootFlags, f *planFlags, name string) error {
	if f.output != "text" && f.output != "json" {
		return fmt.Errorf("unknown output format '%s'", f.output)
	}

	a, err := newApp(cmd, rf, "cli", true)
	if err != nil {
		return err
	}
	defer a.close()

	def, err := a.catalog.Get(name)
	if err != nil {
		return err
	}
	plan := def.Plan()
	missing := a.missingCapabilities(def)

	if f.output == "json" {
		return a.printJSON(map[string]interface{}{
			"workflow": def.Name(),
			"plan":     plan,
			"missing":  missing,
		})
	}

	fmt.Fprintf(a.out, "Workflow: %s\n", def.Name())
	for i, level := range plan.Levels {
		fmt.Fprintf(a.out, "Level %d: %s\n", i+1, strings.Join(level, ", "))
	}
	if plan.HasCycle() {
		fmt.Fprintf(a.out, "Deferred (cycle): %s\n", strings.Join(plan.Deferred, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(a.out, "Missing required capabilities: %s\n", strings.Join(missing, ", "))
	}
	return nil
}
