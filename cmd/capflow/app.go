package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/capflow/internal/bootstrap"
	"github.com/itsneelabh/capflow/pkg/config"
	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/orchestration"
	"github.com/itsneelabh/capflow/pkg/store"
	"github.com/itsneelabh/capflow/pkg/telemetry"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

// app is everything a subcommand needs after configuration is resolved.
type app struct {
	cfg     *config.Config
	log     *logger.ZapLogger
	setup   *bootstrap.Setup
	catalog *workflow.Catalog
	out     io.Writer
}

// newApp loads configuration and bootstraps the registry and workflow
// catalog. Commands that print results to stdout keep logs on stderr unless
// an output was configured explicitly.
func newApp(cmd *cobra.Command, f *rootFlags, component string, quietStdout bool, extra ...config.Option) (*app, error) {
	opts := append(f.options(cmd), extra...)
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	if quietStdout && cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	log, err := logger.NewZapLogger(cfg.LoggerOptions(component))
	if err != nil {
		return nil, err
	}

	manifest, err := bootstrap.LoadManifestOrDefault(cfg.Catalog.ManifestPath)
	if err != nil {
		return nil, err
	}
	setup, err := bootstrap.SetupRegistry(manifest, log)
	if err != nil {
		return nil, err
	}
	catalog, err := bootstrap.LoadWorkflows(cfg.Catalog.WorkflowDir, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		setup:   setup,
		catalog: catalog,
		out:     cmd.OutOrStdout(),
	}, nil
}

// close flushes buffered log entries.
func (a *app) close() {
	_ = a.log.Sync()
}

// openStore returns the configured run store.
func (a *app) openStore(ctx context.Context) (store.RunStore, error) {
	switch a.cfg.Store.Backend {
	case config.StoreRedis:
		return store.NewRedisRunStoreFromURL(ctx, a.cfg.Redis.URL, a.cfg.Redis.Namespace, a.cfg.Store.RunTTL, a.log)
	default:
		return store.NewMemoryRunStore(a.cfg.Store.RunTTL), nil
	}
}

// executor builds a workflow executor from the executor section. tp and runs
// may be nil.
func (a *app) executor(tp *telemetry.Provider, runs store.RunStore) (*orchestration.WorkflowExecutor, error) {
	opts := []orchestration.ExecutorOption{
		orchestration.WithLogger(a.log),
		orchestration.WithMaxConcurrency(a.cfg.Executor.MaxConcurrency),
		orchestration.WithDefaultPhaseTimeout(a.cfg.Executor.DefaultPhaseTimeout),
	}
	if tp != nil {
		metrics, err := telemetry.NewPhaseMetrics(tp.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create phase metrics: %w", err)
		}
		opts = append(opts, orchestration.WithTracer(tp.Tracer), orchestration.WithMetrics(metrics))
	}
	if runs != nil {
		opts = append(opts, orchestration.WithRunRecorder(runs))
	}
	return orchestration.NewWorkflowExecutor(a.setup.Registry, opts...), nil
}

// missingCapabilities lists capabilities of required phases that no
// registered component provides.
func (a *app) missingCapabilities(def *workflow.Definition) []string {
	missing := []string{}
	for _, phase := range def.Phases() {
		if !phase.Optional && len(a.setup.Registry.FindForCapability(phase.Capability)) == 0 {
			missing = append(missing, phase.Capability)
		}
	}
	return missing
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
