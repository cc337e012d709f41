package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/capflow"
	"github.com/itsneelabh/capflow/internal/port"
	"github.com/itsneelabh/capflow/internal/server"
	"github.com/itsneelabh/capflow/pkg/config"
	"github.com/itsneelabh/capflow/pkg/discovery"
	"github.com/itsneelabh/capflow/pkg/telemetry"
)

type serveFlags struct {
	host  string
	port  int
	store string
}

func newServeCmd(rf *rootFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the registry, the workflow catalog and workflow execution over HTTP.

When a Redis URL is configured the provider catalog is published to Redis
so other instances and 'capflow inspect providers --remote' can read it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, rf, f)
		},
	}
	cmd.Flags().StringVar(&f.host, "host", "", "listen host")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "listen port (0 picks a free port from the range)")
	cmd.Flags().StringVar(&f.store, "store", "", "run store backend: memory or redis")
	return cmd
}

func serve(cmd *cobra.Command, rf *rootFlags, f *serveFlags) error {
	var extra []config.Option
	if cmd.Flags().Changed("host") {
		extra = append(extra, config.WithHost(f.host))
	}
	if cmd.Flags().Changed("port") {
		extra = append(extra, config.WithPort(f.port))
	}
	if cmd.Flags().Changed("store") {
		extra = append(extra, config.WithStoreBackend(f.store))
	}

	a, err := newApp(cmd, rf, "server", false, extra...)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, cfg.TelemetryOptions(capflow.Version))
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			a.log.Warn("Telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	runs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer runs.Close()

	if cfg.Redis.URL != "" {
		a.publishProviders(ctx)
	}

	exec, err := a.executor(tp, runs)
	if err != nil {
		return err
	}

	pm := port.NewManager(port.Settings{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		PortRange: cfg.Server.PortRange,
	}, a.log)
	p := pm.DeterminePort()
	if cfg.Server.Port > 0 {
		if err := pm.ValidatePort(p); err != nil {
			return err
		}
	}
	l, err := net.Listen("tcp", pm.Address(p))
	if err != nil {
		return err
	}
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		p = tcp.Port
	}

	srv := server.New(server.Options{
		Registry:        a.setup.Registry,
		Catalog:         a.catalog,
		Executor:        exec,
		Runs:            runs,
		Logger:          a.log,
		ServiceName:     cfg.Name,
		ExecuteRate:     cfg.Server.ExecuteRate,
		ExecuteBurst:    cfg.Server.ExecuteBurst,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	a.log.Info("capflow API listening", map[string]interface{}{
		"url":       pm.PublicURL(p),
		"workflows": a.catalog.Len(),
		"store":     cfg.Store.Backend,
		"exporter":  tp.Exporter(),
		"version":   capflow.Version,
	})
	return srv.Serve(ctx, l)
}

// publishProviders pushes the local provider catalog to Redis. Failure is
// logged and the server keeps running on the local registry.
func (a *app) publishProviders(ctx context.Context) {
	catalog, err := discovery.NewRedisCatalogFromURL(ctx, a.cfg.Redis.URL, a.cfg.Redis.Namespace, a.log,
		discovery.WithTTL(a.cfg.Redis.CatalogTTL))
	if err != nil {
		a.log.Warn("Provider catalog unavailable, not publishing", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer catalog.Close()

	if err := catalog.Publish(ctx, a.setup.Discovery); err != nil {
		a.log.Warn("Failed to publish provider catalog", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	a.log.Info("Published provider catalog", map[string]interface{}{
		"providers": len(a.setup.Discovery.Providers()),
		"namespace": a.cfg.Redis.Namespace,
	})
}
