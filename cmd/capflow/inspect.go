package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/discovery"
	"github.com/itsneelabh/capflow/pkg/registry"
)

var inspectTopics = []string{"summary", "capabilities", "slots", "registrations", "providers", "workflows"}

type inspectFlags struct {
	componentType string
	providerType  string
	remote        bool
}

func newInspectCmd(rf *rootFlags) *cobra.Command {
	f := &inspectFlags{}
	cmd := &cobra.Command{
		Use:   "inspect [summary|capabilities|slots|registrations|providers|workflows]",
		Short: "Print the bootstrapped registry as JSON",
		Long: `Print what the bootstrap manifest registered.

With --remote, providers are read from the Redis provider catalog that
'capflow serve' publishes instead of the local manifest.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: inspectTopics,
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := "summary"
			if len(args) == 1 {
				topic = args[0]
			}
			return inspect(cmd, rf, f, topic)
		},
	}
	cmd.Flags().StringVar(&f.componentType, "type", "", "filter registrations by component type")
	cmd.Flags().StringVar(&f.providerType, "provider-type", "", "filter providers by type")
	cmd.Flags().BoolVar(&f.remote, "remote", false, "read providers from the Redis catalog")
	return cmd
}

func inspect(cmd *cobra.Command, rf *rootFlags, f *inspectFlags, topic string) error {
	a, err := newApp(cmd, rf, "cli", true)
	if err != nil {
		return err
	}
	defer a.close()
	reg := a.setup.Registry

	switch topic {
	case "summary":
		return a.printJSON(reg.Summary())
	case "capabilities":
		return a.printJSON(reg.AllCapabilities())
	case "slots":
		return a.printJSON(reg.AllSlots())
	case "registrations":
		var types []registry.ComponentType
		if f.componentType != "" {
			t, err := registry.ParseComponentType(f.componentType)
			if err != nil {
				return err
			}
			types = append(types, t)
		}
		return a.printJSON(reg.AllRegistrations(types...))
	case "providers":
		sd := a.setup.Discovery
		if f.remote {
			if sd, err = a.remoteDiscovery(cmd); err != nil {
				return err
			}
		}
		if f.providerType != "" {
			return a.printJSON(sd.ProvidersByType(f.providerType))
		}
		return a.printJSON(sd.Providers())
	case "workflows":
		return a.printJSON(a.catalog.Names())
	}
	return fmt.Errorf("unknown topic '%s', expected one of %v", topic, inspectTopics)
}

func (a *app) remoteDiscovery(cmd *cobra.Command) (*discovery.ServiceDiscovery, error) {
	if a.cfg.Redis.URL == "" {
		return nil, &core.FrameworkError{
			Op:      "inspect",
			Kind:    "config",
			Message: "--remote needs redis.url or CAPFLOW_REDIS_URL",
			Err:     core.ErrMissingConfiguration,
		}
	}
	ctx := cmd.Context()
	catalog, err := discovery.NewRedisCatalogFromURL(ctx, a.cfg.Redis.URL, a.cfg.Redis.Namespace, a.log)
	if err != nil {
		return nil, err
	}
	defer catalog.Close()
	return catalog.Load(ctx, a.log)
}
