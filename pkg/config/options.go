package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/itsneelabh/capflow/core"
)

// WithName sets the service name used in logs and traces.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP port. Zero selects a free port from the range.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 0 || port > 65535 {
			return &core.FrameworkError{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     core.ErrInvalidConfiguration,
			}
		}
		c.Server.Port = port
		return nil
	}
}

// WithHost sets the listen host.
func WithHost(host string) Option {
	return func(c *Config) error {
		c.Server.Host = host
		return nil
	}
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = strings.ToLower(level)
		return nil
	}
}

// WithLogFormat sets the log encoder, "json" or "human".
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = strings.ToLower(format)
		return nil
	}
}

// WithMaxConcurrency bounds concurrent phases per level.
func WithMaxConcurrency(n int) Option {
	return func(c *Config) error {
		c.Executor.MaxConcurrency = n
		return nil
	}
}

// WithPhaseTimeout sets the default per-phase timeout.
func WithPhaseTimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.Executor.DefaultPhaseTimeout = d
		return nil
	}
}

// WithRedisURL sets the Redis connection URL.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Redis.URL = url
		return nil
	}
}

// WithStoreBackend selects StoreMemory or StoreRedis.
func WithStoreBackend(backend string) Option {
	return func(c *Config) error {
		c.Store.Backend = strings.ToLower(backend)
		return nil
	}
}

// WithTelemetryExporter selects the trace exporter and its endpoint.
func WithTelemetryExporter(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Exporter = strings.ToLower(exporter)
		if endpoint != "" {
			c.Telemetry.Endpoint = endpoint
		}
		return nil
	}
}

// WithWorkflowDir sets the directory of workflow YAML files.
func WithWorkflowDir(dir string) Option {
	return func(c *Config) error {
		c.Catalog.WorkflowDir = dir
		return nil
	}
}

// WithManifest sets the bootstrap manifest path.
func WithManifest(path string) Option {
	return func(c *Config) error {
		c.Catalog.ManifestPath = path
		return nil
	}
}

// WithConfigFile overlays a config file at this point in the option list, so
// later options still win.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}
