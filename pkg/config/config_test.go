package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/telemetry"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "capflow", cfg.Name)
	assert.Equal(t, 5, cfg.Executor.MaxConcurrency)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, telemetry.ExporterNone, cfg.Telemetry.Exporter)
	assert.Equal(t, "8080-8090", cfg.Server.PortRange)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAPFLOW_NAME", "analysis-api")
	t.Setenv("CAPFLOW_LOG_LEVEL", "debug")
	t.Setenv("CAPFLOW_MAX_CONCURRENCY", "8")
	t.Setenv("CAPFLOW_PHASE_TIMEOUT", "45s")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CAPFLOW_STORE", "REDIS")
	t.Setenv("CAPFLOW_PORT", "9000")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "analysis-api", cfg.Name)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Executor.MaxConcurrency)
	assert.Equal(t, 45*time.Second, cfg.Executor.DefaultPhaseTimeout)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestLoadFromEnvPrefersCapflowNames(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://generic:6379")
	t.Setenv("CAPFLOW_REDIS_URL", "redis://specific:6379")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "redis://specific:6379", cfg.Redis.URL)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CAPFLOW_MAX_CONCURRENCY", "many"},
		{"CAPFLOW_PHASE_TIMEOUT", "soon"},
		{"CAPFLOW_PORT", "eighty"},
		{"CAPFLOW_SAMPLING_RATE", "half"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := DefaultConfig().LoadFromEnv()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: from-file
executor:
  max_concurrency: 3
  default_phase_timeout: 2m
store:
  backend: redis
redis:
  url: redis://localhost:6379
server:
  port: 8181
`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, 3, cfg.Executor.MaxConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Executor.DefaultPhaseTimeout)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 8181, cfg.Server.Port)
	// Untouched keys keep defaults.
	assert.Equal(t, "8080-8090", cfg.Server.PortRange)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capflow.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logging": {"level": "warn", "format": "human"}}`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "human", cfg.Logging.Format)
}

func TestLoadFromFileErrors(t *testing.T) {
	err := DefaultConfig().LoadFromFile("settings.toml")
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))

	err = DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
		contains string
	}{
		{"missing name", func(c *Config) { c.Name = "" }, core.ErrMissingConfiguration, "name is required"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, core.ErrInvalidConfiguration, "invalid port: 70000"},
		{"zero concurrency", func(c *Config) { c.Executor.MaxConcurrency = 0 }, core.ErrInvalidConfiguration, "max_concurrency"},
		{"negative timeout", func(c *Config) { c.Executor.DefaultPhaseTimeout = -time.Second }, core.ErrInvalidConfiguration, "default_phase_timeout"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, core.ErrInvalidConfiguration, "log format"},
		{"redis store without url", func(c *Config) { c.Store.Backend = StoreRedis }, core.ErrMissingConfiguration, "redis URL"},
		{"unknown store", func(c *Config) { c.Store.Backend = "s3" }, core.ErrInvalidConfiguration, "store backend"},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.Exporter = telemetry.ExporterOTLP }, core.ErrMissingConfiguration, "endpoint"},
		{"otlp-http without endpoint", func(c *Config) { c.Telemetry.Exporter = telemetry.ExporterOTLPHTTP }, core.ErrMissingConfiguration, "otlp-http exporter"},
		{"unknown exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }, core.ErrInvalidConfiguration, "exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.True(t, core.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestNewConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nexecutor:\n  max_concurrency: 2\n"), 0o600))

	t.Setenv("CAPFLOW_NAME", "env")
	t.Setenv("CAPFLOW_MAX_CONCURRENCY", "7")
	t.Setenv("CAPFLOW_LOG_LEVEL", "warn")
	t.Setenv("CAPFLOW_CONFIG", path)

	cfg, err := NewConfig(WithMaxConcurrency(9))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Name, "file overrides env")
	assert.Equal(t, 9, cfg.Executor.MaxConcurrency, "options override file")
	assert.Equal(t, "warn", cfg.Logging.Level, "env survives when the file is silent")
}

func TestNewConfigOptionErrors(t *testing.T) {
	_, err := NewConfig(WithPort(-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))

	_, err = NewConfig(WithStoreBackend("redis"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingConfiguration))

	cfg, err := NewConfig(
		WithName("svc"),
		WithHost("127.0.0.1"),
		WithPort(0),
		WithLogLevel("DEBUG"),
		WithLogFormat("Human"),
		WithPhaseTimeout(time.Second),
		WithRedisURL("redis://localhost:6379"),
		WithStoreBackend("redis"),
		WithTelemetryExporter("stdout", ""),
		WithWorkflowDir("defs"),
		WithManifest("manifest.yaml"),
	)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "human", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "defs", cfg.Catalog.WorkflowDir)
	assert.Equal(t, "manifest.yaml", cfg.Catalog.ManifestPath)
}

func TestDerivedOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = "stderr"

	lo := cfg.LoggerOptions("server")
	assert.Equal(t, logger.FormatJSON, lo.Format)
	assert.Equal(t, []string{"stderr"}, lo.OutputPaths)
	assert.Equal(t, "server", lo.Component)

	to := cfg.TelemetryOptions("1.2.3")
	assert.Equal(t, "capflow", to.ServiceName)
	assert.Equal(t, "1.2.3", to.ServiceVersion)
	assert.True(t, to.SetGlobal)
}
