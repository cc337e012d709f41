package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/telemetry"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds every capflow setting. Values are layered:
//  1. Defaults (lowest priority)
//  2. Environment variables (CAPFLOW_*, plus REDIS_URL and the standard OTEL_* names)
//  3. A YAML or JSON file named by CAPFLOW_CONFIG or WithConfigFile
//  4. Functional options (highest priority)
//
// Example:
//
//	cfg, err := config.NewConfig(
//	    config.WithPort(9090),
//	    config.WithRedisURL("redis://localhost:6379"),
//	)
type Config struct {
	Name        string `json:"name" mapstructure:"name"`
	Environment string `json:"environment" mapstructure:"environment"`

	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Executor  ExecutorConfig  `json:"executor" mapstructure:"executor"`
	Redis     RedisConfig     `json:"redis" mapstructure:"redis"`
	Store     StoreConfig     `json:"store" mapstructure:"store"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Catalog   CatalogConfig   `json:"catalog" mapstructure:"catalog"`
}

// LoggingConfig selects level and encoder.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
	Output string `json:"output" mapstructure:"output"`
}

// ExecutorConfig bounds workflow execution.
type ExecutorConfig struct {
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency"`
	// DefaultPhaseTimeout applies to phases without timeout_seconds. Zero
	// means no limit.
	DefaultPhaseTimeout time.Duration `json:"default_phase_timeout" mapstructure:"default_phase_timeout"`
}

// RedisConfig is shared by the provider catalog and the Redis run store.
type RedisConfig struct {
	URL        string        `json:"url" mapstructure:"url"`
	Namespace  string        `json:"namespace" mapstructure:"namespace"`
	CatalogTTL time.Duration `json:"catalog_ttl" mapstructure:"catalog_ttl"`
}

// StoreConfig selects where run records go.
type StoreConfig struct {
	Backend string        `json:"backend" mapstructure:"backend"`
	RunTTL  time.Duration `json:"run_ttl" mapstructure:"run_ttl"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Exporter     string  `json:"exporter" mapstructure:"exporter"`
	Endpoint     string  `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool    `json:"insecure" mapstructure:"insecure"`
	SamplingRate float64 `json:"sampling_rate" mapstructure:"sampling_rate"`
}

// ServerConfig configures the HTTP API. Port 0 picks the first free port in
// PortRange.
type ServerConfig struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	PortRange       string        `json:"port_range" mapstructure:"port_range"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// ExecuteRate caps workflow executions per second. Zero disables it.
	ExecuteRate  float64 `json:"execute_rate" mapstructure:"execute_rate"`
	ExecuteBurst int     `json:"execute_burst" mapstructure:"execute_burst"`
}

// CatalogConfig locates workflow definitions and the bootstrap manifest.
type CatalogConfig struct {
	WorkflowDir  string `json:"workflow_dir" mapstructure:"workflow_dir"`
	ManifestPath string `json:"manifest_path" mapstructure:"manifest_path"`
}

// Option is a functional option for configuring capflow.
type Option func(*Config) error

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:        "capflow",
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logger.FormatJSON),
			Output: "stdout",
		},
		Executor: ExecutorConfig{
			MaxConcurrency:      5,
			DefaultPhaseTimeout: 0,
		},
		Redis: RedisConfig{
			Namespace: "capflow",
		},
		Store: StoreConfig{
			Backend: StoreMemory,
			RunTTL:  24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Exporter:     telemetry.ExporterNone,
			Insecure:     true,
			SamplingRate: 1.0,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            0,
			PortRange:       "8080-8090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ExecuteBurst:    5,
		},
		Catalog: CatalogConfig{
			WorkflowDir: "workflows",
		},
	}
}

// LoadFromEnv overlays environment variables. Malformed numbers and
// durations are reported rather than ignored.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("CAPFLOW_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("CAPFLOW_ENV"); v != "" {
		c.Environment = v
	}

	// Logging
	if v := firstEnv("CAPFLOW_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CAPFLOW_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CAPFLOW_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}

	// Executor
	if err := envInt("CAPFLOW_MAX_CONCURRENCY", &c.Executor.MaxConcurrency); err != nil {
		return err
	}
	if err := envDuration("CAPFLOW_PHASE_TIMEOUT", &c.Executor.DefaultPhaseTimeout); err != nil {
		return err
	}

	// Redis and store
	if v := firstEnv("CAPFLOW_REDIS_URL", "REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("CAPFLOW_REDIS_NAMESPACE"); v != "" {
		c.Redis.Namespace = v
	}
	if err := envDuration("CAPFLOW_CATALOG_TTL", &c.Redis.CatalogTTL); err != nil {
		return err
	}
	if v := os.Getenv("CAPFLOW_STORE"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if err := envDuration("CAPFLOW_RUN_TTL", &c.Store.RunTTL); err != nil {
		return err
	}

	// Telemetry
	if v := os.Getenv("CAPFLOW_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = strings.ToLower(v)
	}
	if v := firstEnv("CAPFLOW_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("CAPFLOW_OTEL_INSECURE"); v != "" {
		c.Telemetry.Insecure = parseBool(v)
	}
	if v := os.Getenv("CAPFLOW_SAMPLING_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("CAPFLOW_SAMPLING_RATE", v)
		}
		c.Telemetry.SamplingRate = rate
	}

	// Server
	if v := os.Getenv("CAPFLOW_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("CAPFLOW_PORT"); v != "" && v != "auto" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return envError("CAPFLOW_PORT", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("CAPFLOW_PORT_RANGE"); v != "" {
		c.Server.PortRange = v
	}
	if v := os.Getenv("CAPFLOW_EXECUTE_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("CAPFLOW_EXECUTE_RATE", v)
		}
		c.Server.ExecuteRate = r
	}

	// Catalog
	if v := os.Getenv("CAPFLOW_WORKFLOW_DIR"); v != "" {
		c.Catalog.WorkflowDir = v
	}
	if v := os.Getenv("CAPFLOW_MANIFEST"); v != "" {
		c.Catalog.ManifestPath = v
	}
	return nil
}

// LoadFromFile overlays a YAML or JSON file. Keys absent from the file keep
// their current values.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return &core.FrameworkError{
			Op:      "Config.LoadFromFile",
			Kind:    "config",
			Message: fmt.Sprintf("unsupported config file extension %q", ext),
			Err:     core.ErrInvalidConfiguration,
		}
	}

	v := viper.New()
	v.SetConfigFile(cleanPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}
	if err := v.Unmarshal(c); err != nil {
		return &core.FrameworkError{
			Op:      "Config.LoadFromFile",
			Kind:    "config",
			Message: fmt.Sprintf("failed to parse config file %s: %v", cleanPath, err),
			Err:     core.ErrInvalidConfiguration,
		}
	}
	return nil
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("name is required", core.ErrMissingConfiguration)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid(fmt.Sprintf("invalid port: %d", c.Server.Port), core.ErrInvalidConfiguration)
	}
	if c.Server.ExecuteRate < 0 {
		return invalid("execute_rate must not be negative", core.ErrInvalidConfiguration)
	}
	if c.Executor.MaxConcurrency < 1 {
		return invalid(fmt.Sprintf("max_concurrency must be at least 1, got %d", c.Executor.MaxConcurrency), core.ErrInvalidConfiguration)
	}
	if c.Executor.DefaultPhaseTimeout < 0 {
		return invalid("default_phase_timeout must not be negative", core.ErrInvalidConfiguration)
	}

	switch logger.Format(c.Logging.Format) {
	case logger.FormatJSON, logger.FormatHuman:
	default:
		return invalid(fmt.Sprintf("unknown log format %q", c.Logging.Format), core.ErrInvalidConfiguration)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.URL == "" {
			return invalid("redis URL is required for the redis store backend", core.ErrMissingConfiguration)
		}
	default:
		return invalid(fmt.Sprintf("unknown store backend %q", c.Store.Backend), core.ErrInvalidConfiguration)
	}

	switch c.Telemetry.Exporter {
	case telemetry.ExporterNone, telemetry.ExporterStdout, "":
	case telemetry.ExporterOTLP, telemetry.ExporterOTLPHTTP:
		if c.Telemetry.Endpoint == "" {
			return invalid(fmt.Sprintf("telemetry endpoint is required for the %s exporter", c.Telemetry.Exporter), core.ErrMissingConfiguration)
		}
	default:
		return invalid(fmt.Sprintf("unknown telemetry exporter %q", c.Telemetry.Exporter), core.ErrInvalidConfiguration)
	}
	return nil
}

// LoggerOptions maps the logging section onto logger.Options.
func (c *Config) LoggerOptions(component string) logger.Options {
	opts := logger.Options{
		Level:     c.Logging.Level,
		Format:    logger.Format(c.Logging.Format),
		Component: component,
	}
	if c.Logging.Output != "" {
		opts.OutputPaths = []string{c.Logging.Output}
	}
	return opts
}

// TelemetryOptions maps the telemetry section onto telemetry.Options.
func (c *Config) TelemetryOptions(version string) telemetry.Options {
	return telemetry.Options{
		ServiceName:    c.Name,
		ServiceVersion: version,
		Environment:    c.Environment,
		Exporter:       c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SamplingRate:   c.Telemetry.SamplingRate,
		SetGlobal:      true,
	}
}

// NewConfig builds a validated configuration from defaults, environment,
// CAPFLOW_CONFIG and opts, in that order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	if path := os.Getenv("CAPFLOW_CONFIG"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func invalid(msg string, sentinel error) error {
	return &core.FrameworkError{Op: "Config.Validate", Kind: "config", Message: msg, Err: sentinel}
}

func envError(key, value string) error {
	return &core.FrameworkError{
		Op:      "Config.LoadFromEnv",
		Kind:    "config",
		Message: fmt.Sprintf("invalid value %q for %s", value, key),
		Err:     core.ErrInvalidConfiguration,
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return envError(key, v)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return envError(key, v)
	}
	*dst = d
	return nil
}

// parseBool accepts "true", "1", "yes" and "on" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
