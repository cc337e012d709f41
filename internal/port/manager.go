package port

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/itsneelabh/capflow/pkg/logger"
)

const (
	defaultPort  = 8080
	defaultRange = "8080-8090"
)

// Environment is the detected deployment environment.
type Environment string

const (
	EnvLocal      Environment = "local"
	EnvDocker     Environment = "docker"
	EnvKubernetes Environment = "kubernetes"
	EnvProduction Environment = "production"
)

// Settings are the listen settings the manager resolves against.
type Settings struct {
	Host string
	// Port 0 means pick one.
	Port      int
	PortRange string
}

// Strategy records which port was chosen and why.
type Strategy struct {
	Port         int
	AutoDiscover bool
	Source       string
	Environment  Environment
}

// Manager resolves the HTTP listen port for the API server.
type Manager struct {
	settings    Settings
	environment Environment
	logger      logger.Logger
}

// NewManager creates a manager for s in the detected environment.
func NewManager(s Settings, log logger.Logger) *Manager {
	if s.PortRange == "" {
		s.PortRange = defaultRange
	}
	return &Manager{
		settings:    s,
		environment: detectEnvironment(),
		logger:      logger.OrNoOp(log),
	}
}

// WithEnvironment overrides environment detection.
func (m *Manager) WithEnvironment(env Environment) *Manager {
	m.environment = env
	return m
}

func detectEnvironment() Environment {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" ||
		os.Getenv("KUBERNETES_PORT") != "" ||
		fileExists("/var/run/secrets/kubernetes.io/serviceaccount/token") {
		return EnvKubernetes
	}
	if os.Getenv("COMPOSE_PROJECT_NAME") != "" {
		return EnvDocker
	}
	if os.Getenv("CAPFLOW_ENV") == "production" ||
		os.Getenv("GO_ENV") == "production" ||
		os.Getenv("ENVIRONMENT") == "production" {
		return EnvProduction
	}
	return EnvLocal
}

// Strategy decides the port. Containers and production use a fixed port;
// local runs scan the configured range when no port is set.
func (m *Manager) Strategy() Strategy {
	env := m.environment

	if m.settings.Port > 0 {
		return Strategy{Port: m.settings.Port, Source: "explicit-port", Environment: env}
	}

	switch env {
	case EnvKubernetes:
		return Strategy{Port: defaultPort, Source: "kubernetes-fixed", Environment: env}
	case EnvDocker:
		return Strategy{Port: defaultPort, Source: "docker-compose", Environment: env}
	case EnvProduction:
		return Strategy{Port: defaultPort, Source: "production-fixed", Environment: env}
	default:
		return Strategy{
			Port:         m.findAvailablePortInRange(m.settings.PortRange),
			AutoDiscover: true,
			Source:       "auto-discovery",
			Environment:  env,
		}
	}
}

// DeterminePort resolves and logs the port to listen on.
func (m *Manager) DeterminePort() int {
	s := m.Strategy()
	m.logger.Info("Port strategy determined", map[string]interface{}{
		"port":          s.Port,
		"auto_discover": s.AutoDiscover,
		"source":        s.Source,
		"environment":   string(s.Environment),
		"host":          m.settings.Host,
	})
	return s.Port
}

func (m *Manager) findAvailablePortInRange(portRange string) int {
	start, end := m.parsePortRange(portRange)
	for p := start; p <= end; p++ {
		if m.isPortAvailable(p) {
			return p
		}
	}

	m.logger.Warn("No ports available in range, asking the OS for one", map[string]interface{}{
		"range": portRange,
	})
	listener, err := net.Listen("tcp", net.JoinHostPort(m.settings.Host, "0"))
	if err != nil {
		m.logger.Error("Failed to find any available port", map[string]interface{}{
			"error": err.Error(),
		})
		return defaultPort
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// parsePortRange parses "8080-8090". Malformed ranges fall back to the default.
func (m *Manager) parsePortRange(portRange string) (int, int) {
	parts := strings.Split(portRange, "-")
	if len(parts) == 2 {
		start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 == nil && err2 == nil && start > 0 && start <= end && end <= 65535 {
			return start, end
		}
	}
	m.logger.Warn("Invalid port range, using default", map[string]interface{}{
		"range":   portRange,
		"default": defaultRange,
	})
	return 8080, 8090
}

func (m *Manager) isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", m.Address(port))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// ValidatePort reports whether port can be bound on the configured host.
func (m *Manager) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d is out of range", port)
	}
	if !m.isPortAvailable(port) {
		return fmt.Errorf("port %d is not available on %s", port, m.settings.Host)
	}
	return nil
}

// Address returns host:port for net.Listen.
func (m *Manager) Address(port int) string {
	return net.JoinHostPort(m.settings.Host, strconv.Itoa(port))
}

// PublicURL returns a browsable URL for logs.
func (m *Manager) PublicURL(port int) string {
	host := m.settings.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))
}

func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
