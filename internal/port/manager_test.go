package port

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) (int, net.Listener) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return l.Addr().(*net.TCPAddr).Port, l
}

func TestStrategyByEnvironment(t *testing.T) {
	tests := []struct {
		name   string
		env    Environment
		port   int
		want   int
		source string
	}{
		{"explicit wins everywhere", EnvKubernetes, 9999, 9999, "explicit-port"},
		{"kubernetes fixed", EnvKubernetes, 0, 8080, "kubernetes-fixed"},
		{"docker fixed", EnvDocker, 0, 8080, "docker-compose"},
		{"production fixed", EnvProduction, 0, 8080, "production-fixed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(Settings{Host: "127.0.0.1", Port: tt.port}, nil).WithEnvironment(tt.env)
			s := m.Strategy()
			assert.Equal(t, tt.want, s.Port)
			assert.Equal(t, tt.source, s.Source)
			assert.False(t, s.AutoDiscover)
		})
	}
}

func TestLocalAutoDiscovery(t *testing.T) {
	p, l := freePort(t)
	l.Close()

	rng := strconv.Itoa(p) + "-" + strconv.Itoa(p)
	m := NewManager(Settings{Host: "127.0.0.1", PortRange: rng}, nil).WithEnvironment(EnvLocal)
	s := m.Strategy()
	assert.True(t, s.AutoDiscover)
	assert.Equal(t, p, s.Port)
	assert.Equal(t, p, m.DeterminePort())
}

func TestLocalAutoDiscoveryFallsBackToOS(t *testing.T) {
	p, l := freePort(t)
	defer l.Close()

	rng := strconv.Itoa(p) + "-" + strconv.Itoa(p)
	m := NewManager(Settings{Host: "127.0.0.1", PortRange: rng}, nil).WithEnvironment(EnvLocal)
	got := m.Strategy().Port
	assert.NotEqual(t, p, got)
	assert.Greater(t, got, 0)
}

func TestParsePortRange(t *testing.T) {
	m := NewManager(Settings{}, nil)
	tests := []struct {
		in         string
		start, end int
	}{
		{"9000-9005", 9000, 9005},
		{" 9000 - 9001 ", 9000, 9001},
		{"9005-9000", 8080, 8090},
		{"abc", 8080, 8090},
		{"0-10", 8080, 8090},
	}
	for _, tt := range tests {
		start, end := m.parsePortRange(tt.in)
		assert.Equal(t, tt.start, start, tt.in)
		assert.Equal(t, tt.end, end, tt.in)
	}
}

func TestValidatePort(t *testing.T) {
	m := NewManager(Settings{Host: "127.0.0.1"}, nil)

	p, l := freePort(t)
	assert.Error(t, m.ValidatePort(p), "bound port must be rejected")
	l.Close()
	assert.NoError(t, m.ValidatePort(p))

	assert.Error(t, m.ValidatePort(0))
	assert.Error(t, m.ValidatePort(65536))
}

func TestAddressAndURL(t *testing.T) {
	m := NewManager(Settings{Host: "0.0.0.0"}, nil)
	assert.Equal(t, "0.0.0.0:8080", m.Address(8080))
	assert.Equal(t, "http://localhost:8080", m.PublicURL(8080))

	m = NewManager(Settings{Host: "api.internal"}, nil)
	assert.Equal(t, "http://api.internal:9000", m.PublicURL(9000))
}
