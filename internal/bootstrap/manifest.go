package bootstrap

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/discovery"
	"github.com/itsneelabh/capflow/pkg/registry"
)

// Manifest describes the components, slots and infrastructure providers a
// process starts with.
//
//	providers:
//	  - name: local-llm
//	    type: llm
//	    endpoint: http://localhost:11434
//	    priority: 5
//	components:
//	  - name: informal_analyzer
//	    type: agent
//	    kind: passthrough
//	    capabilities: [fallacy_detection]
//	    requires: [llm]
//	slots:
//	  - name: neural_fallacy_detection
//	    requires: [llm, embedding]
type Manifest struct {
	Providers  []discovery.ProviderRegistration `yaml:"providers"`
	Components []ComponentSpec                  `yaml:"components"`
	Slots      []SlotSpec                       `yaml:"slots"`
}

// ComponentSpec declares one builtin component.
type ComponentSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// Kind defaults to passthrough.
	Kind         Kind                   `yaml:"kind"`
	Capabilities []string               `yaml:"capabilities"`
	Requires     []string               `yaml:"requires"`
	Parameters   map[string]interface{} `yaml:"parameters"`
	Metadata     map[string]interface{} `yaml:"metadata"`
	// Optional components are dropped, and their capabilities declared as
	// slots, when their requirements cannot be met.
	Optional bool `yaml:"optional"`
}

// SlotSpec declares an extension point.
type SlotSpec struct {
	Name        string                 `yaml:"name"`
	Requires    []string               `yaml:"requires"`
	Description string                 `yaml:"description"`
	Metadata    map[string]interface{} `yaml:"metadata"`
}

// envRef matches ${VAR}. Bare $ is left alone so values such as regular
// expressions survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// ParseManifest decodes a manifest. ${VAR} references are expanded from the
// environment first, so API keys need not live in the file.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(expandEnv(data), &m); err != nil {
		return nil, &core.FrameworkError{
			Op:      "bootstrap.ParseManifest",
			Kind:    "config",
			Message: fmt.Sprintf("failed to parse manifest: %v", err),
			Err:     core.ErrInvalidConfiguration,
		}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

func (m *Manifest) validate() error {
	for i := range m.Components {
		if m.Components[i].Kind == "" {
			m.Components[i].Kind = KindPassthrough
		}
		c := m.Components[i]
		if c.Name == "" {
			return manifestError(fmt.Sprintf("component #%d has no name", i+1))
		}
		if _, err := registry.ParseComponentType(c.Type); err != nil {
			return manifestError(fmt.Sprintf("component '%s' has unknown type '%s'", c.Name, c.Type))
		}
		if !c.Kind.Valid() {
			return manifestError(fmt.Sprintf("component '%s' has unknown kind '%s'", c.Name, c.Kind))
		}
	}
	for i, s := range m.Slots {
		if s.Name == "" {
			return manifestError(fmt.Sprintf("slot #%d has no name", i+1))
		}
	}
	return nil
}

func manifestError(msg string) error {
	return &core.FrameworkError{Op: "bootstrap.ParseManifest", Kind: "config", Message: msg, Err: core.ErrInvalidConfiguration}
}
