package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/logger"
)

// ParseDefinition reads a YAML workflow document and validates it.
//
//	name: quick_scan
//	phases:
//	  - name: detect
//	    capability: fallacy_detection
//	  - name: score
//	    capability: quality_scoring
//	    depends_on: ["detect"]
//	    optional: true
//	    timeout_seconds: 30
func ParseDefinition(data []byte) (*Definition, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	b := NewBuilder(doc.Name).AddPhases(doc.Phases...)
	for k, v := range doc.Metadata {
		b.SetMetadata(k, v)
	}
	return b.Build()
}

// LoadFile parses the workflow stored at path.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// MarshalYAML renders the definition in the form ParseDefinition reads.
func (d *Definition) MarshalYAML() (interface{}, error) {
	return document{Name: d.name, Metadata: d.metadata, Phases: d.phases}, nil
}

// Catalog holds named workflow definitions.
type Catalog struct {
	mu        sync.RWMutex
	workflows map[string]*Definition
	logger    logger.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(log logger.Logger) *Catalog {
	return &Catalog{
		workflows: make(map[string]*Definition),
		logger:    logger.OrNoOp(log).With(map[string]interface{}{"component": "workflow_catalog"}),
	}
}

// LoadCatalog reads every *.yaml / *.yml file in dir. A missing directory
// yields an empty catalog. Invalid files are logged and skipped.
func LoadCatalog(dir string, log logger.Logger) (*Catalog, error) {
	c := NewCatalog(log)
	if err := c.LoadDir(dir); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDir adds the workflows found in dir.
func (c *Catalog) LoadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("Workflow directory not found", map[string]interface{}{"dir": dir})
			return nil
		}
		return fmt.Errorf("failed to read workflow directory: %w", err)
	}
	return c.load(os.DirFS(dir), ".", dir)
}

// LoadFS adds the workflows found in dir of fsys, such as an embedded
// directory of defaults.
func (c *Catalog) LoadFS(fsys fs.FS, dir string) error {
	return c.load(fsys, dir, dir)
}

func (c *Catalog) load(fsys fs.FS, dir, label string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read workflow directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		source := filepath.Join(label, name)
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err == nil {
			var def *Definition
			if def, err = ParseDefinition(data); err == nil {
				c.Register(def)
				continue
			}
		}
		c.logger.Warn("Failed to load workflow", map[string]interface{}{
			"path":  source,
			"error": err.Error(),
		})
	}
	return nil
}

// Register adds def, replacing any workflow with the same name.
func (c *Catalog) Register(def *Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.workflows[def.Name()]; exists {
		c.logger.Warn("Replacing workflow definition", map[string]interface{}{"workflow": def.Name()})
	}
	c.workflows[def.Name()] = def
	c.logger.Debug("Workflow registered", map[string]interface{}{
		"workflow": def.Name(),
		"phases":   def.Len(),
	})
}

// Get returns the named workflow or core.ErrWorkflowNotFound.
func (c *Catalog) Get(name string) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.workflows[name]
	if !ok {
		return nil, &core.FrameworkError{Op: "workflow.Catalog.Get", Kind: "workflow", ID: name, Err: core.ErrWorkflowNotFound}
	}
	return def, nil
}

// Names returns the workflow names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.workflows))
	for name := range c.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of workflows.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.workflows)
}
