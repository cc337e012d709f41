package bootstrap

import (
	"embed"

	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

//go:embed defaults/manifest.yaml
var defaultManifest []byte

//go:embed defaults/workflows/*.yaml
var defaultWorkflows embed.FS

// DefaultManifest returns the manifest used when none is configured.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(defaultManifest)
}

// DefaultWorkflows returns the bundled workflow catalog.
func DefaultWorkflows(log logger.Logger) (*workflow.Catalog, error) {
	c := workflow.NewCatalog(log)
	if err := c.LoadFS(defaultWorkflows, "defaults/workflows"); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadWorkflows returns the bundled workflows overlaid by those in dir.
func LoadWorkflows(dir string, log logger.Logger) (*workflow.Catalog, error) {
	c, err := DefaultWorkflows(log)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := c.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadManifestOrDefault loads path, or the bundled manifest when path is empty.
func LoadManifestOrDefault(path string) (*Manifest, error) {
	if path == "" {
		return DefaultManifest()
	}
	return LoadManifest(path)
}
