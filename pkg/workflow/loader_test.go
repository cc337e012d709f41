package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/itsneelabh/capflow/core"
)

const quickScanYAML = `
name: quick_scan
metadata:
  description: Fast fallacy pass
phases:
  - name: detect
    capability: fallacy_detection
    parameters:
      threshold: 0.6
  - name: score
    capability: quality_scoring
    optional: true
    depends_on: [detect]
    timeout_seconds: 2.5
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(quickScanYAML))
	require.NoError(t, err)

	assert.Equal(t, "quick_scan", def.Name())
	assert.Equal(t, "Fast fallacy pass", def.Metadata()["description"])

	detect, _ := def.Phase("detect")
	assert.Equal(t, 0.6, detect.Parameters["threshold"])

	score, _ := def.Phase("score")
	assert.True(t, score.Optional)
	assert.Equal(t, 2.5, score.TimeoutSeconds)
	assert.Equal(t, [][]string{{"detect"}, {"score"}}, def.ExecutionOrder())
}

func TestParseDefinitionErrors(t *testing.T) {
	_, err := ParseDefinition([]byte("name: [unterminated"))
	assert.Error(t, err)

	_, err = ParseDefinition([]byte(`
name: bad
phases:
  - name: b
    capability: x
    depends_on: [z]
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidWorkflow))
}

func TestDefinitionYAMLRoundTrip(t *testing.T) {
	def, err := ParseDefinition([]byte(quickScanYAML))
	require.NoError(t, err)

	out, err := yaml.Marshal(def)
	require.NoError(t, err)

	again, err := ParseDefinition(out)
	require.NoError(t, err)
	assert.Equal(t, def.Phases(), again.Phases())
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quick.yaml", quickScanYAML)
	writeFile(t, dir, "other.yml", "name: other\nphases:\n  - name: only\n    capability: c\n")
	writeFile(t, dir, "broken.yaml", "name: broken\nphases:\n  - name: a\n    capability: c\n    depends_on: [nope]\n")
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	catalog, err := LoadCatalog(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"other", "quick_scan"}, catalog.Names())
	assert.Equal(t, 2, catalog.Len())

	def, err := catalog.Get("quick_scan")
	require.NoError(t, err)
	assert.Equal(t, 2, def.Len())

	_, err = catalog.Get("broken")
	assert.True(t, core.IsNotFound(err))
}

func TestLoadCatalogMissingDir(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.Empty(t, catalog.Names())
}

func TestCatalogRegisterReplaces(t *testing.T) {
	catalog := NewCatalog(nil)
	first, err := NewBuilder("wf").AddPhase("a", "cap").Build()
	require.NoError(t, err)
	second, err := NewBuilder("wf").AddPhase("a", "cap").AddPhase("b", "cap").Build()
	require.NoError(t, err)

	catalog.Register(first)
	catalog.Register(second)

	got, err := catalog.Get("wf")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestCatalogLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"defaults/quick.yaml": {Data: []byte(quickScanYAML)},
		"defaults/bad.yaml":   {Data: []byte("name: [")},
		"defaults/README.md":  {Data: []byte("docs")},
		"elsewhere/skip.yaml": {Data: []byte("name: skipped\nphases:\n  - name: a\n    capability: c\n")},
	}

	catalog := NewCatalog(nil)
	require.NoError(t, catalog.LoadFS(fsys, "defaults"))
	assert.Equal(t, []string{"quick_scan"}, catalog.Names())

	assert.Error(t, catalog.LoadFS(fsys, "absent"))
}
