package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/discovery"
)

// execute runs the CLI with quiet logging and an empty workflow directory,
// so only the bundled workflows are in the catalog.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--log-level", "error", "--workflows", t.TempDir()))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "capflow development (api v1alpha1)")
	assert.Contains(t, out, "commit: unknown")
}

func TestPlanCommandText(t *testing.T) {
	out, err := execute(t, "plan", "full_analysis")
	require.NoError(t, err)

	assert.Contains(t, out, "Workflow: full_analysis\n")
	assert.Contains(t, out, "Level 1: extract\n")
	assert.Contains(t, out, "Level 3: beliefs\n")
	assert.Contains(t, out, "Level 4: report\n")
	assert.NotContains(t, out, "Deferred")
	assert.NotContains(t, out, "Missing required capabilities")
}

func TestPlanCommandJSON(t *testing.T) {
	out, err := execute(t, "plan", "quick_scan", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Workflow string `json:"workflow"`
		Plan     struct {
			Levels [][]string `json:"levels"`
		} `json:"plan"`
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "quick_scan", got.Workflow)
	assert.Equal(t, [][]string{{"extract"}, {"detect"}, {"score"}}, got.Plan.Levels)
	assert.Empty(t, got.Missing)
}

func TestPlanCommandErrors(t *testing.T) {
	_, err := execute(t, "plan", "quick_scan", "-o", "xml")
	assert.Error(t, err)

	_, err = execute(t, "plan", "nope")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))

	_, err = execute(t, "plan")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "quick_scan",
		"--input", `{"text": "All swans are white."}`,
		"--set", "language=en",
		"--max-concurrency", "2",
	)
	require.NoError(t, err)

	var record struct {
		RunID     string `json:"run_id"`
		Workflow  string `json:"workflow"`
		Succeeded bool   `json:"succeeded"`
		Results   map[string]struct {
			Status string `json:"status"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.NotEmpty(t, record.RunID)
	assert.Equal(t, "quick_scan", record.Workflow)
	assert.True(t, record.Succeeded)
	assert.Equal(t, "completed", record.Results["extract"].Status)
	assert.Equal(t, "completed", record.Results["detect"].Status)
	assert.Equal(t, "completed", record.Results["score"].Status)
}

func TestRunCommandFailedPhase(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
components:
  - name: extractor
    type: agent
    capabilities: [argument_extraction]
  - name: detector
    type: plugin
    kind: fail
    capabilities: [fallacy_detection]
    parameters:
      message: model offline
`), 0o600))

	out, err := execute(t, "run", "quick_scan", "--manifest", manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow 'quick_scan' failed")

	// The record is still printed.
	var record struct {
		Succeeded bool `json:"succeeded"`
		Results   map[string]struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.False(t, record.Succeeded)
	assert.Equal(t, "failed", record.Results["detect"].Status)
	assert.Contains(t, record.Results["detect"].Error, "model offline")
	assert.Equal(t, "skipped", record.Results["score"].Status)
}

func TestRunCommandInvalidSet(t *testing.T) {
	_, err := execute(t, "run", "quick_scan", "--set", "novalue")
	assert.Error(t, err)
}

func TestReadInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(file, []byte(`[1, 2]`), 0o600))

	tests := []struct {
		name  string
		flags runFlags
		want  interface{}
	}{
		{"empty", runFlags{}, nil},
		{"json object", runFlags{input: `{"a": 1}`}, map[string]interface{}{"a": float64(1)}},
		{"plain text", runFlags{input: "hello world"}, "hello world"},
		{"file wins", runFlags{input: "ignored", inputFile: file}, []interface{}{float64(1), float64(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInput(&tt.flags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := readInput(&runFlags{inputFile: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	out, err := execute(t, "inspect")
	require.NoError(t, err)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, true, summary["has_service_discovery"])

	out, err = execute(t, "inspect", "workflows")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"full_analysis", "quick_scan"}, names)

	out, err = execute(t, "inspect", "registrations", "--type", "plugin")
	require.NoError(t, err)
	assert.Contains(t, out, "quality_scorer")
	assert.NotContains(t, out, "argument_extractor")

	out, err = execute(t, "inspect", "providers", "--provider-type", "llm")
	require.NoError(t, err)
	assert.Contains(t, out, "hosted-llm")
	assert.NotContains(t, out, "OPENAI")

	_, err = execute(t, "inspect", "registrations", "--type", "robot")
	assert.Error(t, err)

	_, err = execute(t, "inspect", "everything")
	assert.Error(t, err)
}

func TestInspectRemoteProviders(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sd := discovery.NewServiceDiscovery(nil)
	_, err = sd.RegisterLLMProvider(discovery.ProviderRegistration{Name: "remote-llm", Priority: 3})
	require.NoError(t, err)
	require.NoError(t, discovery.NewRedisCatalog(client, "capflow", nil).Publish(context.Background(), sd))

	t.Setenv("CAPFLOW_REDIS_URL", "redis://"+mr.Addr())
	out, err := execute(t, "inspect", "providers", "--remote")
	require.NoError(t, err)
	assert.Contains(t, out, "remote-llm")
	assert.NotContains(t, out, "hosted-llm")
}

func TestInspectRemoteNeedsRedis(t *testing.T) {
	t.Setenv("CAPFLOW_REDIS_URL", "")
	t.Setenv("REDIS_URL", "")
	_, err := execute(t, "inspect", "providers", "--remote")
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestRootFlagsOptions(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "warn"}))

	f := &rootFlags{logLevel: "warn", logFormat: "human"}
	// Only log-level was set on the command line; log-format stays unset.
	assert.Len(t, f.options(cmd), 1)
}
