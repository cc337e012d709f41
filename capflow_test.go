package capflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/capflow"
)

func TestRunWorkflow(t *testing.T) {
	reg := capflow.NewCapabilityRegistry(nil)
	echo := capflow.ComponentFunc(func(ctx context.Context, inv capflow.Invocation) (interface{}, error) {
		return inv.Input, nil
	})
	_, err := reg.Register(capflow.NewRegistration("echo", capflow.ComponentTypePlugin, echo, []string{"echo"}))
	require.NoError(t, err)

	def, err := capflow.NewBuilder("demo").
		AddPhase("first", "echo").
		AddPhase("second", "echo", capflow.DependsOn("first")).
		AddPhase("extra", "translation", capflow.Optional()).
		Build()
	require.NoError(t, err)

	record, err := capflow.RunWorkflow(context.Background(), reg, def, "hello")
	require.NoError(t, err)

	assert.True(t, record.Succeeded)
	assert.NotEmpty(t, record.RunID)
	assert.Equal(t, capflow.StatusCompleted, record.Results["second"].Status)
	assert.Equal(t, "hello", record.Results["second"].Output)
	assert.Equal(t, capflow.StatusSkipped, record.Results["extra"].Status)
	assert.Equal(t, []string{"translation"}, record.Summary.CapabilitiesMissing)
}
