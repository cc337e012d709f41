package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/orchestration"
	"github.com/itsneelabh/capflow/pkg/registry"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func sampleRecord(id string, started time.Time) *orchestration.ExecutionRecord {
	results := map[string]*orchestration.PhaseResult{
		"parse": {
			PhaseName:     "parse",
			Status:        orchestration.StatusCompleted,
			Capability:    "parsing",
			ComponentUsed: "parser",
			Output:        "ok",
			StartedAt:     started,
		},
		"score": {
			PhaseName:  "score",
			Status:     orchestration.StatusSkipped,
			Capability: "scoring",
			Optional:   true,
			Error:      "No provider available (optional phase)",
			StartedAt:  started,
		},
	}
	return &orchestration.ExecutionRecord{
		RunID:       id,
		Workflow:    "analysis",
		StartedAt:   started.UTC(),
		CompletedAt: started.Add(time.Second).UTC(),
		Plan:        workflow.ExecutionPlan{Levels: [][]string{{"parse", "score"}}},
		Results:     results,
		Summary:     orchestration.Summarize(results),
		Succeeded:   orchestration.Succeeded(results),
	}
}

// runStoreContract is shared by every RunStore implementation.
func runStoreContract(t *testing.T, s RunStore) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveRun(ctx, sampleRecord(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "analysis", got.Workflow)
	assert.Equal(t, orchestration.StatusCompleted, got.Results["parse"].Status)
	assert.Equal(t, 1, got.Summary.Skipped)
	assert.True(t, got.Succeeded)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"run-2", "run-1", "run-0"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "run-2", limited[0].RunID)

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	_, err = s.GetRun(ctx, "run-1")
	assert.True(t, errors.Is(err, core.ErrRunNotFound))
	assert.True(t, core.IsNotFound(err))

	err = s.SaveRun(ctx, &orchestration.ExecutionRecord{})
	assert.Error(t, err)
}

func TestMemoryRunStore(t *testing.T) {
	s := NewMemoryRunStore(time.Hour)
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryRunStoreExpiry(t *testing.T) {
	s := NewMemoryRunStore(20 * time.Millisecond)
	require.NoError(t, s.SaveRun(context.Background(), sampleRecord("short", time.Now())))

	time.Sleep(40 * time.Millisecond)
	_, err := s.GetRun(context.Background(), "short")
	assert.True(t, errors.Is(err, core.ErrRunNotFound))
}

func TestRedisRunStore(t *testing.T) {
	_, client := setupTestRedis(t)
	runStoreContract(t, NewRedisRunStore(client, "test", time.Hour, nil))
}

func TestRedisRunStoreExpiryPrunesIndex(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisRunStore(client, "test", time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleRecord("old", time.Now().Add(-time.Hour))))
	assert.True(t, mr.Exists("test:runs:old"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, s.SaveRun(ctx, sampleRecord("new", time.Now())))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].RunID)

	members, err := mr.ZMembers("test:runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, members)
}

func TestRedisRunStoreUnavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisRunStore(client, "", 0, nil)
	mr.Close()

	err := s.SaveRun(context.Background(), sampleRecord("x", time.Now()))
	assert.True(t, errors.Is(err, core.ErrConnectionFailed))
	assert.True(t, core.IsRetryable(err))
}

func TestNewRedisRunStoreFromURL(t *testing.T) {
	mr, _ := setupTestRedis(t)

	s, err := NewRedisRunStoreFromURL(context.Background(), "redis://"+mr.Addr(), "url", 0, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SaveRun(context.Background(), sampleRecord("via-url", time.Now())))
	assert.True(t, mr.Exists("url:runs:via-url"))

	_, err = NewRedisRunStoreFromURL(context.Background(), "not a url", "", 0, nil)
	assert.Error(t, err)
}

func TestExecutorPersistsToStore(t *testing.T) {
	_, client := setupTestRedis(t)
	runs := NewRedisRunStore(client, "exec", time.Hour, nil)

	def, err := workflow.NewBuilder("empty").AddPhase("p", "nothing", workflow.Optional()).Build()
	require.NoError(t, err)

	exec := orchestration.NewWorkflowExecutor(newEmptyRegistry(), orchestration.WithRunRecorder(runs))
	record, err := exec.Run(context.Background(), def, nil, nil)
	require.NoError(t, err)

	stored, err := runs.GetRun(context.Background(), record.RunID)
	require.NoError(t, err)
	assert.Equal(t, orchestration.StatusSkipped, stored.Results["p"].Status)
}

func newEmptyRegistry() *registry.CapabilityRegistry {
	return registry.NewCapabilityRegistry(nil)
}
