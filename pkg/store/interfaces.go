package store

import (
	"context"
	"time"

	"github.com/itsneelabh/capflow/pkg/orchestration"
)

// DefaultRunTTL is how long a run record is kept when no TTL is configured.
const DefaultRunTTL = 24 * time.Hour

// RunStore persists execution records. Every RunStore is also an
// orchestration.RunRecorder.
type RunStore interface {
	SaveRun(ctx context.Context, record *orchestration.ExecutionRecord) error
	GetRun(ctx context.Context, runID string) (*orchestration.ExecutionRecord, error)
	// ListRuns returns up to limit records, newest first. A limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]*orchestration.ExecutionRecord, error)
	DeleteRun(ctx context.Context, runID string) error
	Close() error
}

var (
	_ RunStore = (*MemoryRunStore)(nil)
	_ RunStore = (*RedisRunStore)(nil)

	_ orchestration.RunRecorder = (RunStore)(nil)
)
