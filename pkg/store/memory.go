package store

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/orchestration"
)

// MemoryRunStore keeps run records in process with a TTL.
type MemoryRunStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryRunStore creates an in-process store. A ttl <= 0 uses DefaultRunTTL.
func NewMemoryRunStore(ttl time.Duration) *MemoryRunStore {
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	return &MemoryRunStore{
		cache: gocache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

// SaveRun stores record under its run ID, replacing any earlier record.
func (m *MemoryRunStore) SaveRun(ctx context.Context, record *orchestration.ExecutionRecord) error {
	if record == nil || record.RunID == "" {
		return &core.FrameworkError{Op: "store.SaveRun", Kind: "store", Message: "run record has no run ID", Err: core.ErrInvalidConfiguration}
	}
	m.cache.Set(record.RunID, record, m.ttl)
	return nil
}

// GetRun returns the record for runID.
func (m *MemoryRunStore) GetRun(ctx context.Context, runID string) (*orchestration.ExecutionRecord, error) {
	v, ok := m.cache.Get(runID)
	if !ok {
		return nil, &core.FrameworkError{Op: "store.GetRun", Kind: "store", ID: runID, Err: core.ErrRunNotFound}
	}
	return v.(*orchestration.ExecutionRecord), nil
}

// ListRuns returns unexpired records, newest first.
func (m *MemoryRunStore) ListRuns(ctx context.Context, limit int) ([]*orchestration.ExecutionRecord, error) {
	items := m.cache.Items()
	records := make([]*orchestration.ExecutionRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := item.Object.(*orchestration.ExecutionRecord); ok {
			records = append(records, rec)
		}
	}
	sortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// DeleteRun removes a record. Deleting an unknown ID is not an error.
func (m *MemoryRunStore) DeleteRun(ctx context.Context, runID string) error {
	m.cache.Delete(runID)
	return nil
}

// Close drops every record.
func (m *MemoryRunStore) Close() error {
	m.cache.Flush()
	return nil
}

func sortNewestFirst(records []*orchestration.ExecutionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].RunID < records[j].RunID
		}
		return records[i].StartedAt.After(records[j].StartedAt)
	})
}
