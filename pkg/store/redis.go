package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/orchestration"
)

// RedisRunStore keeps run records in Redis.
//
// Layout under the namespace:
//
//	<ns>:runs             sorted set of run IDs scored by start time
//	<ns>:runs:<id>        record JSON, expires after the store TTL
type RedisRunStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    logger.Logger
}

// NewRedisRunStore wraps an existing client. A ttl <= 0 uses DefaultRunTTL.
func NewRedisRunStore(client *redis.Client, namespace string, ttl time.Duration, log logger.Logger) *RedisRunStore {
	if namespace == "" {
		namespace = "capflow"
	}
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	return &RedisRunStore{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.OrNoOp(log).With(map[string]interface{}{"component": "run_store"}),
	}
}

// NewRedisRunStoreFromURL connects to redisURL and verifies the connection.
func NewRedisRunStoreFromURL(ctx context.Context, redisURL, namespace string, ttl time.Duration, log logger.Logger) (*RedisRunStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &core.FrameworkError{Op: "store.Connect", Kind: "store", Err: fmt.Errorf("%w: %v", core.ErrConnectionFailed, err)}
	}
	return NewRedisRunStore(client, namespace, ttl, log), nil
}

// SaveRun writes record and indexes it by start time.
func (r *RedisRunStore) SaveRun(ctx context.Context, record *orchestration.ExecutionRecord) error {
	if record == nil || record.RunID == "" {
		return &core.FrameworkError{Op: "store.SaveRun", Kind: "store", Message: "run record has no run ID", Err: core.ErrInvalidConfiguration}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize run record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.runKey(record.RunID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), &redis.Z{
		Score:  float64(record.StartedAt.UnixNano()),
		Member: record.RunID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return &core.FrameworkError{Op: "store.SaveRun", Kind: "store", ID: record.RunID, Err: fmt.Errorf("%w: %v", core.ErrConnectionFailed, err)}
	}

	r.logger.Debug("Saved run record", map[string]interface{}{
		"run_id":   record.RunID,
		"workflow": record.Workflow,
	})
	return nil
}

// GetRun loads the record for runID.
func (r *RedisRunStore) GetRun(ctx context.Context, runID string) (*orchestration.ExecutionRecord, error) {
	data, err := r.client.Get(ctx, r.runKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, &core.FrameworkError{Op: "store.GetRun", Kind: "store", ID: runID, Err: core.ErrRunNotFound}
	}
	if err != nil {
		return nil, &core.FrameworkError{Op: "store.GetRun", Kind: "store", ID: runID, Err: fmt.Errorf("%w: %v", core.ErrConnectionFailed, err)}
	}

	var record orchestration.ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode run record %s: %w", runID, err)
	}
	return &record, nil
}

// ListRuns returns the newest records. Index entries whose record expired are
// pruned as they are found.
func (r *RedisRunStore) ListRuns(ctx context.Context, limit int) ([]*orchestration.ExecutionRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, &core.FrameworkError{Op: "store.ListRuns", Kind: "store", Err: fmt.Errorf("%w: %v", core.ErrConnectionFailed, err)}
	}
	if len(ids) == 0 {
		return []*orchestration.ExecutionRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.runKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &core.FrameworkError{Op: "store.ListRuns", Kind: "store", Err: fmt.Errorf("%w: %v", core.ErrConnectionFailed, err)}
	}

	records := make([]*orchestration.ExecutionRecord, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var record orchestration.ExecutionRecord
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			r.logger.Warn("Skipping undecodable run record", map[string]interface{}{
				"run_id": ids[i],
				"error":  err.Error(),
			})
			continue
		}
		records = append(records, &record)
	}

	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, r.indexKey(), stale...).Err(); err != nil {
			r.logger.Warn("Failed to prune expired run IDs", map[string]interface{}{"error": err.Error()})
		}
	}
	return records, nil
}

// DeleteRun removes a record and its index entry.
func (r *RedisRunStore) DeleteRun(ctx context.Context, runID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.runKey(runID))
	pipe.ZRem(ctx, r.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return &core.FrameworkError{Op: "store.DeleteRun", Kind: "store", ID: runID, Err: fmt.Errorf("%w: %v", core.ErrConnectionFailed, err)}
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisRunStore) Close() error {
	return r.client.Close()
}

func (r *RedisRunStore) indexKey() string {
	return fmt.Sprintf("%s:runs", r.namespace)
}

func (r *RedisRunStore) runKey(runID string) string {
	return fmt.Sprintf("%s:runs:%s", r.namespace, runID)
}
