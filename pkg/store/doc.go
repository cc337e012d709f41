// Package store persists workflow execution records.
//
// MemoryRunStore keeps records in process and suits tests and single-node
// use. RedisRunStore shares them across processes; records expire after the
// configured TTL and the start-time index is pruned lazily on ListRuns.
//
// Both implement orchestration.RunRecorder, so a store can be handed straight
// to the executor:
//
//	runs := store.NewMemoryRunStore(time.Hour)
//	exec := orchestration.NewWorkflowExecutor(reg, orchestration.WithRunRecorder(runs))
package store
