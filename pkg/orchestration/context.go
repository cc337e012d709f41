package orchestration

import "sync"

// InputKey holds the run's input data in a RunContext.
const InputKey = "input_data"

// PhaseResultKey is the RunContext key under which a completed phase's
// *PhaseResult is stored.
func PhaseResultKey(phase string) string {
	return "phase_" + phase + "_result"
}

// RunContext is the shared state of one workflow run. Phases in the same
// level may touch it concurrently.
type RunContext struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewRunContext seeds a context with caller entries and then input under
// InputKey, so input wins a key clash.
func NewRunContext(input interface{}, extra map[string]interface{}) *RunContext {
	values := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		values[k] = v
	}
	values[InputKey] = input
	return &RunContext{values: values}
}

// Get returns the value stored under key.
func (c *RunContext) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key.
func (c *RunContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Input returns the run's input data.
func (c *RunContext) Input() interface{} {
	v, _ := c.Get(InputKey)
	return v
}

// PhaseResult returns the result of an earlier, completed phase.
func (c *RunContext) PhaseResult(phase string) (*PhaseResult, bool) {
	v, ok := c.Get(PhaseResultKey(phase))
	if !ok {
		return nil, false
	}
	r, ok := v.(*PhaseResult)
	return r, ok
}

// Snapshot returns a shallow copy of every entry.
func (c *RunContext) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
