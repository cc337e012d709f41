package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/itsneelabh/capflow/pkg/orchestration"
	"github.com/itsneelabh/capflow/pkg/registry"
)

// Kind selects a builtin component implementation.
type Kind string

const (
	// KindPassthrough echoes its input, parameters and the phases it follows.
	KindPassthrough Kind = "passthrough"
	// KindStatic returns the "value" parameter.
	KindStatic Kind = "static"
	// KindFail returns an error carrying the "message" parameter.
	KindFail Kind = "fail"
	// KindSleep waits for the "duration" parameter, then echoes its input.
	KindSleep Kind = "sleep"
	// KindCollect gathers the outputs of every completed phase so far.
	KindCollect Kind = "collect"
)

// Kinds lists the builtin kinds.
func Kinds() []Kind {
	return []Kind{KindPassthrough, KindStatic, KindFail, KindSleep, KindCollect}
}

// Valid reports whether k names a builtin.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Factory returns the registry factory for k. The factory runs once per phase
// with the merged parameters.
func (k Kind) Factory() registry.Factory {
	switch k {
	case KindStatic:
		return func(params map[string]interface{}) (interface{}, error) {
			value := params["value"]
			return orchestration.ComponentFunc(func(ctx context.Context, inv orchestration.Invocation) (interface{}, error) {
				return value, nil
			}), nil
		}

	case KindFail:
		return func(params map[string]interface{}) (interface{}, error) {
			msg, _ := params["message"].(string)
			if msg == "" {
				msg = "component failed"
			}
			return orchestration.ComponentFunc(func(ctx context.Context, inv orchestration.Invocation) (interface{}, error) {
				return nil, errors.New(msg)
			}), nil
		}

	case KindSleep:
		return func(params map[string]interface{}) (interface{}, error) {
			d, err := durationParam(params, "duration")
			if err != nil {
				return nil, err
			}
			return orchestration.ComponentFunc(func(ctx context.Context, inv orchestration.Invocation) (interface{}, error) {
				timer := time.NewTimer(d)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-timer.C:
					return inv.Input, nil
				}
			}), nil
		}

	case KindCollect:
		return func(map[string]interface{}) (interface{}, error) {
			return orchestration.ComponentFunc(collect), nil
		}

	default:
		return func(map[string]interface{}) (interface{}, error) {
			return orchestration.ComponentFunc(passthrough), nil
		}
	}
}

func passthrough(ctx context.Context, inv orchestration.Invocation) (interface{}, error) {
	return map[string]interface{}{
		"component":  inv.Registration.Name,
		"phase":      inv.Phase.Name,
		"capability": inv.Phase.Capability,
		"input":      inv.Input,
		"parameters": inv.Parameters,
		"after":      completedPhases(inv.Context),
	}, nil
}

func collect(ctx context.Context, inv orchestration.Invocation) (interface{}, error) {
	outputs := make(map[string]interface{})
	for _, name := range completedPhases(inv.Context) {
		if r, ok := inv.Context.PhaseResult(name); ok {
			outputs[name] = r.Output
		}
	}
	return outputs, nil
}

// completedPhases lists the phases with a stored result, sorted.
func completedPhases(rc *orchestration.RunContext) []string {
	names := []string{}
	if rc == nil {
		return names
	}
	for key := range rc.Snapshot() {
		if strings.HasPrefix(key, "phase_") && strings.HasSuffix(key, "_result") {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(key, "phase_"), "_result"))
		}
	}
	sort.Strings(names)
	return names
}

func durationParam(params map[string]interface{}, key string) (time.Duration, error) {
	switch v := params[key].(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("parameter %s: unsupported duration %v", key, v)
	}
}
