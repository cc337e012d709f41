package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is().
// Packages wrap them with FrameworkError or fmt.Errorf to add context.
var (
	// Registry errors
	ErrDuplicateName        = errors.New("component name already registered")
	ErrInvalidRegistration  = errors.New("invalid component registration")
	ErrComponentNotFound    = errors.New("component not found")
	ErrCapabilityNotFound   = errors.New("capability not found")
	ErrInstantiationFailed  = errors.New("component instantiation failed")
	ErrUnsupportedComponent = errors.New("component does not support invocation")

	// Discovery errors
	ErrDuplicateProvider    = errors.New("provider already registered")
	ErrProviderNotFound     = errors.New("provider not found")
	ErrDiscoveryUnavailable = errors.New("discovery backend unavailable")

	// Workflow errors
	ErrInvalidWorkflow  = errors.New("invalid workflow definition")
	ErrCyclicWorkflow   = errors.New("workflow dependencies contain a cycle")
	ErrWorkflowNotFound = errors.New("workflow not found")

	// Execution errors
	ErrPhaseTimeout  = errors.New("phase timeout")
	ErrNoInvoker     = errors.New("no invoker for component type")
	ErrPhasePanicked = errors.New("phase panicked")
	ErrRunNotFound   = errors.New("run not found")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Backend errors
	ErrConnectionFailed = errors.New("connection failed")
)

// FrameworkError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type FrameworkError struct {
	Op      string // Operation that failed (e.g., "registry.Register")
	Kind    string // Error kind (e.g., "registry", "workflow", "config")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *FrameworkError) Error() string {
	if e.Op != "" && e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *FrameworkError) Unwrap() error {
	return e.Err
}

// NewFrameworkError creates a new FrameworkError
func NewFrameworkError(op, kind string, err error) *FrameworkError {
	return &FrameworkError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrComponentNotFound) ||
		errors.Is(err, ErrCapabilityNotFound) ||
		errors.Is(err, ErrProviderNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrRunNotFound)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsRetryable reports transient backend failures. Phase failures are never
// retried by the executor; this is for callers talking to Redis.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDiscoveryUnavailable) ||
		errors.Is(err, ErrConnectionFailed)
}
