// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrHubNotRunning    = errors.New("event hub is not running")
	ErrSubscriberClosed = errors.New("subscriber is closed")
	ErrHealthTimeout    = errors.New("health check timed out")
	ErrNoFreePort       = errors.New("no free port available")
	ErrStreamDisposed   = errors.New("event stream is disposed")
)

// SpawnError represents a failure to launch or run a workspace server
// process. It carries the raw OS error text from the exec layer.
type SpawnError struct {
	Command string // Binary that failed to spawn
	Err     error  // Underlying error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NewSpawnError creates a new SpawnError.
func NewSpawnError(command string, err error) *SpawnError {
	return &SpawnError{
		Command: command,
		Err:     err,
	}
}

// StartError represents a failed server start for a workspace, wrapping
// the phase that failed (spawn, health) and the underlying cause.
type StartError struct {
	WorkspacePath string
	Phase         string // "spawn" or "health"
	Err           error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start server for %s: %s: %v", e.WorkspacePath, e.Phase, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// NewStartError creates a new StartError.
func NewStartError(workspacePath, phase string, err error) *StartError {
	return &StartError{
		WorkspacePath: workspacePath,
		Phase:         phase,
		Err:           err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
