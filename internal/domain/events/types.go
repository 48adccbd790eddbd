// Package events defines all event types used in workspaced.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Server lifecycle events
	EventTypeServerStarted EventType = "server_started"
	EventTypeServerStopped EventType = "server_stopped"
	EventTypeServerExited  EventType = "server_exited" // process died outside a stop request

	// Agent status events
	EventTypeAgentStatusChanged EventType = "agent_status_changed"

	// Registry events
	EventTypeRegistryCleaned EventType = "registry_cleaned"

	// Connection events
	EventTypeHeartbeat EventType = "heartbeat"

	// Response events
	EventTypeError EventType = "error"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetWorkspacePath returns the workspace path (may be empty for global events).
	GetWorkspacePath() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType     EventType   `json:"event"`
	EventTime     time.Time   `json:"timestamp"`
	WorkspacePath string      `json:"workspace_path,omitempty"`
	Payload       interface{} `json:"payload"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetWorkspacePath returns the workspace path.
func (e *BaseEvent) GetWorkspacePath() string {
	return e.WorkspacePath
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewWorkspaceEvent creates a new event scoped to a workspace path.
func NewWorkspaceEvent(eventType EventType, workspacePath string, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType:     eventType,
		EventTime:     time.Now().UTC(),
		WorkspacePath: workspacePath,
		Payload:       payload,
	}
}
