// Package common provides shared types and utilities for server implementations.
package common

// StatusProvider supplies runtime status for heartbeat events.
// Implemented by the application composition root.
type StatusProvider interface {
	// GetAgentStatus returns the daemon-wide agent status ("idle" or
	// "busy" when any tracked workspace has a busy agent).
	GetAgentStatus() string

	// GetUptimeSeconds returns the daemon uptime in seconds.
	GetUptimeSeconds() int64
}

// Sender is an interface for sending raw bytes.
type Sender interface {
	// SendRaw sends raw bytes to the client.
	SendRaw(data []byte) error
}

// Closer is an interface for closable resources.
type Closer interface {
	// Close closes the resource.
	Close() error

	// Done returns a channel that's closed when the resource is closed.
	Done() <-chan struct{}
}

// Client combines common client capabilities.
type Client interface {
	// ID returns the unique client identifier.
	ID() string

	Sender
	Closer
}
