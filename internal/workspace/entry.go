package workspace

import (
	"github.com/brianly1003/workspaced/internal/domain/ports"
)

// State represents the lifecycle state of a tracked workspace server.
type State string

const (
	// StateStarting covers the window from port allocation until the
	// readiness probe succeeds.
	StateStarting State = "starting"
	// StateRunning means the server answered its readiness probe and is
	// recorded in the registry.
	StateRunning State = "running"
	// StateStopping means a stop claimed the entry and the process is
	// being torn down.
	StateStopping State = "stopping"
)

// Entry is the manager's in-memory record of one workspace server.
// All mutable fields are guarded by the manager's lock; the channels
// let concurrent starts and stops for the same workspace serialize
// without holding it.
type Entry struct {
	WorkspacePath string
	Port          int
	State         State

	handle ports.ProcessHandle

	// settled closes when a start attempt resolves, successfully or
	// not. A stop arriving mid-start waits on it instead of racing the
	// health check.
	settled chan struct{}

	// stopped closes once a stop has confirmed process exit and
	// released the entry.
	stopped chan struct{}
}

func newEntry(workspacePath string, port int) *Entry {
	return &Entry{
		WorkspacePath: workspacePath,
		Port:          port,
		State:         StateStarting,
		settled:       make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Info is the API-facing view of an entry.
type Info struct {
	WorkspacePath string `json:"workspace_path"`
	Port          int    `json:"port"`
	State         State  `json:"state"`
	PID           int    `json:"pid,omitempty"`
}
