package events

// --- Server Lifecycle Event Payloads ---

// ServerStartedPayload represents the payload for server_started events.
type ServerStartedPayload struct {
	WorkspacePath string `json:"workspace_path"`
	Port          int    `json:"port"`
	PID           int    `json:"pid,omitempty"`
}

// NewServerStartedEvent creates a new server_started event.
func NewServerStartedEvent(workspacePath string, port, pid int) *BaseEvent {
	return NewWorkspaceEvent(EventTypeServerStarted, workspacePath, ServerStartedPayload{
		WorkspacePath: workspacePath,
		Port:          port,
		PID:           pid,
	})
}

// ServerStoppedPayload represents the payload for server_stopped and
// server_exited events.
type ServerStoppedPayload struct {
	WorkspacePath string `json:"workspace_path"`
	Port          int    `json:"port,omitempty"`
	ExitCode      int    `json:"exit_code,omitempty"`
}

// NewServerStoppedEvent creates a new server_stopped event.
func NewServerStoppedEvent(workspacePath string, port int) *BaseEvent {
	return NewWorkspaceEvent(EventTypeServerStopped, workspacePath, ServerStoppedPayload{
		WorkspacePath: workspacePath,
		Port:          port,
	})
}

// NewServerExitedEvent creates a new server_exited event for a process
// that died without a stop request.
func NewServerExitedEvent(workspacePath string, port, exitCode int) *BaseEvent {
	return NewWorkspaceEvent(EventTypeServerExited, workspacePath, ServerStoppedPayload{
		WorkspacePath: workspacePath,
		Port:          port,
		ExitCode:      exitCode,
	})
}

// --- Agent Status Event Payloads ---

// AgentStatusChangedPayload represents the payload for agent_status_changed events.
type AgentStatusChangedPayload struct {
	WorkspacePath string `json:"workspace_path"`
	Status        string `json:"status"` // "none" | "idle" | "busy"
	IdleCount     int    `json:"idle_count"`
	BusyCount     int    `json:"busy_count"`
}

// NewAgentStatusChangedEvent creates a new agent_status_changed event.
func NewAgentStatusChangedEvent(workspacePath, status string, idleCount, busyCount int) *BaseEvent {
	return NewWorkspaceEvent(EventTypeAgentStatusChanged, workspacePath, AgentStatusChangedPayload{
		WorkspacePath: workspacePath,
		Status:        status,
		IdleCount:     idleCount,
		BusyCount:     busyCount,
	})
}

// --- Registry Event Payloads ---

// RegistryCleanedPayload represents the payload for registry_cleaned events.
type RegistryCleanedPayload struct {
	Removed []string `json:"removed"`
	Kept    int      `json:"kept"`
}

// NewRegistryCleanedEvent creates a new registry_cleaned event.
func NewRegistryCleanedEvent(removed []string, kept int) *BaseEvent {
	if removed == nil {
		removed = []string{}
	}
	return NewEvent(EventTypeRegistryCleaned, RegistryCleanedPayload{
		Removed: removed,
		Kept:    kept,
	})
}

// --- Heartbeat Event Payloads ---

// HeartbeatPayload represents the payload for heartbeat events.
type HeartbeatPayload struct {
	Seq           int64  `json:"seq"`
	AgentStatus   string `json:"agent_status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// NewHeartbeatEvent creates a new heartbeat event.
func NewHeartbeatEvent(seq int64, agentStatus string, uptimeSeconds int64) *BaseEvent {
	return NewEvent(EventTypeHeartbeat, HeartbeatPayload{
		Seq:           seq,
		AgentStatus:   agentStatus,
		UptimeSeconds: uptimeSeconds,
	})
}
