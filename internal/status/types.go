// Package status derives per-workspace agent activity from each
// backend's session list and push-event stream.
package status

// SessionKind classifies a tracked root session's activity.
type SessionKind string

const (
	// SessionIdle marks a session awaiting input.
	SessionIdle SessionKind = "idle"
	// SessionBusy marks a session actively working. The backend's
	// transient retry state counts as busy.
	SessionBusy SessionKind = "busy"
)

// AgentStatus is the aggregate activity level for one workspace.
type AgentStatus string

const (
	// StatusNone means no server connection exists for the workspace.
	StatusNone AgentStatus = "none"
	StatusIdle AgentStatus = "idle"
	StatusBusy AgentStatus = "busy"
)

// Counts breaks an aggregate down by root-session kind.
type Counts struct {
	Idle int `json:"idle"`
	Busy int `json:"busy"`
}

// WorkspaceStatus is the derived activity state for one workspace.
type WorkspaceStatus struct {
	WorkspacePath string      `json:"workspace_path"`
	Status        AgentStatus `json:"status"`
	Counts        Counts      `json:"counts"`
}

// deriveStatus computes the aggregate for a set of root sessions. A
// connected workspace with no sessions counts as one idle unit, never
// zero.
func deriveStatus(workspacePath string, roots map[string]SessionKind) WorkspaceStatus {
	st := WorkspaceStatus{WorkspacePath: workspacePath}
	if len(roots) == 0 {
		st.Status = StatusIdle
		st.Counts.Idle = 1
		return st
	}
	for _, kind := range roots {
		if kind == SessionBusy {
			st.Counts.Busy++
		} else {
			st.Counts.Idle++
		}
	}
	if st.Counts.Busy > 0 {
		st.Status = StatusBusy
	} else {
		st.Status = StatusIdle
	}
	return st
}

// kindFromWire maps a backend status string onto a session kind.
func kindFromWire(s string) (SessionKind, bool) {
	switch s {
	case "idle":
		return SessionIdle, true
	case "busy", "retry":
		return SessionBusy, true
	default:
		return "", false
	}
}

// Wire shapes pushed by the backend event stream.
const (
	wireSessionCreated = "session.created"
	wireSessionStatus  = "session.status"
	wireSessionDeleted = "session.deleted"
)

// WireSession is the session object carried by stream events and the
// backend's session list endpoint.
type WireSession struct {
	ID       string `json:"id"`
	ParentID string `json:"parentID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// StreamEvent is one JSON frame from the backend event stream.
type StreamEvent struct {
	Type    string       `json:"type"`
	Session *WireSession `json:"session"`
}
