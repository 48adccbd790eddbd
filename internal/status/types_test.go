package status

import (
	"encoding/json"
	"testing"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		roots map[string]SessionKind
		want  WorkspaceStatus
	}{
		{
			name:  "no sessions reports one idle unit",
			roots: nil,
			want:  WorkspaceStatus{WorkspacePath: "/w/a", Status: StatusIdle, Counts: Counts{Idle: 1}},
		},
		{
			name:  "empty map reports one idle unit",
			roots: map[string]SessionKind{},
			want:  WorkspaceStatus{WorkspacePath: "/w/a", Status: StatusIdle, Counts: Counts{Idle: 1}},
		},
		{
			name:  "all idle",
			roots: map[string]SessionKind{"s1": SessionIdle, "s2": SessionIdle},
			want:  WorkspaceStatus{WorkspacePath: "/w/a", Status: StatusIdle, Counts: Counts{Idle: 2}},
		},
		{
			name:  "one busy dominates",
			roots: map[string]SessionKind{"s1": SessionIdle, "s2": SessionBusy},
			want:  WorkspaceStatus{WorkspacePath: "/w/a", Status: StatusBusy, Counts: Counts{Idle: 1, Busy: 1}},
		},
		{
			name:  "all busy",
			roots: map[string]SessionKind{"s1": SessionBusy, "s2": SessionBusy, "s3": SessionBusy},
			want:  WorkspaceStatus{WorkspacePath: "/w/a", Status: StatusBusy, Counts: Counts{Busy: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveStatus("/w/a", tt.roots); got != tt.want {
				t.Errorf("deriveStatus() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestKindFromWire(t *testing.T) {
	tests := []struct {
		in     string
		want   SessionKind
		wantOK bool
	}{
		{"idle", SessionIdle, true},
		{"busy", SessionBusy, true},
		{"retry", SessionBusy, true},
		{"deleted", "", false},
		{"", "", false},
		{"unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := kindFromWire(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("kindFromWire(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStreamEvent_Unmarshal(t *testing.T) {
	raw := `{"type":"session.status","session":{"id":"ses_1","parentID":"ses_0","status":"busy"}}`

	var ev StreamEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ev.Type != wireSessionStatus {
		t.Errorf("Type = %q, want %q", ev.Type, wireSessionStatus)
	}
	if ev.Session == nil {
		t.Fatal("Session = nil")
	}
	if ev.Session.ID != "ses_1" || ev.Session.ParentID != "ses_0" || ev.Session.Status != "busy" {
		t.Errorf("Session = %+v", ev.Session)
	}
}

func TestStreamEvent_Unmarshal_NoSession(t *testing.T) {
	var ev StreamEvent
	if err := json.Unmarshal([]byte(`{"type":"server.heartbeat"}`), &ev); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ev.Session != nil {
		t.Errorf("Session = %+v, want nil", ev.Session)
	}
}
