package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBaseEvent_Type(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
	}{
		{"server_started", EventTypeServerStarted},
		{"server_stopped", EventTypeServerStopped},
		{"server_exited", EventTypeServerExited},
		{"agent_status_changed", EventTypeAgentStatusChanged},
		{"registry_cleaned", EventTypeRegistryCleaned},
		{"heartbeat", EventTypeHeartbeat},
		{"error", EventTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent(tt.eventType, nil)

			if event.Type() != tt.eventType {
				t.Errorf("Type() = %v, want %v", event.Type(), tt.eventType)
			}
		})
	}
}

func TestBaseEvent_Timestamp(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent(EventTypeHeartbeat, nil)
	after := time.Now().UTC()

	ts := event.Timestamp()

	if ts.Before(before) {
		t.Errorf("Timestamp() = %v, should be >= %v", ts, before)
	}
	if ts.After(after) {
		t.Errorf("Timestamp() = %v, should be <= %v", ts, after)
	}
}

func TestBaseEvent_ToJSON(t *testing.T) {
	payload := map[string]string{"key": "value"}
	event := NewEvent(EventTypeServerStarted, payload)

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	// Parse the JSON to verify structure
	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	// Check event type
	if parsed["event"] != string(EventTypeServerStarted) {
		t.Errorf("JSON event = %v, want %v", parsed["event"], EventTypeServerStarted)
	}

	// Check timestamp exists
	if _, ok := parsed["timestamp"]; !ok {
		t.Error("JSON should contain timestamp field")
	}

	// Check payload
	payloadMap, ok := parsed["payload"].(map[string]interface{})
	if !ok {
		t.Fatal("JSON payload should be a map")
	}
	if payloadMap["key"] != "value" {
		t.Errorf("JSON payload.key = %v, want value", payloadMap["key"])
	}
}

func TestNewWorkspaceEvent(t *testing.T) {
	event := NewWorkspaceEvent(EventTypeServerStarted, "/w/a", nil)

	if event == nil {
		t.Fatal("NewWorkspaceEvent() returned nil")
	}
	if event.GetWorkspacePath() != "/w/a" {
		t.Errorf("GetWorkspacePath() = %q, want %q", event.GetWorkspacePath(), "/w/a")
	}
}

func TestEventTypes_Constants(t *testing.T) {
	// Verify all event types are unique
	types := []EventType{
		EventTypeServerStarted,
		EventTypeServerStopped,
		EventTypeServerExited,
		EventTypeAgentStatusChanged,
		EventTypeRegistryCleaned,
		EventTypeHeartbeat,
		EventTypeError,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if seen[et] {
			t.Fatalf("duplicate event type: %s", et)
		}
		seen[et] = true
	}
}

func TestServerStartedPayload_JSON(t *testing.T) {
	event := NewServerStartedEvent("/w/a", 52110, 4242)

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed struct {
		Event         string `json:"event"`
		WorkspacePath string `json:"workspace_path"`
		Payload       struct {
			WorkspacePath string `json:"workspace_path"`
			Port          int    `json:"port"`
			PID           int    `json:"pid"`
		} `json:"payload"`
	}

	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if parsed.Event != string(EventTypeServerStarted) {
		t.Errorf("event = %v, want %v", parsed.Event, EventTypeServerStarted)
	}
	if parsed.WorkspacePath != "/w/a" {
		t.Errorf("workspace_path = %v, want /w/a", parsed.WorkspacePath)
	}
	if parsed.Payload.Port != 52110 {
		t.Errorf("port = %v, want 52110", parsed.Payload.Port)
	}
	if parsed.Payload.PID != 4242 {
		t.Errorf("pid = %v, want 4242", parsed.Payload.PID)
	}
}

func TestAgentStatusChangedPayload_JSON(t *testing.T) {
	event := NewAgentStatusChangedEvent("/w/a", "busy", 1, 2)

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	payloadMap := parsed["payload"].(map[string]interface{})
	if payloadMap["status"] != "busy" {
		t.Errorf("status = %v, want busy", payloadMap["status"])
	}
	if payloadMap["idle_count"] != float64(1) {
		t.Errorf("idle_count = %v, want 1", payloadMap["idle_count"])
	}
	if payloadMap["busy_count"] != float64(2) {
		t.Errorf("busy_count = %v, want 2", payloadMap["busy_count"])
	}
}

func TestNewRegistryCleanedEvent_NilRemoved(t *testing.T) {
	event := NewRegistryCleanedEvent(nil, 3)

	payload, ok := event.Payload.(RegistryCleanedPayload)
	if !ok {
		t.Fatalf("Payload type = %T, want RegistryCleanedPayload", event.Payload)
	}
	if payload.Removed == nil {
		t.Error("Removed should be an empty slice, not nil")
	}
	if payload.Kept != 3 {
		t.Errorf("Kept = %d, want 3", payload.Kept)
	}
}

// Benchmark tests
func BenchmarkNewEvent(b *testing.B) {
	payload := map[string]string{"key": "value"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewEvent(EventTypeServerStarted, payload)
	}
}

func BenchmarkEvent_ToJSON(b *testing.B) {
	event := NewEvent(EventTypeServerStarted, map[string]string{"key": "value"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		event.ToJSON()
	}
}
