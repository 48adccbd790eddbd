package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianly1003/workspaced/internal/domain/events"
	"github.com/brianly1003/workspaced/internal/domain/ports"
)

// --- MockSubscriber Tests ---

func TestNewMockSubscriber(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	if sub.ID() != "test-sub" {
		t.Errorf("expected ID test-sub, got %s", sub.ID())
	}
	if sub.EventCount() != 0 {
		t.Errorf("expected 0 events, got %d", sub.EventCount())
	}
	if sub.IsClosed() {
		t.Error("expected subscriber to not be closed initially")
	}
}

func TestMockSubscriber_Send(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	event := events.NewEvent(events.EventTypeHeartbeat, nil)
	err := sub.Send(event)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if sub.EventCount() != 1 {
		t.Errorf("expected 1 event, got %d", sub.EventCount())
	}

	evts := sub.Events()
	if len(evts) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evts))
	}
	if evts[0].Type() != events.EventTypeHeartbeat {
		t.Errorf("expected heartbeat event, got %s", evts[0].Type())
	}
}

func TestMockSubscriber_SendWithError(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	expectedErr := errors.New("send failed")
	sub.SetSendError(expectedErr)

	event := events.NewEvent(events.EventTypeHeartbeat, nil)
	err := sub.Send(event)

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	// Event should not be recorded when error occurs
	if sub.EventCount() != 0 {
		t.Errorf("expected 0 events when error, got %d", sub.EventCount())
	}
}

func TestMockSubscriber_SendWithCustomFunc(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	callCount := 0
	sub.SetSendFunc(func(e events.Event) error {
		callCount++
		return nil
	})

	event := events.NewEvent(events.EventTypeHeartbeat, nil)
	sub.Send(event)
	sub.Send(event)

	if callCount != 2 {
		t.Errorf("expected sendFunc called 2 times, got %d", callCount)
	}
}

func TestMockSubscriber_Close(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	err := sub.Close()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !sub.IsClosed() {
		t.Error("expected subscriber to be closed")
	}

	// Second close should be safe
	err = sub.Close()
	if err != nil {
		t.Errorf("unexpected error on second close: %v", err)
	}
}

func TestMockSubscriber_Done(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	// Done channel should be open initially
	select {
	case <-sub.Done():
		t.Error("Done channel should not be closed initially")
	default:
		// Expected
	}

	sub.Close()

	// Done channel should be closed after Close()
	select {
	case <-sub.Done():
		// Expected
	default:
		t.Error("Done channel should be closed after Close()")
	}
}

func TestMockSubscriber_ClearEvents(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	event := events.NewEvent(events.EventTypeHeartbeat, nil)
	sub.Send(event)
	sub.Send(event)
	sub.Send(event)

	if sub.EventCount() != 3 {
		t.Fatalf("expected 3 events, got %d", sub.EventCount())
	}

	sub.ClearEvents()

	if sub.EventCount() != 0 {
		t.Errorf("expected 0 events after clear, got %d", sub.EventCount())
	}
}

// --- MockEventHub Tests ---

func TestNewMockEventHub(t *testing.T) {
	hub := NewMockEventHub()

	if hub.IsRunning() {
		t.Error("hub should not be running initially")
	}
	if hub.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestMockEventHub_StartStop(t *testing.T) {
	hub := NewMockEventHub()

	err := hub.Start()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !hub.IsRunning() {
		t.Error("hub should be running after Start()")
	}

	err = hub.Stop()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if hub.IsRunning() {
		t.Error("hub should not be running after Stop()")
	}
}

func TestMockEventHub_Publish(t *testing.T) {
	hub := NewMockEventHub()

	event1 := events.NewEvent(events.EventTypeHeartbeat, nil)
	event2 := events.NewServerStartedEvent("/workspace/a", 4201, 321)

	hub.Publish(event1)
	hub.Publish(event2)

	evts := hub.PublishedEvents()
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type() != events.EventTypeHeartbeat {
		t.Errorf("expected heartbeat, got %s", evts[0].Type())
	}
	if evts[1].Type() != events.EventTypeServerStarted {
		t.Errorf("expected server_started, got %s", evts[1].Type())
	}
}

func TestMockEventHub_Subscribe(t *testing.T) {
	hub := NewMockEventHub()
	sub := NewMockSubscriber("sub-1")

	hub.Subscribe(sub)

	if hub.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}
}

func TestMockEventHub_Unsubscribe(t *testing.T) {
	hub := NewMockEventHub()
	sub1 := NewMockSubscriber("sub-1")
	sub2 := NewMockSubscriber("sub-2")

	hub.Subscribe(sub1)
	hub.Subscribe(sub2)

	if hub.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", hub.SubscriberCount())
	}

	hub.Unsubscribe("sub-1")

	if hub.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber after unsubscribe, got %d", hub.SubscriberCount())
	}

	// Unsubscribe non-existent should be safe
	hub.Unsubscribe("non-existent")
	if hub.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber after unsubscribe non-existent, got %d", hub.SubscriberCount())
	}
}

// --- MockProcessHandle Tests ---

func TestMockProcessHandle_Lifecycle(t *testing.T) {
	h := NewMockProcessHandle(4242)

	if h.PID() != 4242 {
		t.Errorf("PID() = %d, want 4242", h.PID())
	}
	if !h.Running() {
		t.Error("expected handle to be running initially")
	}
	select {
	case <-h.Done():
		t.Error("Done channel should not be closed while running")
	default:
	}

	h.Exit(3)

	if h.Running() {
		t.Error("expected handle to stop running after Exit")
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Exit")
	}

	res := h.Wait(context.Background())
	if !res.Exited {
		t.Error("Wait should report Exited after Exit")
	}
	if res.Code != 3 {
		t.Errorf("Wait Code = %d, want 3", res.Code)
	}
}

func TestMockProcessHandle_Terminate(t *testing.T) {
	h := NewMockProcessHandle(1)

	if !h.Terminate() {
		t.Error("Terminate on running process should return true")
	}
	if h.TerminateCount() != 1 {
		t.Errorf("TerminateCount() = %d, want 1", h.TerminateCount())
	}

	res := h.Wait(context.Background())
	if !res.Exited || res.Signal != "terminated" {
		t.Errorf("Wait after Terminate = %+v, want exited with signal terminated", res)
	}

	// A second signal against a dead process is a no-op
	if h.Terminate() {
		t.Error("Terminate on exited process should return false")
	}
	if h.Kill() {
		t.Error("Kill on exited process should return false")
	}
}

func TestMockProcessHandle_IgnoreTerminate(t *testing.T) {
	h := NewMockProcessHandle(1)
	h.SetIgnoreTerminate(true)

	if !h.Terminate() {
		t.Error("Terminate should return true even when ignored")
	}
	if !h.Running() {
		t.Error("process should survive an ignored Terminate")
	}

	if !h.Kill() {
		t.Error("Kill should succeed on a running process")
	}
	res := h.Wait(context.Background())
	if !res.Exited || res.Signal != "killed" || res.Code != -1 {
		t.Errorf("Wait after Kill = %+v, want killed with code -1", res)
	}
}

func TestMockProcessHandle_WaitTimeout(t *testing.T) {
	h := NewMockProcessHandle(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := h.Wait(ctx)
	if res.Exited {
		t.Error("bounded Wait on a running process should report Exited=false")
	}
}

func TestFailedMockProcessHandle(t *testing.T) {
	spawnErr := errors.New("executable not found")
	h := FailedMockProcessHandle(spawnErr)

	if h.PID() != 0 {
		t.Errorf("PID() = %d, want 0 for failed spawn", h.PID())
	}
	if h.Running() {
		t.Error("failed spawn should not be running")
	}

	res := h.Wait(context.Background())
	if !res.Exited {
		t.Error("Wait should resolve immediately for failed spawn")
	}
	if !errors.Is(res.Err, spawnErr) {
		t.Errorf("Wait Err = %v, want %v", res.Err, spawnErr)
	}
}

// --- MockProcessRunner Tests ---

func TestMockProcessRunner_Run(t *testing.T) {
	runner := NewMockProcessRunner()

	h1 := runner.Run("backend", []string{"serve", "--port", "4201"}, ports.RunOptions{Dir: "/workspace/a"})
	h2 := runner.Run("backend", []string{"serve", "--port", "4202"}, ports.RunOptions{Dir: "/workspace/b"})

	if runner.CallCount() != 2 {
		t.Fatalf("CallCount() = %d, want 2", runner.CallCount())
	}

	calls := runner.Calls()
	if calls[0].Command != "backend" {
		t.Errorf("calls[0].Command = %q, want backend", calls[0].Command)
	}
	if calls[1].Opts.Dir != "/workspace/b" {
		t.Errorf("calls[1].Opts.Dir = %q, want /workspace/b", calls[1].Opts.Dir)
	}

	if h1.PID() == h2.PID() {
		t.Errorf("handles should get distinct PIDs, both %d", h1.PID())
	}
	if got := runner.LastHandle(); got == nil || got.PID() != h2.PID() {
		t.Errorf("LastHandle() should be the second handle")
	}
	if len(runner.Handles()) != 2 {
		t.Errorf("Handles() length = %d, want 2", len(runner.Handles()))
	}
}

func TestMockProcessRunner_RunFunc(t *testing.T) {
	runner := NewMockProcessRunner()
	spawnErr := errors.New("no such file")
	runner.SetRunFunc(func(command string, args []string, opts ports.RunOptions) ports.ProcessHandle {
		return FailedMockProcessHandle(spawnErr)
	})

	h := runner.Run("missing", nil, ports.RunOptions{})

	res := h.Wait(context.Background())
	if !errors.Is(res.Err, spawnErr) {
		t.Errorf("Wait Err = %v, want %v", res.Err, spawnErr)
	}
	if runner.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", runner.CallCount())
	}
	// Custom handles are not tracked by Handles()
	if len(runner.Handles()) != 0 {
		t.Errorf("Handles() length = %d, want 0 with custom run func", len(runner.Handles()))
	}
}

// --- Assertion Helper Tests ---

func TestAssertEqual(t *testing.T) {
	mockT := &testing.T{}
	AssertEqual(mockT, 5, 5, "should be equal")
	if mockT.Failed() {
		t.Error("AssertEqual should pass for equal values")
	}
}

func TestAssertTrue(t *testing.T) {
	mockT := &testing.T{}
	AssertTrue(mockT, true, "should be true")
	if mockT.Failed() {
		t.Error("AssertTrue should pass for true condition")
	}
}

func TestAssertFalse(t *testing.T) {
	mockT := &testing.T{}
	AssertFalse(mockT, false, "should be false")
	if mockT.Failed() {
		t.Error("AssertFalse should pass for false condition")
	}
}

func TestAssertNil(t *testing.T) {
	mockT := &testing.T{}
	AssertNil(mockT, nil, "should be nil")
	if mockT.Failed() {
		t.Error("AssertNil should pass for nil value")
	}
}

func TestAssertNotNil(t *testing.T) {
	mockT := &testing.T{}
	AssertNotNil(mockT, "not nil", "should not be nil")
	if mockT.Failed() {
		t.Error("AssertNotNil should pass for non-nil value")
	}
}

func TestAssertNoError(t *testing.T) {
	mockT := &testing.T{}
	AssertNoError(mockT, nil, "should have no error")
	if mockT.Failed() {
		t.Error("AssertNoError should pass for nil error")
	}
}

func TestAssertError(t *testing.T) {
	mockT := &testing.T{}
	AssertError(mockT, errors.New("test error"), "should have error")
	if mockT.Failed() {
		t.Error("AssertError should pass for non-nil error")
	}
}

func TestAssertContains(t *testing.T) {
	mockT := &testing.T{}
	AssertContains(mockT, "hello world", "world", "should contain substring")
	if mockT.Failed() {
		t.Error("AssertContains should pass when substring is found")
	}

	// Empty substring should always pass
	mockT2 := &testing.T{}
	AssertContains(mockT2, "any string", "", "empty substring")
	if mockT2.Failed() {
		t.Error("AssertContains should pass for empty substring")
	}
}
