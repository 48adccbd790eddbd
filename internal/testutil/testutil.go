// Package testutil provides shared test utilities and mocks for workspaced tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/brianly1003/workspaced/internal/domain/events"
	"github.com/brianly1003/workspaced/internal/domain/ports"
)

// MockSubscriber implements ports.Subscriber for testing.
type MockSubscriber struct {
	id       string
	events   []events.Event
	mu       sync.Mutex
	closed   bool
	sendErr  error
	sendFunc func(events.Event) error
	done     chan struct{}
}

// NewMockSubscriber creates a new mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:     id,
		events: make([]events.Event, 0),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Send records the event and returns any configured error.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendFunc != nil {
		return m.sendFunc(e)
	}

	if m.sendErr != nil {
		return m.sendErr
	}

	m.events = append(m.events, e)
	return nil
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventCount returns the number of received events.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// IsClosed returns whether the subscriber was closed.
func (m *MockSubscriber) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetSendError configures an error to return on Send.
func (m *MockSubscriber) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetSendFunc sets a custom function for Send behavior.
func (m *MockSubscriber) SetSendFunc(fn func(events.Event) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendFunc = fn
}

// ClearEvents removes all recorded events.
func (m *MockSubscriber) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
}

// Ensure MockSubscriber implements ports.Subscriber.
var _ ports.Subscriber = (*MockSubscriber)(nil)

// MockEventHub implements ports.EventHub for testing.
type MockEventHub struct {
	events      []events.Event
	subscribers []ports.Subscriber
	mu          sync.Mutex
	started     bool
	stopped     bool
}

// NewMockEventHub creates a new mock event hub.
func NewMockEventHub() *MockEventHub {
	return &MockEventHub{
		events:      make([]events.Event, 0),
		subscribers: make([]ports.Subscriber, 0),
	}
}

// Start marks the hub as started.
func (m *MockEventHub) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

// Stop marks the hub as stopped.
func (m *MockEventHub) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// Publish records the event.
func (m *MockEventHub) Publish(e events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Subscribe records the subscriber.
func (m *MockEventHub) Subscribe(sub ports.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, sub)
}

// Unsubscribe removes a subscriber by ID.
func (m *MockEventHub) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subscribers {
		if sub.ID() == id {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of subscribers.
func (m *MockEventHub) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// IsRunning returns true if the hub was started and not stopped.
func (m *MockEventHub) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

// PublishedEvents returns all published events.
func (m *MockEventHub) PublishedEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// Ensure MockEventHub implements ports.EventHub.
var _ ports.EventHub = (*MockEventHub)(nil)

// MockProcessHandle implements ports.ProcessHandle for testing. The
// process "runs" until Exit, Terminate, or Kill resolves it.
type MockProcessHandle struct {
	mu         sync.Mutex
	pid        int
	exited     bool
	result     ports.ExitResult
	done       chan struct{}
	terminates int
	kills      int
	ignoreTerm bool
}

// NewMockProcessHandle creates a handle for a running mock process.
func NewMockProcessHandle(pid int) *MockProcessHandle {
	return &MockProcessHandle{
		pid:  pid,
		done: make(chan struct{}),
	}
}

// FailedMockProcessHandle creates a handle whose spawn already failed
// with the given error.
func FailedMockProcessHandle(err error) *MockProcessHandle {
	h := &MockProcessHandle{
		done: make(chan struct{}),
	}
	h.exited = true
	h.result = ports.ExitResult{Exited: true, Code: -1, Err: err}
	close(h.done)
	return h
}

// PID returns the mock process id.
func (m *MockProcessHandle) PID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pid
}

// Running reports whether the mock process is still alive.
func (m *MockProcessHandle) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pid != 0 && !m.exited
}

// Terminate simulates the graceful stop signal. When configured to
// ignore it, the call is counted but the process stays alive.
func (m *MockProcessHandle) Terminate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exited {
		return false
	}
	m.terminates++
	if m.ignoreTerm {
		return true
	}
	m.exitLocked(ports.ExitResult{Exited: true, Code: 0, Signal: "terminated"})
	return true
}

// Kill simulates the forceful kill signal.
func (m *MockProcessHandle) Kill() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exited {
		return false
	}
	m.kills++
	m.exitLocked(ports.ExitResult{Exited: true, Code: -1, Signal: "killed"})
	return true
}

// Wait blocks until the process exits or ctx is done.
func (m *MockProcessHandle) Wait(ctx context.Context) ports.ExitResult {
	select {
	case <-m.done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.result
	case <-ctx.Done():
		return ports.ExitResult{Exited: false}
	}
}

// Done returns a channel closed once the process has exited.
func (m *MockProcessHandle) Done() <-chan struct{} {
	return m.done
}

// Exit simulates the process terminating on its own with the given
// exit code.
func (m *MockProcessHandle) Exit(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exited {
		return
	}
	m.exitLocked(ports.ExitResult{Exited: true, Code: code})
}

// ExitWithError simulates the process terminating with an error.
func (m *MockProcessHandle) ExitWithError(code int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exited {
		return
	}
	m.exitLocked(ports.ExitResult{Exited: true, Code: code, Err: err})
}

func (m *MockProcessHandle) exitLocked(result ports.ExitResult) {
	m.exited = true
	m.result = result
	close(m.done)
}

// SetIgnoreTerminate makes the mock process survive Terminate, so
// callers must escalate to Kill.
func (m *MockProcessHandle) SetIgnoreTerminate(ignore bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignoreTerm = ignore
}

// TerminateCount returns how many times Terminate was called.
func (m *MockProcessHandle) TerminateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminates
}

// KillCount returns how many times Kill was called.
func (m *MockProcessHandle) KillCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kills
}

// Ensure MockProcessHandle implements ports.ProcessHandle.
var _ ports.ProcessHandle = (*MockProcessHandle)(nil)

// RunCall records one Run invocation on a MockProcessRunner.
type RunCall struct {
	Command string
	Args    []string
	Opts    ports.RunOptions
}

// MockProcessRunner implements ports.ProcessRunner for testing. Each
// Run returns a fresh MockProcessHandle unless a custom run function
// is set.
type MockProcessRunner struct {
	mu      sync.Mutex
	calls   []RunCall
	handles []*MockProcessHandle
	nextPID int
	runFunc func(command string, args []string, opts ports.RunOptions) ports.ProcessHandle
}

// NewMockProcessRunner creates a new mock process runner.
func NewMockProcessRunner() *MockProcessRunner {
	return &MockProcessRunner{nextPID: 1000}
}

// Run records the call and returns a handle.
func (m *MockProcessRunner) Run(command string, args []string, opts ports.RunOptions) ports.ProcessHandle {
	m.mu.Lock()
	m.calls = append(m.calls, RunCall{Command: command, Args: append([]string{}, args...), Opts: opts})
	fn := m.runFunc
	if fn != nil {
		m.mu.Unlock()
		return fn(command, args, opts)
	}
	m.nextPID++
	h := NewMockProcessHandle(m.nextPID)
	m.handles = append(m.handles, h)
	m.mu.Unlock()
	return h
}

// SetRunFunc sets a custom function for Run behavior.
func (m *MockProcessRunner) SetRunFunc(fn func(command string, args []string, opts ports.RunOptions) ports.ProcessHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runFunc = fn
}

// Calls returns all recorded Run invocations.
func (m *MockProcessRunner) Calls() []RunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]RunCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Run invocations.
func (m *MockProcessRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Handles returns every handle Run has created.
func (m *MockProcessRunner) Handles() []*MockProcessHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*MockProcessHandle, len(m.handles))
	copy(result, m.handles)
	return result
}

// LastHandle returns the most recently created handle, or nil.
func (m *MockProcessRunner) LastHandle() *MockProcessHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

// Ensure MockProcessRunner implements ports.ProcessRunner.
var _ ports.ProcessRunner = (*MockProcessRunner)(nil)

// AssertEqual is a simple equality assertion helper.
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertTrue asserts that a condition is true.
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("%s: expected true, got false", msg)
	}
}

// AssertFalse asserts that a condition is false.
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("%s: expected false, got true", msg)
	}
}

// AssertNil asserts that a value is nil.
func AssertNil(t *testing.T, value interface{}, msg string) {
	t.Helper()
	if value != nil {
		t.Errorf("%s: expected nil, got %v", msg, value)
	}
}

// AssertNotNil asserts that a value is not nil.
func AssertNotNil(t *testing.T, value interface{}, msg string) {
	t.Helper()
	if value == nil {
		t.Errorf("%s: expected non-nil value", msg)
	}
}

// AssertNoError asserts that an error is nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError asserts that an error is not nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertContains checks if a string contains a substring.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if len(substr) == 0 {
		return
	}
	if len(s) < len(substr) {
		t.Errorf("%s: string %q does not contain %q", msg, s, substr)
		return
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return
		}
	}
	t.Errorf("%s: string %q does not contain %q", msg, s, substr)
}
