package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/workspaced/internal/domain/ports"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires sh")
	}
}

func TestRunner_Run_Success(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sh", []string{"-c", "exit 0"}, ports.RunOptions{})

	res := h.Wait(context.Background())
	if !res.Exited {
		t.Fatal("Wait() result not Exited")
	}
	if res.Code != 0 {
		t.Errorf("exit code = %d, want 0", res.Code)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
}

func TestRunner_Run_ExitCode(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sh", []string{"-c", "exit 3"}, ports.RunOptions{})

	res := h.Wait(context.Background())
	if !res.Exited {
		t.Fatal("Wait() result not Exited")
	}
	if res.Code != 3 {
		t.Errorf("exit code = %d, want 3", res.Code)
	}
	if res.Err == nil {
		t.Error("Err = nil, want non-nil for non-zero exit")
	}
}

func TestRunner_Run_SpawnFailure(t *testing.T) {
	r := NewRunner()

	h := r.Run("definitely-not-a-real-binary-xyz", nil, ports.RunOptions{})

	// Failure must surface via Wait, not a panic or nil handle
	res := h.Wait(context.Background())
	if !res.Exited {
		t.Fatal("Wait() result not Exited for failed spawn")
	}
	if res.Err == nil {
		t.Fatal("Err = nil, want OS error for missing binary")
	}
	if res.Code != -1 {
		t.Errorf("exit code = %d, want -1", res.Code)
	}
	if h.PID() != 0 {
		t.Errorf("PID() = %d, want 0 for never-started process", h.PID())
	}
	if h.Running() {
		t.Error("Running() = true for never-started process")
	}
	if h.Terminate() {
		t.Error("Terminate() = true for never-started process")
	}
	if h.Kill() {
		t.Error("Kill() = true for never-started process")
	}
}

func TestHandle_WaitTimeout(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sleep", []string{"30"}, ports.RunOptions{})
	defer h.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := h.Wait(ctx)
	if res.Exited {
		t.Fatal("Wait() with short timeout reported Exited for a running process")
	}
	if !h.Running() {
		t.Error("Running() = false while process still alive")
	}

	// Escalate: force kill, then an unbounded wait must resolve
	if !h.Kill() {
		t.Fatal("Kill() = false for running process")
	}
	res = h.Wait(context.Background())
	if !res.Exited {
		t.Fatal("Wait() after Kill() did not report exit")
	}
	if res.Signal != "killed" {
		t.Errorf("Signal = %q, want %q", res.Signal, "killed")
	}
}

func TestHandle_Terminate(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sleep", []string{"30"}, ports.RunOptions{})
	defer h.Kill()

	if !h.Terminate() {
		t.Fatal("Terminate() = false for running process")
	}

	res := h.Wait(context.Background())
	if !res.Exited {
		t.Fatal("Wait() after Terminate() did not report exit")
	}
	if res.Signal != "terminated" {
		t.Errorf("Signal = %q, want %q", res.Signal, "terminated")
	}
}

func TestHandle_CachedResult(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sh", []string{"-c", "exit 7"}, ports.RunOptions{})

	first := h.Wait(context.Background())

	// Even with an already-expired context, a terminal result is returned
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := h.Wait(ctx)

	if first != second {
		t.Errorf("repeated Wait() results differ: %+v vs %+v", first, second)
	}
	if second.Code != 7 {
		t.Errorf("cached exit code = %d, want 7", second.Code)
	}
}

func TestHandle_SignalAfterExit(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sh", []string{"-c", "exit 0"}, ports.RunOptions{})
	h.Wait(context.Background())

	if h.Terminate() {
		t.Error("Terminate() = true after exit")
	}
	if h.Kill() {
		t.Error("Kill() = true after exit")
	}
	if h.Running() {
		t.Error("Running() = true after exit")
	}
}

func TestHandle_Done(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sh", []string{"-c", "exit 0"}, ports.RunOptions{})

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done() not closed after process exit")
	}
}

func TestRunner_Run_DirAndLog(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks(%q) error = %v", dir, err)
	}
	logPath := filepath.Join(t.TempDir(), "logs", "backend.log")

	h := r.Run("sh", []string{"-c", "pwd"}, ports.RunOptions{
		Dir:     dir,
		LogPath: logPath,
	})

	res := h.Wait(context.Background())
	if res.Code != 0 {
		t.Fatalf("exit code = %d, want 0", res.Code)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	got := strings.TrimSpace(string(data))
	if got != resolved && got != dir {
		t.Errorf("child working dir = %q, want %q", got, resolved)
	}
}

func TestRunner_Run_Env(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	logPath := filepath.Join(t.TempDir(), "env.log")
	h := r.Run("sh", []string{"-c", `printf '%s' "$WORKSPACED_TEST_VALUE"`}, ports.RunOptions{
		Env:     []string{"WORKSPACED_TEST_VALUE=hello-backend"},
		LogPath: logPath,
	})

	res := h.Wait(context.Background())
	if res.Code != 0 {
		t.Fatalf("exit code = %d, want 0", res.Code)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != "hello-backend" {
		t.Errorf("env passthrough = %q, want %q", string(data), "hello-backend")
	}
}

func TestHandle_PID(t *testing.T) {
	requireSh(t)
	r := NewRunner()

	h := r.Run("sleep", []string{"30"}, ports.RunOptions{})
	defer h.Kill()

	if h.PID() <= 0 {
		t.Errorf("PID() = %d, want positive", h.PID())
	}
}
