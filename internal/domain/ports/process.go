package ports

import "context"

// RunOptions configures a spawned child process.
type RunOptions struct {
	// Dir is the working directory for the process. Empty means inherit.
	Dir string

	// Env holds extra environment entries ("KEY=value") appended to the
	// inherited environment.
	Env []string

	// LogPath, when set, appends the child's combined stdout/stderr to
	// the named file. Empty discards output.
	LogPath string
}

// ExitResult describes how a wait on a process resolved.
type ExitResult struct {
	// Exited is false when a bounded wait elapsed before the process
	// terminated. All other fields are only meaningful when Exited is true.
	Exited bool

	// Code is the process exit code, or -1 when the process was killed by
	// a signal or never started.
	Code int

	// Signal names the terminating signal, if any (e.g. "killed").
	Signal string

	// Err is non-nil when the process failed to start (carrying the raw
	// OS error) or exited unsuccessfully.
	Err error
}

// ProcessHandle is the control surface for one spawned process.
// Spawn failures are not reported at spawn time; they surface through
// Wait, so callers treat "failed to start" and "started then failed"
// uniformly.
type ProcessHandle interface {
	// PID returns the OS process id, or 0 if the process never started.
	PID() int

	// Running reports whether the process has started and not yet exited.
	Running() bool

	// Terminate sends the platform's graceful stop signal to the process
	// group. Returns false if the process already exited or never started.
	Terminate() bool

	// Kill forcefully kills the process group. Returns false if the
	// process already exited or never started.
	Kill() bool

	// Wait blocks until the process exits or ctx is done. Once the
	// process has exited, repeated calls return the same cached result.
	Wait(ctx context.Context) ExitResult

	// Done returns a channel closed when the process has exited (or the
	// spawn failed).
	Done() <-chan struct{}
}

// ProcessRunner spawns child processes.
type ProcessRunner interface {
	// Run starts command with args. It always returns a handle; a start
	// failure is carried by the handle and surfaced on Wait.
	Run(command string, args []string, opts RunOptions) ProcessHandle
}
