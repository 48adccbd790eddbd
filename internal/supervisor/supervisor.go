// Package supervisor spawns workspace backend processes and exposes
// handles used to signal them and await their exit.
package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workspaced/internal/domain/ports"
)

// Runner implements ports.ProcessRunner using os/exec.
type Runner struct{}

// NewRunner creates a process runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run starts command with args. It always returns a handle; a start
// failure (binary missing, permission denied) is carried by the handle
// and surfaced through Wait with the raw OS error.
func (r *Runner) Run(command string, args []string, opts ports.RunOptions) ports.ProcessHandle {
	cmd := exec.Command(command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	setupProcess(cmd)

	h := &Handle{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	if opts.LogPath != "" {
		f, err := openLogFile(opts.LogPath)
		if err != nil {
			log.Warn().Err(err).Str("path", opts.LogPath).Msg("failed to open process log file")
		} else {
			h.logFile = f
			cmd.Stdout = f
			cmd.Stderr = f
		}
	}

	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("command", command).Msg("process failed to start")
		h.finish(ports.ExitResult{Exited: true, Code: -1, Err: err})
		return h
	}

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	log.Debug().
		Str("command", command).
		Strs("args", args).
		Str("dir", opts.Dir).
		Int("pid", cmd.Process.Pid).
		Msg("process started")

	go h.monitor()
	return h
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// Handle supervises one spawned process. It implements
// ports.ProcessHandle.
type Handle struct {
	cmd *exec.Cmd

	mu      sync.Mutex
	running bool
	result  ports.ExitResult
	logFile *os.File

	done chan struct{}
}

// monitor waits for the process to exit and caches the terminal result.
func (h *Handle) monitor() {
	err := h.cmd.Wait()

	res := ports.ExitResult{Exited: true}
	if err != nil {
		res.Err = err
		res.Code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Code = exitErr.ExitCode()
			res.Signal = exitSignal(exitErr)
		}
	} else {
		res.Code = h.cmd.ProcessState.ExitCode()
	}

	h.finish(res)

	log.Debug().
		Int("pid", h.cmd.Process.Pid).
		Int("exit_code", res.Code).
		Str("signal", res.Signal).
		Msg("process exited")
}

// finish records the terminal result. Called exactly once, either from
// monitor or from a failed start.
func (h *Handle) finish(res ports.ExitResult) {
	h.mu.Lock()
	h.running = false
	h.result = res
	if h.logFile != nil {
		h.logFile.Close()
		h.logFile = nil
	}
	h.mu.Unlock()
	close(h.done)
}

// PID returns the OS process id, or 0 if the process never started.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Running reports whether the process has started and not yet exited.
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Terminate sends the platform's graceful stop signal to the process
// group. Returns false if the process already exited or never started.
func (h *Handle) Terminate() bool {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return false
	}
	h.mu.Unlock()

	if err := terminateProcess(h.cmd); err != nil {
		log.Warn().Err(err).Int("pid", h.PID()).Msg("graceful termination failed")
		return false
	}
	return true
}

// Kill forcefully kills the process group. Returns false if the process
// already exited or never started.
func (h *Handle) Kill() bool {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return false
	}
	h.mu.Unlock()

	if err := killProcess(h.cmd); err != nil {
		log.Warn().Err(err).Int("pid", h.PID()).Msg("force kill failed")
		return false
	}
	return true
}

// Wait blocks until the process exits or ctx is done. Once the process
// has exited, repeated calls return the same cached result; a ctx
// deadline before exit yields a non-fatal still-running result.
func (h *Handle) Wait(ctx context.Context) ports.ExitResult {
	select {
	case <-h.done:
	case <-ctx.Done():
		// Prefer the terminal result if the exit raced the deadline.
		select {
		case <-h.done:
		default:
			return ports.ExitResult{Exited: false}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Done returns a channel closed when the process has exited or the
// spawn failed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
