// Package workspace implements the server manager: one backend server
// process per workspace, started on demand, health-gated, recorded in
// the persistent port registry, and torn down with signal escalation.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/brianly1003/workspaced/internal/config"
	"github.com/brianly1003/workspaced/internal/domain"
	"github.com/brianly1003/workspaced/internal/domain/events"
	"github.com/brianly1003/workspaced/internal/domain/ports"
	"github.com/brianly1003/workspaced/internal/health"
	"github.com/brianly1003/workspaced/internal/pathutil"
	"github.com/brianly1003/workspaced/internal/registry"
)

// PortAllocator grants loopback ports for spawned servers.
type PortAllocator interface {
	FindFreePort() (int, error)
	Release(port int)
}

// Manager owns workspace server processes. Operations are keyed by the
// normalized workspace path; starts for the same path coalesce onto
// one in-flight attempt, and operations for different workspaces never
// block each other.
type Manager struct {
	cfg      *config.Config
	hub      ports.EventHub
	logger   *slog.Logger
	runner   ports.ProcessRunner
	alloc    PortAllocator
	checker  *health.Checker
	registry *registry.Registry

	flight singleflight.Group

	mu      sync.RWMutex
	entries map[string]*Entry

	startedSubs map[int]func(workspacePath string, port int)
	stoppedSubs map[int]func(workspacePath string)
	nextSubID   int
}

// NewManager creates a workspace server manager.
func NewManager(cfg *config.Config, hub ports.EventHub, logger *slog.Logger, runner ports.ProcessRunner, alloc PortAllocator, checker *health.Checker, reg *registry.Registry) *Manager {
	return &Manager{
		cfg:         cfg,
		hub:         hub,
		logger:      logger,
		runner:      runner,
		alloc:       alloc,
		checker:     checker,
		registry:    reg,
		entries:     make(map[string]*Entry),
		startedSubs: make(map[int]func(string, int)),
		stoppedSubs: make(map[int]func(string)),
	}
}

// OnServerStarted registers a listener invoked after a server becomes
// healthy and its registry record is persisted. Returns an unsubscribe
// function.
func (m *Manager) OnServerStarted(fn func(workspacePath string, port int)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.startedSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.startedSubs, id)
		m.mu.Unlock()
	}
}

// OnServerStopped registers a listener invoked after a server's
// process has exited and its entry and registry record are gone.
// Returns an unsubscribe function.
func (m *Manager) OnServerStopped(fn func(workspacePath string)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.stoppedSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.stoppedSubs, id)
		m.mu.Unlock()
	}
}

// StartServer starts the backend server for a workspace and returns
// its port. Concurrent calls for the same workspace join one in-flight
// start and observe the same result; a call for an already running
// workspace returns its port immediately. The call blocks until the
// server answers its readiness probe or the start fails.
func (m *Manager) StartServer(workspacePath string) (int, error) {
	path, err := pathutil.Normalize(workspacePath)
	if err != nil {
		return 0, err
	}

	v, err, _ := m.flight.Do(path, func() (interface{}, error) {
		return m.startServer(path)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (m *Manager) startServer(workspacePath string) (int, error) {
	// A completed earlier start or an unfinished stop changes what this
	// attempt must do; settle that under the lock before spawning.
	m.mu.Lock()
	for {
		entry, ok := m.entries[workspacePath]
		if !ok {
			break
		}
		switch entry.State {
		case StateRunning:
			port := entry.Port
			m.mu.Unlock()
			return port, nil
		case StateStopping:
			stopped := entry.stopped
			m.mu.Unlock()
			<-stopped
			m.mu.Lock()
		case StateStarting:
			settled := entry.settled
			m.mu.Unlock()
			<-settled
			m.mu.Lock()
		}
	}
	m.mu.Unlock()

	port, err := m.alloc.FindFreePort()
	if err != nil {
		return 0, err
	}

	entry := newEntry(workspacePath, port)
	m.mu.Lock()
	m.entries[workspacePath] = entry
	m.mu.Unlock()

	args, err := m.buildArgs(workspacePath, port)
	if err != nil {
		m.abortStart(entry)
		return 0, err
	}

	m.logger.Info("starting workspace server",
		"workspace", workspacePath,
		"port", port,
		"command", m.cfg.Backend.Command)

	handle := m.runner.Run(m.cfg.Backend.Command, args, ports.RunOptions{
		Dir:     workspacePath,
		LogPath: m.cfg.BackendLogPath(workspacePath),
	})

	healthCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(m.cfg.Health.TimeoutMS)*time.Millisecond)
	go func() {
		// An early process death ends the wait instead of burning the
		// whole readiness budget
		select {
		case <-handle.Done():
			cancel()
		case <-healthCtx.Done():
		}
	}()

	err = m.checker.WaitUntilHealthy(healthCtx, port, m.cfg.Backend.ReadinessPath)
	cancel()
	if err != nil {
		select {
		case <-handle.Done():
			res := handle.Wait(context.Background())
			err = domain.NewSpawnError(m.cfg.Backend.Command, startFailure(res))
		default:
			// Alive but never became ready; reap it so nothing orphans
			handle.Kill()
			handle.Wait(context.Background())
			err = domain.NewStartError(workspacePath, "health", err)
		}
		m.logger.Error("workspace server failed to start",
			"workspace", workspacePath,
			"port", port,
			"error", err)
		m.abortStart(entry)
		return 0, err
	}

	m.mu.Lock()
	entry.State = StateRunning
	entry.handle = handle
	m.mu.Unlock()

	if err := m.registry.Set(workspacePath, registry.Record{Port: port}); err != nil {
		m.logger.Warn("failed to persist registry record",
			"workspace", workspacePath,
			"error", err)
	}

	m.logger.Info("workspace server ready",
		"workspace", workspacePath,
		"port", port,
		"pid", handle.PID())
	m.publish(events.NewServerStartedEvent(workspacePath, port, handle.PID()))
	m.notifyStarted(workspacePath, port)
	close(entry.settled)

	go m.watchExit(entry)

	return port, nil
}

// abortStart discards an entry whose start attempt failed. The process
// is already dead (or never existed) by the time this runs.
func (m *Manager) abortStart(entry *Entry) {
	m.mu.Lock()
	delete(m.entries, entry.WorkspacePath)
	m.mu.Unlock()

	m.alloc.Release(entry.Port)
	close(entry.settled)
}

// startFailure extracts the cause from a start attempt that died
// before becoming healthy.
func startFailure(res ports.ExitResult) error {
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("process exited with code %d before becoming ready", res.Code)
}

// buildArgs assembles the backend argument list for one workspace,
// creating the isolated config/data directories when configured.
func (m *Manager) buildArgs(workspacePath string, port int) ([]string, error) {
	backend := &m.cfg.Backend

	args := append([]string{}, backend.BaseArgs...)
	args = append(args, backend.PortFlag, strconv.Itoa(port))
	if backend.HostnameFlag != "" {
		args = append(args, backend.HostnameFlag, backend.Hostname)
	}
	if backend.DirFlag != "" {
		args = append(args, backend.DirFlag, workspacePath)
	}
	if backend.ConfigDirFlag != "" {
		dir := m.cfg.BackendConfigDir(workspacePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating backend config dir: %w", err)
		}
		args = append(args, backend.ConfigDirFlag, dir)
	}
	if backend.DataDirFlag != "" {
		dir := m.cfg.BackendDataDir(workspacePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating backend data dir: %w", err)
		}
		args = append(args, backend.DataDirFlag, dir)
	}

	return args, nil
}

// StopServer stops the workspace's server. Stopping an unknown
// workspace is a successful no-op. A stop arriving while a start is
// still health-checking waits for the start to settle first, so no
// process is ever orphaned. Stopped listeners fire only after the
// process has confirmably exited.
func (m *Manager) StopServer(workspacePath string) error {
	path, err := pathutil.Normalize(workspacePath)
	if err != nil {
		return err
	}

	for {
		m.mu.Lock()
		entry, ok := m.entries[path]
		if !ok {
			m.mu.Unlock()
			return nil
		}
		switch entry.State {
		case StateStarting:
			// The in-flight start owns the process until it settles
			settled := entry.settled
			m.mu.Unlock()
			<-settled
		case StateStopping:
			stopped := entry.stopped
			m.mu.Unlock()
			<-stopped
			return nil
		case StateRunning:
			entry.State = StateStopping
			m.mu.Unlock()
			m.stopEntry(entry)
			return nil
		}
	}
}

// stopEntry runs the escalation protocol against a claimed entry:
// graceful terminate, bounded wait, then forceful kill with an
// unbounded wait.
func (m *Manager) stopEntry(entry *Entry) {
	m.logger.Info("stopping workspace server",
		"workspace", entry.WorkspacePath,
		"port", entry.Port,
		"pid", entry.handle.PID())

	entry.handle.Terminate()
	grace := time.Duration(m.cfg.Manager.StopGraceMS) * time.Millisecond
	waitCtx, cancel := context.WithTimeout(context.Background(), grace)
	res := entry.handle.Wait(waitCtx)
	cancel()
	if !res.Exited {
		m.logger.Warn("workspace server ignored graceful stop, killing",
			"workspace", entry.WorkspacePath,
			"pid", entry.handle.PID())
		entry.handle.Kill()
		res = entry.handle.Wait(context.Background())
	}

	m.mu.Lock()
	delete(m.entries, entry.WorkspacePath)
	m.mu.Unlock()

	if err := m.registry.Remove(entry.WorkspacePath); err != nil {
		m.logger.Warn("failed to remove registry record",
			"workspace", entry.WorkspacePath,
			"error", err)
	}
	m.alloc.Release(entry.Port)

	m.logger.Info("workspace server stopped",
		"workspace", entry.WorkspacePath,
		"port", entry.Port,
		"exit_code", res.Code)
	m.publish(events.NewServerStoppedEvent(entry.WorkspacePath, entry.Port))
	m.notifyStopped(entry.WorkspacePath)
	close(entry.stopped)
}

// watchExit observes a running server's process so a crash clears the
// entry, the registry record, and downstream status tracking. Normal
// stops detach it by claiming the entry first.
func (m *Manager) watchExit(entry *Entry) {
	<-entry.handle.Done()

	m.mu.Lock()
	current, ok := m.entries[entry.WorkspacePath]
	if !ok || current != entry || entry.State != StateRunning {
		// Exiting through the normal stop path
		m.mu.Unlock()
		return
	}
	delete(m.entries, entry.WorkspacePath)
	m.mu.Unlock()

	res := entry.handle.Wait(context.Background())
	m.logger.Warn("workspace server exited unexpectedly",
		"workspace", entry.WorkspacePath,
		"port", entry.Port,
		"exit_code", res.Code,
		"signal", res.Signal)

	if err := m.registry.Remove(entry.WorkspacePath); err != nil {
		m.logger.Warn("failed to remove registry record",
			"workspace", entry.WorkspacePath,
			"error", err)
	}
	m.alloc.Release(entry.Port)

	m.publish(events.NewServerExitedEvent(entry.WorkspacePath, entry.Port, res.Code))
	m.notifyStopped(entry.WorkspacePath)
}

// StopAllForProject stops every tracked workspace under the project
// root. Stops run concurrently and all are attempted; the first error
// is returned after every stop has finished.
func (m *Manager) StopAllForProject(projectRoot string) error {
	root, err := pathutil.Normalize(projectRoot)
	if err != nil {
		return err
	}

	m.mu.RLock()
	var targets []string
	for path := range m.entries {
		if pathutil.IsUnder(path, root) {
			targets = append(targets, path)
		}
	}
	m.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	m.logger.Info("stopping workspace servers under project",
		"project", root,
		"count", len(targets))

	g := new(errgroup.Group)
	for _, path := range targets {
		path := path
		g.Go(func() error {
			return m.StopServer(path)
		})
	}
	return g.Wait()
}

// StopAll stops every tracked workspace server.
func (m *Manager) StopAll() error {
	m.mu.RLock()
	targets := make([]string, 0, len(m.entries))
	for path := range m.entries {
		targets = append(targets, path)
	}
	m.mu.RUnlock()

	g := new(errgroup.Group)
	for _, path := range targets {
		path := path
		g.Go(func() error {
			return m.StopServer(path)
		})
	}
	return g.Wait()
}

// GetPort returns the port for a tracked workspace (starting or
// running). Read-only.
func (m *Manager) GetPort(workspacePath string) (int, bool) {
	path, err := pathutil.Normalize(workspacePath)
	if err != nil {
		return 0, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if entry, ok := m.entries[path]; ok {
		return entry.Port, true
	}
	return 0, false
}

// Entries returns a snapshot of all tracked entries, sorted by
// workspace path.
func (m *Manager) Entries() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.entries))
	for _, entry := range m.entries {
		info := Info{
			WorkspacePath: entry.WorkspacePath,
			Port:          entry.Port,
			State:         entry.State,
		}
		if entry.handle != nil {
			info.PID = entry.handle.PID()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WorkspacePath < out[j].WorkspacePath
	})
	return out
}

// CleanupStaleEntries reconciles the on-disk registry against reality:
// every record without a live entry gets one health probe, failures
// are dropped, and the surviving set is written back atomically in a
// single rewrite. Returns the removed workspace paths.
func (m *Manager) CleanupStaleEntries(ctx context.Context) ([]string, error) {
	records := m.registry.Load()

	m.mu.RLock()
	live := make(map[string]bool, len(m.entries))
	for path := range m.entries {
		live[path] = true
	}
	m.mu.RUnlock()

	kept := make(map[string]registry.Record, len(records))
	var removed []string
	for path, rec := range records {
		if live[path] {
			kept[path] = rec
			continue
		}
		if m.checker.Check(ctx, rec.Port, m.cfg.Backend.ReadinessPath) {
			// A server outlived an ungraceful restart of this daemon
			kept[path] = rec
			continue
		}
		removed = append(removed, path)
	}

	if len(removed) == 0 {
		return nil, nil
	}
	sort.Strings(removed)

	if err := m.registry.Save(kept); err != nil {
		return nil, fmt.Errorf("rewriting registry: %w", err)
	}

	m.logger.Info("registry reconciled",
		"removed", len(removed),
		"kept", len(kept))
	m.publish(events.NewRegistryCleanedEvent(removed, len(kept)))
	return removed, nil
}

func (m *Manager) publish(event *events.BaseEvent) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(event)
}

func (m *Manager) notifyStarted(workspacePath string, port int) {
	m.mu.RLock()
	fns := make([]func(string, int), 0, len(m.startedSubs))
	for _, fn := range m.startedSubs {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		m.safeNotifyStarted(fn, workspacePath, port)
	}
}

func (m *Manager) safeNotifyStarted(fn func(string, int), workspacePath string, port int) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("server-started listener panicked",
				"workspace", workspacePath,
				"panic", r)
		}
	}()
	fn(workspacePath, port)
}

func (m *Manager) notifyStopped(workspacePath string) {
	m.mu.RLock()
	fns := make([]func(string), 0, len(m.stoppedSubs))
	for _, fn := range m.stoppedSubs {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		m.safeNotifyStopped(fn, workspacePath)
	}
}

func (m *Manager) safeNotifyStopped(fn func(string), workspacePath string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("server-stopped listener panicked",
				"workspace", workspacePath,
				"panic", r)
		}
	}()
	fn(workspacePath)
}
