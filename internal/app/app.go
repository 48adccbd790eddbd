// Package app wires the daemon together: event hub, registry, port
// allocator, workspace server manager, status aggregator, and the
// control API.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workspaced/internal/config"
	"github.com/brianly1003/workspaced/internal/domain/events"
	"github.com/brianly1003/workspaced/internal/health"
	"github.com/brianly1003/workspaced/internal/hub"
	"github.com/brianly1003/workspaced/internal/portutil"
	"github.com/brianly1003/workspaced/internal/registry"
	"github.com/brianly1003/workspaced/internal/security"
	"github.com/brianly1003/workspaced/internal/server/websocket"
	"github.com/brianly1003/workspaced/internal/server/workspacehttp"
	"github.com/brianly1003/workspaced/internal/status"
	"github.com/brianly1003/workspaced/internal/supervisor"
	"github.com/brianly1003/workspaced/internal/workspace"
)

// App is the daemon: it owns every component and runs the boot and
// shutdown sequences.
type App struct {
	cfg     *config.Config
	version string

	// Core components
	hub       *hub.Hub
	reg       *registry.Registry
	alloc     *portutil.Allocator
	checker   *health.Checker
	manager   *workspace.Manager
	agg       *status.Aggregator
	gateway   *websocket.Gateway
	apiServer *workspacehttp.Server

	// Callback detach functions, run at shutdown
	unwire []func()

	// Session info
	sessionID string
	startTime time.Time

	// Lifecycle
	mu      sync.RWMutex
	running bool
}

// New creates a new App instance.
func New(cfg *config.Config, version string) (*App, error) {
	return &App{
		cfg:       cfg,
		version:   version,
		hub:       hub.New(),
		sessionID: uuid.New().String(),
	}, nil
}

// Start starts the daemon and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	dataDir, err := a.cfg.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("failed to prepare data directory: %w", err)
	}

	// Start event hub
	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	// Add log subscriber for debugging
	logSub := hub.NewLogSubscriber("internal-logger", func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("event broadcast")
	})
	a.hub.Subscribe(logSub)

	logger := slog.Default()

	// Build the server management stack
	a.reg = registry.New(a.cfg.RegistryPath())
	a.alloc = portutil.NewAllocator()
	a.checker = health.NewCheckerWithTimeouts(
		time.Duration(a.cfg.Health.AttemptTimeoutMS)*time.Millisecond,
		time.Duration(a.cfg.Health.IntervalMS)*time.Millisecond,
	)
	a.manager = workspace.NewManager(a.cfg, a.hub, logger, supervisor.NewRunner(), a.alloc, a.checker, a.reg)
	a.agg = status.NewAggregator(
		a.cfg.Backend.SessionsPath,
		a.cfg.Backend.StatusPath,
		a.cfg.Backend.EventsPath,
	)

	// A started server begins status tracking; a stopped one ends it.
	// InitWorkspace dials the backend, so it runs off the start path.
	a.unwire = append(a.unwire, a.manager.OnServerStarted(func(workspacePath string, port int) {
		go a.agg.InitWorkspace(ctx, workspacePath, port)
	}))
	a.unwire = append(a.unwire, a.manager.OnServerStopped(func(workspacePath string) {
		a.agg.RemoveWorkspace(workspacePath)
	}))
	a.unwire = append(a.unwire, a.agg.OnStatusChanged(func(st status.WorkspaceStatus) {
		a.hub.Publish(events.NewAgentStatusChangedEvent(
			st.WorkspacePath,
			string(st.Status),
			st.Counts.Idle,
			st.Counts.Busy,
		))
	}))

	// Reconcile the registry against servers that outlived the last
	// daemon before answering any API calls.
	if removed, err := a.manager.CleanupStaleEntries(ctx); err != nil {
		log.Warn().Err(err).Msg("registry reconciliation failed")
	} else if len(removed) > 0 {
		log.Info().Strs("removed", removed).Msg("removed stale registry entries")
	}

	// Event gateway and control API
	originChecker := security.NewOriginChecker(nil, security.IsLoopbackHost(a.cfg.Server.Host))
	a.gateway = websocket.NewGateway(a.hub, originChecker.CheckOriginFunc())
	a.gateway.SetStatusProvider(a)

	a.apiServer = workspacehttp.NewServer(
		a.cfg.Server.Host,
		a.cfg.Server.Port,
		a.manager,
		a.agg,
		a.reg,
		a.gateway,
		logger,
	)
	if err := a.apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start control API server: %w", err)
	}

	log.Info().
		Str("session_id", a.sessionID).
		Str("version", a.version).
		Str("addr", fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)).
		Str("data_dir", dataDir).
		Msg("daemon started")

	// Wait for context cancellation
	<-ctx.Done()

	return a.shutdown()
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false

	log.Info().Msg("shutting down...")

	// Detach lifecycle callbacks so teardown below does not feed the
	// aggregator or hub with churn
	for _, fn := range a.unwire {
		fn()
	}
	a.unwire = nil

	// Stop control API server (disconnects WebSocket clients)
	if a.apiServer != nil {
		if err := a.apiServer.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping control API server")
		}
	}

	// Stop status tracking
	if a.agg != nil {
		a.agg.Dispose()
	}

	// Workspace servers outlive the daemon unless configured otherwise;
	// the next boot re-adopts them through the registry.
	if a.cfg.Manager.StopServersOnExit && a.manager != nil {
		if err := a.manager.StopAll(); err != nil {
			log.Error().Err(err).Msg("error stopping workspace servers")
		}
	}

	// Stop hub
	if err := a.hub.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping event hub")
	}

	return nil
}

// IsRunning reports whether the daemon has started and not yet shut
// down.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// GetAgentStatus returns the aggregate agent status across all tracked
// workspaces for heartbeats. Implements common.StatusProvider.
func (a *App) GetAgentStatus() string {
	if a.agg == nil {
		return string(status.StatusIdle)
	}
	for _, st := range a.agg.GetAllStatuses() {
		if st.Status == status.StatusBusy {
			return string(status.StatusBusy)
		}
	}
	return string(status.StatusIdle)
}

// GetUptimeSeconds returns the daemon uptime in seconds. Implements
// common.StatusProvider.
func (a *App) GetUptimeSeconds() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(a.startTime).Seconds())
}
