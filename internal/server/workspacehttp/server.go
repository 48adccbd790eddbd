// Package workspacehttp exposes the daemon's control API over HTTP and
// WebSocket: workspace server lifecycle, agent status aggregates, the
// port registry, and the event stream.
package workspacehttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/brianly1003/workspaced/internal/domain"
	"github.com/brianly1003/workspaced/internal/pathutil"
	"github.com/brianly1003/workspaced/internal/registry"
	"github.com/brianly1003/workspaced/internal/server/websocket"
	"github.com/brianly1003/workspaced/internal/status"
	"github.com/brianly1003/workspaced/internal/workspace"
)

// WorkspaceView is the API shape of one tracked workspace server,
// combining the manager's entry with the workspace's agent aggregate.
type WorkspaceView struct {
	Path        string             `json:"path"`
	Port        int                `json:"port"`
	State       workspace.State    `json:"state"`
	PID         int                `json:"pid,omitempty"`
	AgentStatus status.AgentStatus `json:"agent_status"`
	Counts      status.Counts      `json:"counts"`
}

// StartResult is the response body for a workspace start.
type StartResult struct {
	Path string `json:"path"`
	Port int    `json:"port"`
}

// RegistryView is the response body for the registry diagnostics
// endpoint.
type RegistryView struct {
	RegistryPath string                     `json:"registry_path"`
	Workspaces   map[string]registry.Record `json:"workspaces"`
}

// CleanupResult is the response body for a registry cleanup run.
type CleanupResult struct {
	Removed []string `json:"removed"`
	Count   int      `json:"count"`
}

// Server is the daemon's control API server.
type Server struct {
	manager *workspace.Manager
	agg     *status.Aggregator
	reg     *registry.Registry
	gateway *websocket.Gateway
	logger  *slog.Logger

	addr       string
	httpServer *http.Server
}

// NewServer creates a new control API server.
func NewServer(
	host string,
	port int,
	manager *workspace.Manager,
	agg *status.Aggregator,
	reg *registry.Registry,
	gateway *websocket.Gateway,
	logger *slog.Logger,
) *Server {
	return &Server{
		manager: manager,
		agg:     agg,
		reg:     reg,
		gateway: gateway,
		logger:  logger,
		addr:    fmt.Sprintf("%s:%d", host, port),
	}
}

// Start starts the HTTP server and the gateway's heartbeat loop.
func (s *Server) Start() error {
	if err := s.gateway.Start(); err != nil {
		return fmt.Errorf("starting event gateway: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      corsMiddleware(s.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Starting control API server", "addr", s.addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server, disconnecting all WebSocket clients.
func (s *Server) Stop() error {
	s.logger.Info("Stopping control API server")

	if err := s.gateway.Stop(); err != nil {
		s.logger.Error("Error stopping event gateway", "error", err)
	}

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// routes builds the request router.
func (s *Server) routes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/workspaces", s.handleListWorkspaces).Methods("GET")
	api.HandleFunc("/workspaces/start", s.handleStartWorkspace).Methods("POST")
	api.HandleFunc("/workspaces/stop", s.handleStopWorkspace).Methods("POST")
	api.HandleFunc("/projects/stop", s.handleStopProject).Methods("POST")

	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	api.HandleFunc("/registry", s.handleRegistry).Methods("GET")
	api.HandleFunc("/registry/cleanup", s.handleRegistryCleanup).Methods("POST")

	// WebSocket endpoint for the event stream
	router.HandleFunc("/ws", s.gateway.HandleUpgrade)

	return router
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "workspaced",
		"timestamp": time.Now().Unix(),
	})
}

// handleListWorkspaces handles GET /api/workspaces
func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	entries := s.manager.Entries()

	result := make([]WorkspaceView, 0, len(entries))
	for _, e := range entries {
		st := s.agg.GetStatus(e.WorkspacePath)
		result = append(result, WorkspaceView{
			Path:        e.WorkspacePath,
			Port:        e.Port,
			State:       e.State,
			PID:         e.PID,
			AgentStatus: st.Status,
			Counts:      st.Counts,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workspaces": result,
	})
}

// handleStartWorkspace handles POST /api/workspaces/start
func (s *Server) handleStartWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	port, err := s.manager.StartServer(req.Path)
	if err != nil {
		s.respondError(w, startErrorStatus(err), err.Error())
		return
	}

	path, _ := pathutil.Normalize(req.Path)
	s.respondJSON(w, http.StatusOK, StartResult{Path: path, Port: port})
}

// startErrorStatus maps a start failure onto an HTTP status code.
func startErrorStatus(err error) int {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoFreePort):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleStopWorkspace handles POST /api/workspaces/stop
func (s *Server) handleStopWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := s.manager.StopServer(req.Path); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	path, _ := pathutil.Normalize(req.Path)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "stopped",
		"path":   path,
	})
}

// handleStopProject handles POST /api/projects/stop
func (s *Server) handleStopProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Root string `json:"root"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Root == "" {
		s.respondError(w, http.StatusBadRequest, "root is required")
		return
	}

	if err := s.manager.StopAllForProject(req.Root); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	root, _ := pathutil.Normalize(req.Root)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "stopped",
		"root":   root,
	})
}

// handleStatus handles GET /api/status and GET /api/status?path=...
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("path"); raw != "" {
		path, err := pathutil.Normalize(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, s.agg.GetStatus(path))
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"statuses": s.agg.GetAllStatuses(),
	})
}

// handleRegistry handles GET /api/registry
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, RegistryView{
		RegistryPath: s.reg.Path(),
		Workspaces:   s.reg.Load(),
	})
}

// handleRegistryCleanup handles POST /api/registry/cleanup
func (s *Server) handleRegistryCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.CleanupStaleEntries(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if removed == nil {
		removed = []string{}
	}

	s.respondJSON(w, http.StatusOK, CleanupResult{
		Removed: removed,
		Count:   len(removed),
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		// Allow local development origins
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
