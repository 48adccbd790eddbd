package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workspaced/internal/domain/events"
	"github.com/brianly1003/workspaced/internal/domain/ports"
	"github.com/brianly1003/workspaced/internal/hub"
	"github.com/brianly1003/workspaced/internal/pathutil"
	"github.com/brianly1003/workspaced/internal/server/common"
)

// clientCommand is the wire form of a subscription command.
type clientCommand struct {
	Action        string `json:"action"`
	WorkspacePath string `json:"workspace_path,omitempty"`
}

// Supported client actions.
const (
	actionSubscribe    = "subscribe"
	actionUnsubscribe  = "unsubscribe"
	actionSubscribeAll = "subscribe_all"
)

// gatewayClient pairs a connection with its workspace filter.
type gatewayClient struct {
	client *Client
	filter *hub.FilteredSubscriber
}

// Gateway fans daemon events out to WebSocket clients. Each connection
// gets a per-client workspace filter: fresh connections receive every
// event, a subscribe command narrows the stream to named workspaces.
type Gateway struct {
	hub            ports.EventHub
	upgrader       websocket.Upgrader
	statusProvider common.StatusProvider

	mu      sync.RWMutex
	clients map[string]*gatewayClient

	heartbeatDone chan struct{}
	heartbeatSeq  int64
	startTime     time.Time
}

// NewGateway creates an event gateway publishing hub events to
// WebSocket clients. checkOrigin guards the upgrade handshake; nil
// allows every origin.
func NewGateway(eventHub ports.EventHub, checkOrigin func(r *http.Request) bool) *Gateway {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Gateway{
		hub: eventHub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients:       make(map[string]*gatewayClient),
		heartbeatDone: make(chan struct{}),
		startTime:     time.Now(),
	}
}

// SetStatusProvider sets the status provider for heartbeat events.
func (g *Gateway) SetStatusProvider(provider common.StatusProvider) {
	g.statusProvider = provider
}

// Start launches the heartbeat broadcaster.
func (g *Gateway) Start() error {
	go g.heartbeatLoop()
	return nil
}

// Stop disconnects all clients and stops the heartbeat loop.
func (g *Gateway) Stop() error {
	close(g.heartbeatDone)

	g.mu.Lock()
	for _, entry := range g.clients {
		_ = entry.client.Close()
	}
	g.clients = make(map[string]*gatewayClient)
	g.mu.Unlock()

	return nil
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection and
// subscribes it to the event hub.
func (g *Gateway) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, g.handleCommand, func(id string) {
		if g.hub != nil {
			g.hub.Unsubscribe(id)
		}
		g.removeClient(id)
	})
	filter := hub.NewFilteredSubscriber(NewClientSubscriber(client))

	g.mu.Lock()
	g.clients[client.ID()] = &gatewayClient{client: client, filter: filter}
	g.mu.Unlock()

	if g.hub != nil {
		g.hub.Subscribe(filter)
	}

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("event stream client connected")

	client.Start()
}

// handleCommand applies a subscription command to the sending client's
// filter. Malformed or unknown commands are logged and discarded.
func (g *Gateway) handleCommand(clientID string, message []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("unparseable client command")
		return
	}

	g.mu.RLock()
	entry := g.clients[clientID]
	g.mu.RUnlock()
	if entry == nil {
		return
	}

	switch cmd.Action {
	case actionSubscribe, actionUnsubscribe:
		path, err := pathutil.Normalize(cmd.WorkspacePath)
		if err != nil || cmd.WorkspacePath == "" {
			log.Warn().
				Str("client_id", clientID).
				Str("action", cmd.Action).
				Str("workspace_path", cmd.WorkspacePath).
				Msg("command needs a valid workspace_path")
			return
		}
		if cmd.Action == actionSubscribe {
			entry.filter.SubscribeWorkspace(path)
		} else {
			entry.filter.UnsubscribeWorkspace(path)
		}
		log.Debug().
			Str("client_id", clientID).
			Str("action", cmd.Action).
			Str("workspace", path).
			Msg("client filter updated")

	case actionSubscribeAll:
		entry.filter.SubscribeAll()
		log.Debug().Str("client_id", clientID).Msg("client filter cleared")

	default:
		log.Warn().
			Str("client_id", clientID).
			Str("action", cmd.Action).
			Msg("unknown client action")
	}
}

// removeClient removes a client from the gateway.
func (g *Gateway) removeClient(id string) {
	g.mu.Lock()
	delete(g.clients, id)
	g.mu.Unlock()
	log.Info().Str("client_id", id).Msg("event stream client disconnected")
}

// Broadcast sends a message to all connected clients, bypassing
// workspace filters.
func (g *Gateway) Broadcast(message []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, entry := range g.clients {
		_ = entry.client.SendRaw(message)
	}
}

// ClientCount returns the number of connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// heartbeatLoop broadcasts periodic heartbeat events to all connected
// clients, for application-level liveness beyond WebSocket ping/pong.
func (g *Gateway) heartbeatLoop() {
	ticker := time.NewTicker(common.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.heartbeatDone:
			return
		case <-ticker.C:
			g.broadcastHeartbeat()
		}
	}
}

// broadcastHeartbeat sends one heartbeat event to all connected clients.
func (g *Gateway) broadcastHeartbeat() {
	if g.ClientCount() == 0 {
		return
	}

	agentStatus := "unknown"
	uptimeSeconds := int64(time.Since(g.startTime).Seconds())
	if g.statusProvider != nil {
		agentStatus = g.statusProvider.GetAgentStatus()
		uptimeSeconds = g.statusProvider.GetUptimeSeconds()
	}

	seq := atomic.AddInt64(&g.heartbeatSeq, 1)
	heartbeat := events.NewHeartbeatEvent(seq, agentStatus, uptimeSeconds)

	data, err := heartbeat.ToJSON()
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize heartbeat")
		return
	}

	g.Broadcast(data)
	log.Trace().Int64("seq", seq).Msg("heartbeat sent")
}
