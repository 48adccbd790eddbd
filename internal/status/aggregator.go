package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// stream is the aggregator's view of one workspace's event
// subscription.
type stream interface {
	Dispose()
}

// streamFactory opens an event stream subscription.
type streamFactory func(url string, onMessage func([]byte), onConnected func(bool)) stream

// wsState is the per-workspace tracking state. Owned by the
// aggregator; the mutex guarding it lives there.
type wsState struct {
	port   int
	stream stream
	roots  map[string]SessionKind
	last   WorkspaceStatus
}

// Aggregator tracks agent activity per workspace. It seeds each
// workspace from a snapshot fetch, then applies events from a
// reconnecting stream, re-syncing the snapshot after every successful
// (re)connect.
type Aggregator struct {
	snapshot   *SnapshotClient
	eventsPath string

	mu      sync.Mutex
	tracked map[string]*wsState
	subs    map[int]func(WorkspaceStatus)
	nextSub int

	openStream streamFactory
}

// NewAggregator creates a status aggregator using the backend's
// session, status, and event-stream endpoint paths.
func NewAggregator(sessionsPath, statusPath, eventsPath string) *Aggregator {
	return &Aggregator{
		snapshot:   NewSnapshotClient(sessionsPath, statusPath),
		eventsPath: eventsPath,
		tracked:    make(map[string]*wsState),
		subs:       make(map[int]func(WorkspaceStatus)),
		openStream: func(url string, onMessage func([]byte), onConnected func(bool)) stream {
			return NewStreamConn(url, onMessage, onConnected)
		},
	}
}

// OnStatusChanged registers a listener for aggregate changes and
// returns its unsubscribe function. Listeners are independent; a
// panicking listener never suppresses the others.
func (a *Aggregator) OnStatusChanged(fn func(WorkspaceStatus)) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// InitWorkspace begins tracking a workspace's backend. Idempotent: a
// second call for a tracked workspace is a no-op. A failed seed fetch
// degrades to the connected-idle baseline instead of failing the
// caller.
func (a *Aggregator) InitWorkspace(ctx context.Context, workspacePath string, port int) {
	a.mu.Lock()
	if _, ok := a.tracked[workspacePath]; ok {
		a.mu.Unlock()
		return
	}
	state := &wsState{
		port:  port,
		roots: make(map[string]SessionKind),
		last:  deriveStatus(workspacePath, nil),
	}
	a.tracked[workspacePath] = state
	a.mu.Unlock()

	if snap, err := a.snapshot.Fetch(ctx, port); err != nil {
		log.Warn().Err(err).Str("workspace", workspacePath).Msg("initial status fetch failed, reporting idle baseline")
	} else {
		a.mu.Lock()
		if st, ok := a.tracked[workspacePath]; ok {
			st.roots = snap.Roots
		}
		a.mu.Unlock()
	}

	url := fmt.Sprintf("ws://127.0.0.1:%d%s", port, a.eventsPath)
	conn := a.openStream(url,
		func(data []byte) { a.handleFrame(workspacePath, data) },
		func(up bool) { a.handleConnected(workspacePath, up) },
	)

	a.mu.Lock()
	st, ok := a.tracked[workspacePath]
	if !ok {
		// Removed while we were seeding
		a.mu.Unlock()
		conn.Dispose()
		return
	}
	st.stream = conn
	emit := deriveStatus(workspacePath, st.roots)
	st.last = emit
	a.mu.Unlock()

	log.Info().
		Str("workspace", workspacePath).
		Int("port", port).
		Str("status", string(emit.Status)).
		Msg("workspace status tracking started")
	a.notify(emit)
}

// RemoveWorkspace stops tracking a workspace: the stream is disposed,
// per-session state dropped, and listeners told the status is none.
func (a *Aggregator) RemoveWorkspace(workspacePath string) {
	a.mu.Lock()
	st, ok := a.tracked[workspacePath]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.tracked, workspacePath)
	a.mu.Unlock()

	if st.stream != nil {
		st.stream.Dispose()
	}

	log.Info().Str("workspace", workspacePath).Msg("workspace status tracking stopped")
	a.notify(WorkspaceStatus{WorkspacePath: workspacePath, Status: StatusNone})
}

// GetStatus returns the last aggregate for a workspace, or a none
// status when untracked.
func (a *Aggregator) GetStatus(workspacePath string) WorkspaceStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.tracked[workspacePath]; ok {
		return st.last
	}
	return WorkspaceStatus{WorkspacePath: workspacePath, Status: StatusNone}
}

// GetAllStatuses returns the last aggregate for every tracked
// workspace.
func (a *Aggregator) GetAllStatuses() map[string]WorkspaceStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]WorkspaceStatus, len(a.tracked))
	for path, st := range a.tracked {
		out[path] = st.last
	}
	return out
}

// Dispose drops every tracked workspace and its stream. No
// notifications fire; this is shutdown, not teardown of one
// workspace.
func (a *Aggregator) Dispose() {
	a.mu.Lock()
	states := a.tracked
	a.tracked = make(map[string]*wsState)
	a.subs = make(map[int]func(WorkspaceStatus))
	a.mu.Unlock()

	for _, st := range states {
		if st.stream != nil {
			st.stream.Dispose()
		}
	}
}

// handleFrame applies one raw stream frame to the workspace's session
// set. Unknown event types, unparseable frames, child sessions, and
// events for untracked sessions are discarded.
func (a *Aggregator) handleFrame(workspacePath string, data []byte) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Debug().Err(err).Str("workspace", workspacePath).Msg("discarding unparseable stream frame")
		return
	}
	if ev.Session == nil || ev.Session.ID == "" {
		return
	}

	a.mu.Lock()
	st, ok := a.tracked[workspacePath]
	if !ok {
		// Frame raced a removal
		a.mu.Unlock()
		return
	}

	changed := false
	switch ev.Type {
	case wireSessionCreated:
		if ev.Session.ParentID == "" {
			if _, exists := st.roots[ev.Session.ID]; !exists {
				st.roots[ev.Session.ID] = SessionIdle
				changed = true
			}
		}
	case wireSessionStatus:
		if kind, valid := kindFromWire(ev.Session.Status); valid {
			if cur, isRoot := st.roots[ev.Session.ID]; isRoot && cur != kind {
				st.roots[ev.Session.ID] = kind
				changed = true
			}
		}
	case wireSessionDeleted:
		if _, isRoot := st.roots[ev.Session.ID]; isRoot {
			delete(st.roots, ev.Session.ID)
			changed = true
		}
	}

	var emit WorkspaceStatus
	if changed {
		emit = deriveStatus(workspacePath, st.roots)
		if emit == st.last {
			changed = false
		} else {
			st.last = emit
		}
	}
	a.mu.Unlock()

	if changed {
		a.notify(emit)
	}
}

// handleConnected re-syncs the session snapshot after every successful
// (re)connect. Transient disconnects keep the last known aggregate;
// only RemoveWorkspace resets a workspace to none.
func (a *Aggregator) handleConnected(workspacePath string, up bool) {
	if !up {
		log.Debug().Str("workspace", workspacePath).Msg("workspace event stream down")
		return
	}

	a.mu.Lock()
	st, ok := a.tracked[workspacePath]
	if !ok {
		a.mu.Unlock()
		return
	}
	port := st.port
	a.mu.Unlock()

	snap, err := a.snapshot.Fetch(context.Background(), port)
	if err != nil {
		log.Warn().Err(err).Str("workspace", workspacePath).Msg("status resync failed")
		return
	}

	a.mu.Lock()
	st, ok = a.tracked[workspacePath]
	if !ok {
		a.mu.Unlock()
		return
	}
	st.roots = snap.Roots
	emit := deriveStatus(workspacePath, st.roots)
	changed := emit != st.last
	st.last = emit
	a.mu.Unlock()

	if changed {
		a.notify(emit)
	}
}

// notify fans an aggregate change out to all listeners.
func (a *Aggregator) notify(st WorkspaceStatus) {
	a.mu.Lock()
	fns := make([]func(WorkspaceStatus), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		a.safeNotify(fn, st)
	}
}

func (a *Aggregator) safeNotify(fn func(WorkspaceStatus), st WorkspaceStatus) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("workspace", st.WorkspacePath).Msg("status listener panicked")
		}
	}()
	fn(st)
}
