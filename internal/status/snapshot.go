package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// snapshotTimeout bounds one session/status fetch so a slow backend
// degrades to the connected-idle baseline instead of blocking
// workspace init.
const snapshotTimeout = 5 * time.Second

// Snapshot is a backend's current session picture: root sessions and
// their activity.
type Snapshot struct {
	Roots map[string]SessionKind
}

// SnapshotClient fetches the session list and per-session statuses
// from a workspace backend.
type SnapshotClient struct {
	client       *http.Client
	sessionsPath string
	statusPath   string
}

// NewSnapshotClient creates a snapshot client against the backend's
// session endpoints.
func NewSnapshotClient(sessionsPath, statusPath string) *SnapshotClient {
	return &SnapshotClient{
		client:       &http.Client{Timeout: snapshotTimeout},
		sessionsPath: sessionsPath,
		statusPath:   statusPath,
	}
}

// Fetch retrieves root sessions and seeds their kinds from the status
// endpoint. Child sessions are skipped; sessions missing from the
// status map default to idle.
func (s *SnapshotClient) Fetch(ctx context.Context, port int) (*Snapshot, error) {
	var sessions []WireSession
	if err := s.getJSON(ctx, port, s.sessionsPath, &sessions); err != nil {
		return nil, fmt.Errorf("fetching session list: %w", err)
	}

	statuses := make(map[string]string)
	if err := s.getJSON(ctx, port, s.statusPath, &statuses); err != nil {
		return nil, fmt.Errorf("fetching session statuses: %w", err)
	}

	snap := &Snapshot{Roots: make(map[string]SessionKind)}
	for _, sess := range sessions {
		if sess.ID == "" || sess.ParentID != "" {
			continue
		}
		kind := SessionIdle
		if k, ok := kindFromWire(statuses[sess.ID]); ok {
			kind = k
		}
		snap.Roots[sess.ID] = kind
	}
	return snap, nil
}

func (s *SnapshotClient) getJSON(ctx context.Context, port int, path string, v interface{}) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
