package workspacehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brianly1003/workspaced/internal/status"
)

// defaultClientTimeout bounds one API call. Starting a workspace blocks
// through the backend's readiness budget, so this sits well above it.
const defaultClientTimeout = 60 * time.Second

// HealthInfo is the daemon liveness response.
type HealthInfo struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp int64  `json:"timestamp"`
}

// Client is an HTTP client for the daemon's control API, used by the
// CLI subcommands.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the daemon at baseURL, e.g.
// "http://127.0.0.1:8788".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var info HealthInfo
	if err := c.getJSON(ctx, "/health", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Workspaces lists the daemon's tracked workspace servers.
func (c *Client) Workspaces(ctx context.Context) ([]WorkspaceView, error) {
	var resp struct {
		Workspaces []WorkspaceView `json:"workspaces"`
	}
	if err := c.getJSON(ctx, "/api/workspaces", &resp); err != nil {
		return nil, err
	}
	return resp.Workspaces, nil
}

// StartWorkspace starts (or joins) the server for a workspace. The call
// blocks until the server is ready or the start fails.
func (c *Client) StartWorkspace(ctx context.Context, path string) (*StartResult, error) {
	var result StartResult
	if err := c.postJSON(ctx, "/api/workspaces/start", map[string]string{"path": path}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopWorkspace stops the server for a workspace. Stopping a workspace
// with no server is not an error.
func (c *Client) StopWorkspace(ctx context.Context, path string) error {
	return c.postJSON(ctx, "/api/workspaces/stop", map[string]string{"path": path}, nil)
}

// StopProject stops every workspace server at or below the project
// root.
func (c *Client) StopProject(ctx context.Context, root string) error {
	return c.postJSON(ctx, "/api/projects/stop", map[string]string{"root": root}, nil)
}

// Status fetches the agent status aggregate for one workspace.
func (c *Client) Status(ctx context.Context, path string) (*status.WorkspaceStatus, error) {
	var st status.WorkspaceStatus
	if err := c.getJSON(ctx, "/api/status?path="+url.QueryEscape(path), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// AllStatuses fetches the agent status aggregates for every tracked
// workspace, keyed by workspace path.
func (c *Client) AllStatuses(ctx context.Context) (map[string]status.WorkspaceStatus, error) {
	var resp struct {
		Statuses map[string]status.WorkspaceStatus `json:"statuses"`
	}
	if err := c.getJSON(ctx, "/api/status", &resp); err != nil {
		return nil, err
	}
	return resp.Statuses, nil
}

// Registry fetches the daemon's view of the port registry.
func (c *Client) Registry(ctx context.Context) (*RegistryView, error) {
	var view RegistryView
	if err := c.getJSON(ctx, "/api/registry", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Cleanup asks the daemon to reconcile the registry against live
// servers and returns the removed entries.
func (c *Client) Cleanup(ctx context.Context) (*CleanupResult, error) {
	var result CleanupResult
	if err := c.postJSON(ctx, "/api/registry/cleanup", struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

func (c *Client) postJSON(ctx context.Context, path string, body, v interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(req, resp)
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// apiError extracts the daemon's error message from a non-2xx
// response, falling back to the status code.
func apiError(req *http.Request, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("daemon: %s", body.Error)
	}
	return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
}
