package workspacehttp

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/brianly1003/workspaced/internal/pathutil"
	"github.com/brianly1003/workspaced/internal/registry"
	"github.com/brianly1003/workspaced/internal/status"
	"github.com/brianly1003/workspaced/internal/workspace"
)

func TestClient_Health(t *testing.T) {
	rg := newAPIRig(t)
	c := NewClient(rg.ts.URL)

	info, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if info.Status != "ok" {
		t.Errorf("Status = %q, want ok", info.Status)
	}
	if info.Service != "workspaced" {
		t.Errorf("Service = %q, want workspaced", info.Service)
	}
	if info.Timestamp <= 0 {
		t.Errorf("Timestamp = %d, want a positive unix time", info.Timestamp)
	}
}

func TestClient_Health_DaemonDown(t *testing.T) {
	c := NewClient(fmt.Sprintf("http://127.0.0.1:%d", closedPort(t)))

	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("Health() should fail against a closed port")
	}
}

func TestClient_WorkspaceLifecycle(t *testing.T) {
	rg := newAPIRig(t)
	c := NewClient(rg.ts.URL)
	ctx := context.Background()
	dir := t.TempDir()

	result, err := c.StartWorkspace(ctx, dir)
	if err != nil {
		t.Fatalf("StartWorkspace() error = %v", err)
	}
	wantPath, _ := pathutil.Normalize(dir)
	if result.Path != wantPath {
		t.Errorf("Path = %q, want %q", result.Path, wantPath)
	}
	if result.Port != rg.backend.port() {
		t.Errorf("Port = %d, want %d", result.Port, rg.backend.port())
	}

	workspaces, err := c.Workspaces(ctx)
	if err != nil {
		t.Fatalf("Workspaces() error = %v", err)
	}
	if len(workspaces) != 1 {
		t.Fatalf("Workspaces() = %d entries, want 1", len(workspaces))
	}
	if workspaces[0].Path != wantPath || workspaces[0].State != workspace.StateRunning {
		t.Errorf("Workspaces()[0] = %+v, want running %s", workspaces[0], wantPath)
	}

	if err := c.StopWorkspace(ctx, dir); err != nil {
		t.Fatalf("StopWorkspace() error = %v", err)
	}
	workspaces, err = c.Workspaces(ctx)
	if err != nil {
		t.Fatalf("Workspaces() error = %v", err)
	}
	if len(workspaces) != 0 {
		t.Errorf("Workspaces() after stop = %d entries, want 0", len(workspaces))
	}
}

func TestClient_StartWorkspace_DaemonError(t *testing.T) {
	rg := newAPIRig(t)
	c := NewClient(rg.ts.URL)
	ctx := context.Background()

	if _, err := c.StartWorkspace(ctx, t.TempDir()); err != nil {
		t.Fatalf("first StartWorkspace() error = %v", err)
	}

	// The rig's allocator only has one port
	_, err := c.StartWorkspace(ctx, t.TempDir())
	if err == nil {
		t.Fatal("second StartWorkspace() should fail")
	}
	if !strings.Contains(err.Error(), "no free port") {
		t.Errorf("error = %v, want the daemon's message surfaced", err)
	}
}

func TestClient_StopProject(t *testing.T) {
	rg := newAPIRig(t)
	c := NewClient(rg.ts.URL)
	ctx := context.Background()
	root := t.TempDir()

	if _, err := c.StartWorkspace(ctx, root); err != nil {
		t.Fatalf("StartWorkspace() error = %v", err)
	}
	if err := c.StopProject(ctx, root); err != nil {
		t.Fatalf("StopProject() error = %v", err)
	}
	if entries := rg.m.Entries(); len(entries) != 0 {
		t.Errorf("entries after project stop = %d, want 0", len(entries))
	}
}

func TestClient_Statuses(t *testing.T) {
	rg := newAPIRig(t)
	c := NewClient(rg.ts.URL)
	ctx := context.Background()

	all, err := c.AllStatuses(ctx)
	if err != nil {
		t.Fatalf("AllStatuses() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("AllStatuses() = %v, want empty", all)
	}

	st, err := c.Status(ctx, "/untracked/workspace")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Status != status.StatusNone {
		t.Errorf("Status = %q, want none", st.Status)
	}
	if st.WorkspacePath != "/untracked/workspace" {
		t.Errorf("WorkspacePath = %q, want /untracked/workspace", st.WorkspacePath)
	}
}

func TestClient_RegistryAndCleanup(t *testing.T) {
	rg := newAPIRig(t)
	c := NewClient(rg.ts.URL)
	ctx := context.Background()

	if err := rg.reg.Set("/workspace/stale", registry.Record{Port: closedPort(t)}); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	view, err := c.Registry(ctx)
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	if view.RegistryPath != rg.reg.Path() {
		t.Errorf("RegistryPath = %q, want %q", view.RegistryPath, rg.reg.Path())
	}
	if _, ok := view.Workspaces["/workspace/stale"]; !ok {
		t.Fatalf("Workspaces = %v, want the seeded entry", view.Workspaces)
	}

	result, err := c.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if result.Count != 1 || len(result.Removed) != 1 || result.Removed[0] != "/workspace/stale" {
		t.Errorf("Cleanup() = %+v, want the stale entry removed", result)
	}

	view, err = c.Registry(ctx)
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	if len(view.Workspaces) != 0 {
		t.Errorf("Workspaces after cleanup = %v, want empty", view.Workspaces)
	}
}
