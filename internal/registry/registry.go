// Package registry persists the workspace-to-port mapping across
// daemon restarts.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Record is the persisted state for one workspace server.
type Record struct {
	Port int `json:"port"`
}

// File is the on-disk registry shape.
type File struct {
	Workspaces map[string]Record `json:"workspaces"`
}

// Registry reads and writes the workspace port registry file. The
// server manager is the single writer; readers only ever see complete
// files because writes go through an atomic rename.
type Registry struct {
	path string
}

// New creates a registry backed by the given file path.
func New(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the canonical registry file location.
func (r *Registry) Path() string {
	return r.path
}

// Load reads the registry. A missing file yields an empty map; a
// malformed file yields an empty map plus a warning. Load never fails
// the caller.
func (r *Registry) Load() map[string]Record {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", r.path).Msg("failed to read port registry")
		}
		return make(map[string]Record)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("malformed port registry, starting empty")
		return make(map[string]Record)
	}
	if f.Workspaces == nil {
		return make(map[string]Record)
	}
	return f.Workspaces
}

// Save serializes the mapping to a temp file next to the registry and
// renames it over the canonical path to prevent partial reads.
func (r *Registry) Save(workspaces map[string]Record) error {
	if workspaces == nil {
		workspaces = make(map[string]Record)
	}

	data, err := json.MarshalIndent(File{Workspaces: workspaces}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling port registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing port registry temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming port registry: %w", err)
	}
	return nil
}

// Set persists a single workspace record with a read-merge-write.
func (r *Registry) Set(workspacePath string, rec Record) error {
	workspaces := r.Load()
	workspaces[workspacePath] = rec
	return r.Save(workspaces)
}

// Remove drops a single workspace record with a read-merge-write.
// Removing an absent record is a no-op.
func (r *Registry) Remove(workspacePath string) error {
	workspaces := r.Load()
	if _, ok := workspaces[workspacePath]; !ok {
		return nil
	}
	delete(workspaces, workspacePath)
	return r.Save(workspaces)
}
