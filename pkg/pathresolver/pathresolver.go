// Package pathresolver centralizes workspace-relative path resolution,
// mirroring the original PathResolver (spec §4.2, §3 "Workspace"). All
// resolution here is relative to the workspace root, never to the process's
// current working directory, so that callers get workspace isolation for
// free.
package pathresolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver is the single source of truth for workspace/storage path
// resolution.
type Resolver struct {
	workspaceRoot string // absolute
	storageBase   string // absolute, workspaceRoot/.snapbase
}

// New builds a Resolver rooted at workspaceRoot, making it absolute against
// the process's current working directory if it is not already.
func New(workspaceRoot string) (*Resolver, error) {
	abs := workspaceRoot
	if !filepath.IsAbs(abs) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot get current directory: %w", err)
		}
		abs = filepath.Join(cwd, workspaceRoot)
	}
	return &Resolver{
		workspaceRoot: abs,
		storageBase:   filepath.Join(abs, ".snapbase"),
	}, nil
}

// WorkspaceRoot returns the absolute workspace root.
func (r *Resolver) WorkspaceRoot() string { return r.workspaceRoot }

// StorageBase returns the absolute path where the .snapbase storage tree
// lives for the local backend.
func (r *Resolver) StorageBase() string { return r.storageBase }

// ResolveWorkspacePath resolves relativePath against the workspace root,
// passing absolute paths through unchanged.
func (r *Resolver) ResolveWorkspacePath(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		return relativePath
	}
	return filepath.Join(r.workspaceRoot, relativePath)
}

// ResolveStoragePath resolves relativePath against the storage base.
func (r *Resolver) ResolveStoragePath(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		return relativePath
	}
	return filepath.Join(r.storageBase, relativePath)
}

// HivePath builds the Hive-style relative path for a snapshot, per spec §4.2:
// sources/<source>/snapshot_name=<name>/snapshot_timestamp=<ts>
//
// The source segment's own path separators are preserved (forward slashes,
// normalized by the storage backend for object stores); source is not
// otherwise escaped.
func (r *Resolver) HivePath(source, snapshotName, timestamp string) string {
	return fmt.Sprintf("sources/%s/snapshot_name=%s/snapshot_timestamp=%s", source, snapshotName, timestamp)
}

// SourcesRoot returns the relative root under which all sources' snapshots
// live.
func (r *Resolver) SourcesRoot() string { return "sources" }

// SourceRoot returns the relative root for one source's snapshots.
func (r *Resolver) SourceRoot(source string) string {
	return fmt.Sprintf("sources/%s", source)
}

// WorkspaceConfigPath returns the absolute path to the workspace config
// document.
func (r *Resolver) WorkspaceConfigPath() string {
	return filepath.Join(r.workspaceRoot, "snapbase.yaml")
}

// IsWithinWorkspace reports whether path (relative or absolute) resolves to
// somewhere under the workspace root.
func (r *Resolver) IsWithinWorkspace(path string) bool {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.workspaceRoot, abs)
	}
	rel, err := filepath.Rel(r.workspaceRoot, abs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// MakeRelativeToWorkspace converts an absolute path to one relative to the
// workspace root. Returns ok=false if the path is not under the workspace.
func (r *Resolver) MakeRelativeToWorkspace(absolutePath string) (string, bool) {
	rel, err := filepath.Rel(r.workspaceRoot, absolutePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}
