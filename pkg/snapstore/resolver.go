// Package snapstore implements the snapshot writer (C4) and resolver (C5):
// the operational layer that ties the storage backend, columnar engine, and
// change-detection packages together around the data model defined in
// pkg/snapshot.
package snapstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peter-fm/snapbase/pkg/pathresolver"
	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/snapshot"
	"github.com/peter-fm/snapbase/pkg/storage"
)

// Ref identifies a snapshot either by its name within a source, or by a
// direct path to a metadata.json/data.parquet pair, matching the original's
// SnapshotRef enum.
type Ref struct {
	Name string
	Path string
}

// RefFromString classifies a user-supplied string the same way the
// original does: something that exists on disk, or contains a path
// separator, is a Path reference; otherwise it's a bare Name.
func RefFromString(s string) Ref {
	if _, err := os.Stat(s); err == nil {
		return Ref{Path: s}
	}
	if strings.ContainsAny(s, "/\\") {
		return Ref{Path: s}
	}
	return Ref{Name: s}
}

// Resolved is a snapshot reference resolved to concrete backend paths.
type Resolved struct {
	Name         string
	MetadataPath string
	DataPath     string
	Metadata     *snapshot.Metadata
}

// Resolver resolves snapshot names, dates, and paths to concrete Hive
// partition locations, restricted to one source at a time (invariant P10:
// a snapshot name is only meaningful within its owning source).
type Resolver struct {
	backend storage.Backend
	paths   *pathresolver.Resolver
}

func NewResolver(backend storage.Backend, paths *pathresolver.Resolver) *Resolver {
	return &Resolver{backend: backend, paths: paths}
}

// ResolveByNameForSource finds the snapshot named name under source. The
// source argument is the Hive partition key (e.g. "orders.csv"), already
// isolating the search to that source's own tree — there is no cross-source
// name collision to disambiguate, unlike the original's path-fingerprint
// matching against a flat, unscoped snapshot list.
func (r *Resolver) ResolveByNameForSource(ctx context.Context, source, name string) (*Resolved, error) {
	mds, err := r.backend.ListSnapshots(ctx, source)
	if err != nil {
		return nil, err
	}
	for _, md := range mds {
		if md.Name == name {
			return r.resolvedFrom(source, md), nil
		}
	}
	return nil, snaperr.NotFound("snapshot", name)
}

func (r *Resolver) resolvedFrom(source string, md snapshot.Metadata) *Resolved {
	hiveDir := r.paths.HivePath(source, md.Name, snapshot.FormatTimestamp(md.Created))
	m := md
	return &Resolved{
		Name:         md.Name,
		MetadataPath: hiveDir + "/metadata.json",
		DataPath:     hiveDir + "/data.parquet",
		Metadata:     &m,
	}
}

// ListSnapshotNames returns every snapshot name under source, ordered
// oldest-first (the natural Hive-listing order), matching the original's
// list_snapshots.
func (r *Resolver) ListSnapshotNames(ctx context.Context, source string) ([]string, error) {
	mds, err := r.backend.ListSnapshots(ctx, source)
	if err != nil {
		return nil, err
	}
	sort.Slice(mds, func(i, j int) bool { return mds[i].Created.Before(mds[j].Created) })
	names := make([]string, len(mds))
	for i, md := range mds {
		names[i] = md.Name
	}
	return names, nil
}

// LatestSnapshotName returns the most recently created snapshot for source,
// or ok=false when source has no snapshots yet.
func (r *Resolver) LatestSnapshotName(ctx context.Context, source string) (name string, ok bool, err error) {
	mds, err := r.backend.ListSnapshots(ctx, source)
	if err != nil {
		return "", false, err
	}
	if len(mds) == 0 {
		return "", false, nil
	}
	latest := mds[0]
	for _, md := range mds[1:] {
		if md.Created.After(latest.Created) {
			latest = md
		}
	}
	return latest.Name, true, nil
}

// ResolveLatestForSource resolves the most recent snapshot of source.
func (r *Resolver) ResolveLatestForSource(ctx context.Context, source string) (*Resolved, error) {
	name, ok, err := r.LatestSnapshotName(ctx, source)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, snaperr.NotFound("snapshot", "no snapshots found for source "+source)
	}
	return r.ResolveByNameForSource(ctx, source, name)
}

// ResolveOrLatestForSource resolves ref if non-nil, or falls back to the
// latest snapshot of source.
func (r *Resolver) ResolveOrLatestForSource(ctx context.Context, source string, ref *Ref) (*Resolved, error) {
	if ref != nil {
		if ref.Path != "" {
			return r.ResolveByPath(ref.Path)
		}
		return r.ResolveByNameForSource(ctx, source, ref.Name)
	}
	return r.ResolveLatestForSource(ctx, source)
}

// ResolveByDateForSource finds the latest snapshot of source created at or
// before dateStr, matching the original's three accepted date formats.
func (r *Resolver) ResolveByDateForSource(ctx context.Context, source, dateStr string) (*Resolved, error) {
	target, err := parseDateString(dateStr)
	if err != nil {
		return nil, err
	}

	mds, err := r.backend.ListSnapshots(ctx, source)
	if err != nil {
		return nil, err
	}

	var best *snapshot.Metadata
	for i := range mds {
		md := &mds[i]
		if md.Created.After(target) {
			continue
		}
		if best == nil || md.Created.After(best.Created) {
			best = md
		}
	}
	if best == nil {
		return nil, snaperr.NotFound("snapshot", fmt.Sprintf("no snapshots found before %s", target.Format("2006-01-02 15:04:05 UTC")))
	}
	return r.resolvedFrom(source, *best), nil
}

// ResolveByPath resolves a direct metadata.json or data.parquet path.
func (r *Resolver) ResolveByPath(path string) (*Resolved, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, snaperr.NotFound("snapshot path", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	dir := filepath.Dir(path)
	name := strings.TrimPrefix(filepath.Base(filepath.Dir(dir)), "snapshot_name=") // best-effort: snapshot_name=<x> ancestor

	switch ext {
	case ".json":
		dataPath := filepath.Join(dir, "data.parquet")
		return &Resolved{Name: name, MetadataPath: path, DataPath: dataPath}, nil
	case ".parquet":
		metaPath := filepath.Join(dir, "metadata.json")
		return &Resolved{Name: name, MetadataPath: metaPath, DataPath: path}, nil
	default:
		return nil, snaperr.InvalidInput(path, "not a recognized snapshot path")
	}
}

// parseDateString accepts "YYYY-MM-DD HH:MM:SS", "YYYY-MM-DD", or RFC 3339,
// the same three formats the original tries in order.
func parseDateString(s string) (time.Time, error) {
	layouts := []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, snaperr.InvalidInput(s, "expected YYYY-MM-DD, YYYY-MM-DD HH:MM:SS, or ISO 8601")
}
