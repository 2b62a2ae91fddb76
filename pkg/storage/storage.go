// Package storage implements the uniform storage-backend abstraction of
// spec §4.1 (C1): byte-oriented I/O over local filesystem and S3-compatible
// object stores, directory listing, and path translation for the embedded
// columnar engine.
package storage

import (
	"context"
	"io"

	"github.com/peter-fm/snapbase/pkg/snapshot"
)

// ProgressFunc is invoked periodically during a write with the number of
// bytes written so far and the total size, mirroring the original's
// progress-bar callback.
type ProgressFunc func(written, total int64)

// Backend is the uniform interface over local filesystem and S3-compatible
// object stores (spec §4.1). All paths are backend-relative (rooted at the
// workspace's storage tree or the S3 prefix); callers never pass OS paths
// across this boundary except via GetDuckDBPath's return value.
type Backend interface {
	// BasePath returns the backend's root: an absolute filesystem path for
	// local storage, or "s3://bucket/prefix" for S3.
	BasePath() string

	// EnsureDirectory creates intermediate path segments on local storage;
	// a no-op on object stores.
	EnsureDirectory(ctx context.Context, path string) error

	// WriteFile writes data atomically from the caller's perspective.
	WriteFile(ctx context.Context, path string, data []byte) error

	// WriteFileWithProgress is WriteFile with progress reporting.
	WriteFileWithProgress(ctx context.Context, path string, data []byte, progress ProgressFunc) error

	// ReadFile returns the whole byte sequence, or a NotFoundError if
	// missing.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// ListDirectories returns the immediate child "directory" names under
	// path (Hive partition segments, source names, etc).
	ListDirectories(ctx context.Context, path string) ([]string, error)

	// DeleteFile deletes path. Idempotent: deleting a missing file is not
	// an error.
	DeleteFile(ctx context.Context, path string) error

	// FileExists reports whether path exists.
	FileExists(ctx context.Context, path string) (bool, error)

	// SupportsDuckDBDirectAccess reports whether the embedded columnar
	// engine can read this backend's paths directly (true for both
	// backends in this design).
	SupportsDuckDBDirectAccess() bool

	// GetDuckDBPath translates a backend-relative path to what the
	// columnar engine's file reader expects: a native filesystem path for
	// local storage, or an s3:// URI for S3 (including the Express
	// directory-bucket suffix when configured).
	GetDuckDBPath(path string) string

	// ListSnapshots enumerates all snapshots for one source by reading
	// each metadata.json.
	ListSnapshots(ctx context.Context, source string) ([]snapshot.Metadata, error)

	// ListAllSnapshots walks sources/** collecting metadata, sorted by
	// Created descending.
	ListAllSnapshots(ctx context.Context) ([]snapshot.Metadata, error)

	// ListSnapshotsForAllSources returns source -> ordered snapshot names,
	// from a name-only listing (does not read metadata.json).
	ListSnapshotsForAllSources(ctx context.Context) (map[string][]string, error)
}

// Reader is a seekable byte stream. Neither LocalBackend nor S3Backend uses
// it: their writes take the whole payload as a []byte.
type Reader interface {
	io.Reader
	io.Seeker
}
