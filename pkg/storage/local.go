package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peter-fm/snapbase/pkg/snapshot"
	"github.com/peter-fm/snapbase/pkg/snaperr"
)

// LocalBackend stores snapshots under a directory on the local filesystem,
// rooted at basePath (typically <workspace_root>/.snapbase).
type LocalBackend struct {
	basePath string
}

// NewLocalBackend builds a LocalBackend rooted at basePath. basePath must
// already be an absolute path; callers resolve relative workspace paths
// through pkg/pathresolver before calling this.
func NewLocalBackend(basePath string) *LocalBackend {
	return &LocalBackend{basePath: basePath}
}

func (b *LocalBackend) BasePath() string { return b.basePath }

func (b *LocalBackend) resolve(path string) string {
	return filepath.Join(b.basePath, filepath.FromSlash(path))
}

func (b *LocalBackend) EnsureDirectory(ctx context.Context, path string) error {
	full := b.resolve(path)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return snaperr.Storage("local", "ensure_directory", path, err)
	}
	return nil
}

func (b *LocalBackend) WriteFile(ctx context.Context, path string, data []byte) error {
	return b.WriteFileWithProgress(ctx, path, data, nil)
}

func (b *LocalBackend) WriteFileWithProgress(ctx context.Context, path string, data []byte, progress ProgressFunc) error {
	full := b.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return snaperr.Storage("local", "write_file", path, err)
	}

	// Write to a temp file in the same directory then rename, so a reader
	// never observes a partially written file (atomic from the caller's
	// perspective, spec §4.1).
	tmp, err := os.CreateTemp(filepath.Dir(full), ".snapbase-tmp-*")
	if err != nil {
		return snaperr.Storage("local", "write_file", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	const chunkSize = 1 << 20 // 1MiB, matching typical multipart chunk granularity
	total := int64(len(data))
	var written int64
	for written < total {
		end := written + chunkSize
		if end > total {
			end = total
		}
		n, werr := tmp.Write(data[written:end])
		written += int64(n)
		if werr != nil {
			tmp.Close()
			return snaperr.Storage("local", "write_file", path, werr)
		}
		if progress != nil {
			progress(written, total)
		}
	}
	if err := tmp.Close(); err != nil {
		return snaperr.Storage("local", "write_file", path, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return snaperr.Storage("local", "write_file", path, err)
	}
	return nil
}

func (b *LocalBackend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(b.resolve(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, snaperr.NotFound("file", path)
		}
		return nil, snaperr.Storage("local", "read_file", path, err)
	}
	return data, nil
}

func (b *LocalBackend) ListDirectories(ctx context.Context, path string) ([]string, error) {
	full := b.resolve(path)
	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, snaperr.Storage("local", "list_directories", path, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (b *LocalBackend) DeleteFile(ctx context.Context, path string) error {
	err := os.Remove(b.resolve(path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return snaperr.Storage("local", "delete_file", path, err)
	}
	return nil
}

func (b *LocalBackend) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(b.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, snaperr.Storage("local", "file_exists", path, err)
}

func (b *LocalBackend) SupportsDuckDBDirectAccess() bool { return true }

func (b *LocalBackend) GetDuckDBPath(path string) string {
	return b.resolve(path)
}

func (b *LocalBackend) ListSnapshots(ctx context.Context, source string) ([]snapshot.Metadata, error) {
	sourceRoot := "sources/" + source
	names, err := b.ListDirectories(ctx, sourceRoot)
	if err != nil {
		return nil, err
	}
	var out []snapshot.Metadata
	for _, nameDir := range names {
		if !strings.HasPrefix(nameDir, "snapshot_name=") {
			continue
		}
		tsDirs, err := b.ListDirectories(ctx, sourceRoot+"/"+nameDir)
		if err != nil {
			return nil, err
		}
		for _, tsDir := range tsDirs {
			if !strings.HasPrefix(tsDir, "snapshot_timestamp=") {
				continue
			}
			metaPath := sourceRoot + "/" + nameDir + "/" + tsDir + "/metadata.json"
			md, ok, err := b.readMetadataIfComplete(ctx, sourceRoot+"/"+nameDir+"/"+tsDir, metaPath)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, md)
			}
		}
	}
	return out, nil
}

// readMetadataIfComplete implements invariant I2: a snapshot is only
// considered present if both metadata.json and data.parquet exist. Callers
// (list_* operations) silently skip incomplete directories per spec §7.
func (b *LocalBackend) readMetadataIfComplete(ctx context.Context, dir, metaPath string) (snapshot.Metadata, bool, error) {
	hasData, err := b.FileExists(ctx, dir+"/data.parquet")
	if err != nil {
		return snapshot.Metadata{}, false, err
	}
	hasMeta, err := b.FileExists(ctx, metaPath)
	if err != nil {
		return snapshot.Metadata{}, false, err
	}
	if !hasData || !hasMeta {
		return snapshot.Metadata{}, false, nil
	}
	raw, err := b.ReadFile(ctx, metaPath)
	if err != nil {
		return snapshot.Metadata{}, false, err
	}
	var md snapshot.Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return snapshot.Metadata{}, false, snaperr.Storage("local", "read_metadata", metaPath, err)
	}
	return md, true, nil
}

func (b *LocalBackend) ListAllSnapshots(ctx context.Context) ([]snapshot.Metadata, error) {
	sources, err := walkSourceDirs(ctx, b.ListDirectories, "sources")
	if err != nil {
		return nil, err
	}
	var all []snapshot.Metadata
	for _, source := range sources {
		mds, err := b.ListSnapshots(ctx, source)
		if err != nil {
			return nil, err
		}
		all = append(all, mds...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Created.After(all[j].Created) })
	return all, nil
}

func (b *LocalBackend) ListSnapshotsForAllSources(ctx context.Context) (map[string][]string, error) {
	sources, err := walkSourceDirs(ctx, b.ListDirectories, "sources")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(sources))
	for _, source := range sources {
		nameDirs, err := b.ListDirectories(ctx, "sources/"+source)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, nd := range nameDirs {
			names = append(names, strings.TrimPrefix(nd, "snapshot_name="))
		}
		out[source] = names
	}
	return out, nil
}
