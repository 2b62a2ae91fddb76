package storage

import "context"

// listDirFunc is the shape shared by LocalBackend.ListDirectories and
// S3Backend.ListDirectories, allowing walkSourceDirs to recurse over either
// backend without depending on the Backend interface itself.
type listDirFunc func(ctx context.Context, path string) ([]string, error)

// walkSourceDirs discovers every source under "sources/", descending
// through however many path segments the source string itself contains
// (file-path sources preserve their own directory structure, e.g.
// "reports/orders.csv" becomes "sources/reports/orders.csv/..."). A
// directory is a source root once one of its children is a
// "snapshot_name=" partition; that rules out treating an intermediate path
// segment as a source in its own right. Matches spec §4.1's
// list_all_snapshots "breadth-first traversal of sources/**".
func walkSourceDirs(ctx context.Context, list listDirFunc, dir string) ([]string, error) {
	children, err := list(ctx, dir)
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		if hasPrefix(c, "snapshot_name=") {
			return []string{stripSourcesPrefix(dir)}, nil
		}
	}

	var sources []string
	for _, c := range children {
		sub, err := walkSourceDirs(ctx, list, dir+"/"+c)
		if err != nil {
			return nil, err
		}
		sources = append(sources, sub...)
	}
	return sources, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func stripSourcesPrefix(dir string) string {
	const prefix = "sources/"
	if hasPrefix(dir, prefix) {
		return dir[len(prefix):]
	}
	return dir
}
