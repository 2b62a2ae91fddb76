package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/storage"
)

// DuckDBPather is the subset of storage.Backend the engine needs to build a
// read_parquet() path that works uniformly across local and S3 storage,
// including S3 Express directory-bucket naming.
type DuckDBPather interface {
	GetDuckDBPath(path string) string
}

// ConfigureForS3 installs and configures DuckDB's httpfs extension against
// the given S3 configuration, matching the original's
// configure_duckdb_for_storage. It does not check which backend is in use:
// httpfs is installed and loaded and the S3 settings are applied even when
// the workspace uses local storage.
func (e *Engine) ConfigureForS3(ctx context.Context, cfg storage.Config) error {
	statements := []string{
		fmt.Sprintf("SET s3_region=%s", quoteLiteral(cfg.Region)),
	}
	if cfg.AccessKeyID != "" {
		statements = append(statements, fmt.Sprintf("SET s3_access_key_id=%s", quoteLiteral(cfg.AccessKeyID)))
	}
	if cfg.SecretAccessKey != "" {
		statements = append(statements, fmt.Sprintf("SET s3_secret_access_key=%s", quoteLiteral(cfg.SecretAccessKey)))
	}
	if cfg.SessionToken != "" {
		statements = append(statements, fmt.Sprintf("SET s3_session_token=%s", quoteLiteral(cfg.SessionToken)))
	}
	if cfg.UseExpress && cfg.AvailabilityZone != "" {
		endpoint := fmt.Sprintf("s3express-%s.%s.amazonaws.com", cfg.AvailabilityZone, cfg.Region)
		statements = append(statements, fmt.Sprintf("SET s3_endpoint=%s", quoteLiteral(endpoint)))
	} else if cfg.Endpoint != "" {
		statements = append(statements, fmt.Sprintf("SET s3_endpoint=%s", quoteLiteral(stripScheme(cfg.Endpoint))))
	}

	if err := e.exec(ctx, "INSTALL httpfs"); err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "configure_s3", err.Error()))
	}
	if err := e.exec(ctx, "LOAD httpfs"); err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "configure_s3", err.Error()))
	}
	for _, stmt := range statements {
		if err := e.exec(ctx, stmt); err != nil {
			return snaperr.Engine(fmt.Errorf("%s: %s", "configure_s3", err.Error()))
		}
	}
	return nil
}

func stripScheme(endpoint string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(endpoint, prefix) {
			return strings.TrimPrefix(endpoint, prefix)
		}
	}
	return endpoint
}

// SanitizeViewName replaces characters DuckDB view names can't contain
// (dots, colons) with underscores, matching the original's
// sanitize_view_name so a source named "orders.csv" becomes "orders_csv".
func SanitizeViewName(source string) string {
	r := strings.NewReplacer(".", "_", ":", "_")
	return r.Replace(source)
}

// RegisterHiveView creates (or replaces) a view over every snapshot of
// source, using Hive partition discovery so snapshot_name and
// snapshot_timestamp are exposed as ordinary queryable columns.
func (e *Engine) RegisterHiveView(ctx context.Context, pather DuckDBPather, source, viewName string) error {
	queryPath := pather.GetDuckDBPath(fmt.Sprintf("sources/%s/*/*/data.parquet", source))
	return e.RegisterGlobView(ctx, viewName, queryPath)
}

// RegisterGlobView creates (or replaces) a view named viewName over the
// Hive-partitioned Parquet files matching duckDBGlob, a path already
// translated through GetDuckDBPath by the caller. Used directly by
// pkg/query when the glob is narrower than "every snapshot" (a single
// snapshot name, or the latest one).
func (e *Engine) RegisterGlobView(ctx context.Context, viewName, duckDBGlob string) error {
	sql := fmt.Sprintf(
		"CREATE OR REPLACE VIEW %q AS SELECT * FROM read_parquet(%s, hive_partitioning=true, union_by_name=true)",
		viewName, quoteLiteral(duckDBGlob),
	)
	if err := e.exec(ctx, sql); err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "register_view", err.Error()))
	}
	return nil
}

// BuildSnapshotPathPattern builds the read_parquet glob for a snapshot
// filter: "*" matches every snapshot, anything else is treated as a
// snapshot_name glob (exact name or a "*"-wildcarded pattern). Resolving
// "latest" to a concrete name is the caller's responsibility (pkg/workspace
// owns the snapshot listing needed for that), since the engine itself has
// no notion of snapshot ordering.
func BuildSnapshotPathPattern(pather DuckDBPather, source, snapshotPattern string) string {
	base := fmt.Sprintf("sources/%s", source)
	if snapshotPattern == "*" {
		return pather.GetDuckDBPath(fmt.Sprintf("%s/**/*.parquet", base))
	}
	return pather.GetDuckDBPath(fmt.Sprintf("%s/snapshot_name=%s/*/data.parquet", base, snapshotPattern))
}

// Query executes an arbitrary SQL statement against the engine's database,
// for callers (pkg/query) that want direct *sql.Rows access rather than the
// canonical string rendering ExtractAllData provides.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, snaperr.Engine(fmt.Errorf("%s: %s", "query", err.Error()))
	}
	return rows, nil
}

// QueryCSV executes query and writes its result set as CSV, with a header
// row, to outPath via DuckDB's own COPY...TO, avoiding a row-by-row materialize/encode pass for
// large result sets.
func (e *Engine) QueryCSV(ctx context.Context, query string, outPath string) error {
	copySQL := fmt.Sprintf("COPY (%s) TO %s (FORMAT CSV, HEADER true)", query, quoteLiteral(outPath))
	if err := e.exec(ctx, copySQL); err != nil {
		return snaperr.Engine(fmt.Errorf("%s: %s", "query_csv", err.Error()))
	}
	return nil
}
