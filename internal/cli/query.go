package cli

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/peter-fm/snapbase/internal/metrics"
	"github.com/peter-fm/snapbase/pkg/engine"
	"github.com/peter-fm/snapbase/pkg/query"
	"github.com/peter-fm/snapbase/pkg/workspace"
)

func newQueryCmd(workspaceRoot *string, verbose *bool) *cobra.Command {
	var source string
	var viewName string
	var allSources bool
	var pattern string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a SQL query over a source's registered snapshot history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)
			ctx := cmd.Context()

			ws, err := workspace.Open(ctx, *workspaceRoot, log)
			if err != nil {
				return fmt.Errorf("open workspace: %w", err)
			}

			eng, err := engine.Open(ctx, ":memory:", log)
			if err != nil {
				return fmt.Errorf("open engine: %w", err)
			}
			defer eng.Close()

			if err := eng.ConfigureForS3(ctx, ws.Config.ToStorageConfig()); err != nil {
				return fmt.Errorf("configure engine storage: %w", err)
			}

			surface := ws.Query(eng)

			switch {
			case allSources:
				if pattern == "" {
					pattern = "latest"
				}
				registered, err := surface.RegisterWorkspace(ctx, pattern, ws.Resolver.LatestSnapshotName)
				if err != nil {
					return fmt.Errorf("register workspace views: %w", err)
				}
				for _, v := range registered {
					log.Debug("registered view", "view", v)
				}
			case source != "":
				if err := surface.RegisterSource(ctx, source, viewName); err != nil {
					return fmt.Errorf("register source view: %w", err)
				}
			default:
				return fmt.Errorf("either --source or --all-sources is required")
			}

			start := time.Now()
			rows, err := surface.QueryRows(ctx, args[0])
			metrics.QueryDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.QueriesRunTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("run query: %w", err)
			}
			metrics.QueriesRunTotal.WithLabelValues("ok").Inc()

			return writeRowsCSV(os.Stdout, rows)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "register a Hive-partitioned view over one source's snapshots")
	cmd.Flags().StringVar(&viewName, "view", "", "view name for --source (defaults to \"data\")")
	cmd.Flags().BoolVar(&allSources, "all-sources", false, "register one view per source in the workspace")
	cmd.Flags().StringVar(&pattern, "snapshots", "latest", "with --all-sources: \"latest\", \"*\", or a snapshot_name glob")

	return cmd
}

func writeRowsCSV(out *os.File, rows []query.Row) error {
	if len(rows) == 0 {
		return nil
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}
