package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/peter-fm/snapbase/internal/metrics"
	"github.com/peter-fm/snapbase/pkg/diff"
	"github.com/peter-fm/snapbase/pkg/workspace"
)

func newDiffCmd(workspaceRoot *string, verbose *bool) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "diff <baseline> <current>",
		Short: "Diff two snapshots of the same source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return fmt.Errorf("--source is required")
			}

			log := newLogger(*verbose)
			ctx := cmd.Context()

			ws, err := workspace.Open(ctx, *workspaceRoot, log)
			if err != nil {
				return fmt.Errorf("open workspace: %w", err)
			}

			start := time.Now()
			result, err := ws.Diff(ctx, source, args[0], args[1])
			metrics.DiffDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.DiffsRunTotal.WithLabelValues(source, "error").Inc()
				return fmt.Errorf("diff snapshots: %w", err)
			}
			metrics.DiffsRunTotal.WithLabelValues(source, "ok").Inc()

			printDiffResult(os.Stdout, *result)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Hive partition key for the source being diffed (required)")

	return cmd
}

func printDiffResult(w io.Writer, result diff.Result) {
	if !result.Schema.HasChanges() && !result.Rows.HasChanges() {
		fmt.Fprintln(w, "no changes")
		return
	}

	if result.Schema.HasChanges() {
		fmt.Fprintln(w, "schema changes:")
		if result.Schema.ColumnOrder != nil {
			fmt.Fprintf(w, "  column order: %v -> %v\n", result.Schema.ColumnOrder.Before, result.Schema.ColumnOrder.After)
		}
		for _, c := range result.Schema.ColumnsAdded {
			fmt.Fprintf(w, "  + column %s (%s)\n", c.Name, c.DataType)
		}
		for _, c := range result.Schema.ColumnsRemoved {
			fmt.Fprintf(w, "  - column %s (%s)\n", c.Name, c.DataType)
		}
		for _, r := range result.Schema.ColumnsRenamed {
			fmt.Fprintf(w, "  ~ column %s -> %s\n", r.From, r.To)
		}
		for _, t := range result.Schema.TypeChanges {
			fmt.Fprintf(w, "  ~ column %s type %s -> %s\n", t.Column, t.From, t.To)
		}
	}

	if result.Rows.HasChanges() {
		fmt.Fprintf(w, "row changes: %d modified, %d added, %d removed\n",
			len(result.Rows.Modified), len(result.Rows.Added), len(result.Rows.Removed))

		mods := append([]diff.RowModification(nil), result.Rows.Modified...)
		sort.Slice(mods, func(i, j int) bool { return mods[i].RowIndex < mods[j].RowIndex })
		for _, m := range mods {
			columns := make([]string, 0, len(m.Changes))
			for col := range m.Changes {
				columns = append(columns, col)
			}
			sort.Strings(columns)
			for _, col := range columns {
				change := m.Changes[col]
				fmt.Fprintf(w, "  row %d: %s: %q -> %q\n", m.RowIndex, col, change.Before, change.After)
			}
		}
	}
}
