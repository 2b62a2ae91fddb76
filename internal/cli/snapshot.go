package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/peter-fm/snapbase/internal/metrics"
	"github.com/peter-fm/snapbase/pkg/engine"
	"github.com/peter-fm/snapbase/pkg/workspace"
)

// newSnapshotCmd mirrors the teacher CLI's subcommand-with-inherited-flags
// shape: it reads --workspace/--verbose off the root command rather than
// redeclaring them, the same way internet.go pulls --env/--verbose.
func newSnapshotCmd(workspaceRoot *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create or inspect snapshots of a source file",
	}
	cmd.AddCommand(newSnapshotCreateCmd(workspaceRoot, verbose))
	return cmd
}

func newSnapshotCreateCmd(workspaceRoot *string, verbose *bool) *cobra.Command {
	var source string
	var name string

	cmd := &cobra.Command{
		Use:   "create <source-path>",
		Short: "Create a new snapshot of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcePath := args[0]
			if source == "" {
				source = sourcePath
			}

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

			start := time.Now()
			meta, err := ws.CreateSnapshot(ctx, eng, source, sourcePath, name)
			metrics.SnapshotCreateDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.SnapshotsCreatedTotal.WithLabelValues(source, "error").Inc()
				return fmt.Errorf("create snapshot: %w", err)
			}
			metrics.SnapshotsCreatedTotal.WithLabelValues(source, "ok").Inc()

			fmt.Fprintf(os.Stdout, "created snapshot %q for %q (%d rows, %d columns)\n",
				meta.Name, meta.Source, meta.RowCount, meta.ColumnCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Hive partition key for this source (defaults to the source path)")
	cmd.Flags().StringVar(&name, "name", "", "snapshot name (auto-generated from the workspace's configured pattern when empty)")

	return cmd
}
