// Package cli implements the snapbase command-line driver: a thin cobra
// wrapper around pkg/workspace that is explicitly out of spec scope (spec
// §1's "CLI/library surface") but carried as the ambient entry point every
// teacher-repo command in this pack ships with.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/peter-fm/snapbase/internal/logger"
	"github.com/peter-fm/snapbase/internal/metrics"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// version/commit/date are overridden at build time via -ldflags, following
// the same build-info pattern the pack's metrics packages expose as a gauge.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Run builds the root command and its subcommands and executes it against
// os.Args, returning the process exit code.
func Run() ExitCode {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var verbose bool
	var workspaceRoot string
	var metricsAddr string

	rootCmd := &cobra.Command{
		Use:   "snapbase",
		Short: "Snapshot and diff structured tabular data.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if env := os.Getenv("SNAPBASE_WORKSPACE"); env != "" {
				workspaceRoot = env
			}
			if env := os.Getenv("SNAPBASE_METRICS_ADDR"); env != "" {
				metricsAddr = env
			}
			if metricsAddr != "" {
				log := newLogger(verbose)
				metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
				startMetricsServer(ctx, log, metricsAddr)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")
	rootCmd.PersistentFlags().StringVarP(&workspaceRoot, "workspace", "w", ".", "workspace root directory")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables the server)")

	rootCmd.AddCommand(
		newSnapshotCmd(&workspaceRoot, &verbose),
		newDiffCmd(&workspaceRoot, &verbose),
		newQueryCmd(&workspaceRoot, &verbose),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return exitCodeError
	}

	return exitCodeSuccess
}

func newLogger(verbose bool) *slog.Logger {
	return logger.New(verbose)
}

// startMetricsServer serves the default Prometheus registry on addr until
// ctx is cancelled. Listener errors are logged and non-fatal: a broken
// metrics endpoint should never take down snapshot/diff/query operations.
func startMetricsServer(ctx context.Context, log *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	go func() {
		log.Info("metrics server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server exited", "error", err)
		}
	}()
}
