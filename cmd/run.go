package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/wavecut/internal/config"
	"github.com/zjrosen/wavecut/internal/fetcher"
	"github.com/zjrosen/wavecut/internal/index"
	"github.com/zjrosen/wavecut/internal/log"
	"github.com/zjrosen/wavecut/internal/metrics"
	"github.com/zjrosen/wavecut/internal/runner"
	"github.com/zjrosen/wavecut/internal/selector"
	"github.com/zjrosen/wavecut/internal/staging"
	"github.com/zjrosen/wavecut/internal/tracing"
)

var runInput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cut event waveforms for every row of the event table",
	Long: `Process the filtered event table one event at a time: download the event's
day into the staging directory, cut every matching trace to the window around
the origin time, save the result under {output_dir}/{year}/ and empty the
staging directory again.

Failed events are listed in {output_dir}/failed.log, which is rewritten by
every run.

Examples:
  wavecut run
  wavecut run --input alor_2024.csv
  WAVECUT_STATIONS=PAFM,ALRB wavecut run`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "event table (overrides catalog.filtered)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input := cfg.Catalog.Filtered
	if runInput != "" {
		input = runInput
	}

	provider, err := tracing.NewProvider(ctx, cfg.TracingConfig())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatTrace, "Failed to flush traces", err)
		}
	}()

	stage := staging.New(cfg.StagingDir)
	sel := selector.New(cfg.Stations)
	if stations := sel.Stations(); len(stations) > 0 {
		log.Info(log.CatSelect, "Station allow-list", "stations", strings.Join(stations, ","))
	}
	rc := runner.Config{
		CatalogPath: input,
		OutputDir:   cfg.OutputDir,
		Staging:     stage,
		Offsets:     cfg.Window.Offsets(),
		Format:      cfg.Format,
		Fetcher:     buildFetcher(cfg, stage, cmd),
		Selector:    sel,
		Tracer:      provider.Tracer(),
		Console:     cmd.OutOrStdout(),
		Boxed:       true,
	}

	if cfg.Index.Enabled {
		ix, err := index.Open(ctx, cfg.IndexPath())
		if err != nil {
			return fmt.Errorf("opening run index: %w", err)
		}
		defer func() { _ = ix.Close() }()
		rc.Index = ix
	}
	if cfg.Metrics.Enabled {
		rc.Metrics = metrics.New()
		rc.MetricsPath = cfg.MetricsPath()
	}

	_, err = runner.New(rc).Run(ctx)
	return err
}

// buildFetcher wraps the download command with the optional failure cache
// and staging watcher.
func buildFetcher(c config.Config, stage staging.Dir, cmd *cobra.Command) fetcher.ArchiveFetcher {
	var f fetcher.ArchiveFetcher = fetcher.NewExec(fetcher.ExecConfig{
		Command:    c.Fetch.Command,
		Args:       c.Fetch.Args,
		WorkDir:    c.Fetch.WorkDir,
		StagingDir: stage.Path(),
		Timeout:    c.Fetch.Timeout,
		Output:     cmd.OutOrStdout(),
	})
	if c.Fetch.WatchStaging {
		out := cmd.ErrOrStderr()
		f = fetcher.NewWatching(f, stage.Path(), func(day string, year int, names []string) {
			_, _ = fmt.Fprintf(out, "[INFO] %d/%s: %d file(s) staged\n", year, day, len(names))
		})
	}
	if c.Fetch.FailureCacheTTL > 0 {
		f = fetcher.NewFailureCache(f, c.Fetch.FailureCacheTTL)
	}
	return f
}
