package runner_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/wavecut/internal/catalog"
	"github.com/zjrosen/wavecut/internal/fetcher"
	"github.com/zjrosen/wavecut/internal/index"
	"github.com/zjrosen/wavecut/internal/log"
	"github.com/zjrosen/wavecut/internal/metrics"
	"github.com/zjrosen/wavecut/internal/planner"
	"github.com/zjrosen/wavecut/internal/report"
	"github.com/zjrosen/wavecut/internal/runner"
	"github.com/zjrosen/wavecut/internal/selector"
	"github.com/zjrosen/wavecut/internal/staging"
	"github.com/zjrosen/wavecut/internal/testutil"
)

var floresOrigin = time.Date(2024, 3, 11, 2, 30, 0, 0, time.UTC)

// eventTable is Alor (staged), Flores Sea (fetch fails) and an empty row.
func eventTable() []catalog.Event {
	return []catalog.Event{
		testutil.AlorEvent(),
		testutil.EventOn(floresOrigin, 4.6, 12.7, "Flores Sea"),
		{Magnitude: 3.1, Remarks: "no date"},
	}
}

func newFetcher(dir string) *testutil.FakeFetcher {
	return testutil.NewFakeFetcher(dir).
		Stage("070", 2024, testutil.NewStaging().
			WithFile("IA.ALRB.mseed", testutil.NewTrace("ALRB")).
			WithFile("IA.PAFM.mseed", testutil.NewTrace("PAFM"))).
		Fail("071", 2024, nil)
}

func newConfig(t *testing.T, root string) runner.Config {
	t.Helper()
	stage := staging.New(filepath.Join(root, "staging"))
	return runner.Config{
		OutputDir: filepath.Join(root, "out"),
		Staging:   stage,
		Offsets:   planner.DefaultOffsets(),
		Fetcher:   newFetcher(stage.Path()),
		Selector:  selector.New([]string{"PAFM"}),
	}
}

func TestRunEvents_CountsAndLedger(t *testing.T) {
	cfg := newConfig(t, t.TempDir())
	console := &bytes.Buffer{}
	cfg.Console = console

	res, err := runner.New(cfg, runner.WithRunID(func() string { return "run-1" })).
		RunEvents(context.Background(), eventTable())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, report.LedgerPath(cfg.OutputDir), res.LedgerPath)
	require.Equal(t, []string{filepath.Join(cfg.OutputDir, "2024", testutil.AlorFileName)}, res.Artifacts)

	ledger, err := os.ReadFile(res.LedgerPath)
	require.NoError(t, err)
	assert.Equal(t,
		report.LedgerHeader+"\n"+`2024-03-11,02:30:00,4.6,-8.5,124.0,12.7,071,2024,"Flores Sea"`+"\n",
		string(ledger))

	out := console.String()
	assert.Contains(t, out, "[SKIP] Empty data at row 2")
	assert.Contains(t, out, "Total event input: 3")
	assert.Contains(t, out, "Total succeeded  : 1")
	assert.Contains(t, out, "Total failed     : 1")
	assert.Contains(t, out, "Failed events saved to: "+res.LedgerPath)

	entries, err := os.ReadDir(cfg.Staging.Path())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunEvents_IsIdempotent(t *testing.T) {
	run := func() (runner.RunResult, []string) {
		cfg := newConfig(t, t.TempDir())
		res, err := runner.New(cfg).RunEvents(context.Background(), eventTable())
		require.NoError(t, err)
		var names []string
		for _, a := range res.Artifacts {
			names = append(names, filepath.Base(a))
		}
		return res, names
	}

	first, firstNames := run()
	second, secondNames := run()

	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.Equal(t, first.Failed, second.Failed)
	assert.Equal(t, first.Skipped, second.Skipped)
	assert.Equal(t, firstNames, secondNames)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunEvents_LedgerIsOverwritten(t *testing.T) {
	root := t.TempDir()
	cfg := newConfig(t, root)

	_, err := runner.New(cfg).RunEvents(context.Background(), eventTable())
	require.NoError(t, err)
	_, err = runner.New(cfg).RunEvents(context.Background(), eventTable())
	require.NoError(t, err)

	ledger, err := os.ReadFile(report.LedgerPath(cfg.OutputDir))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(ledger), "Flores Sea"))

	// the year log is append-only across runs
	yearLog, err := os.ReadFile(report.YearLogPath(cfg.OutputDir, 2024))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(yearLog), "[SAVED]"))
}

func TestRunEvents_PurgesLeftoverStaging(t *testing.T) {
	cfg := newConfig(t, t.TempDir())
	cfg.Fetcher = testutil.NewFakeFetcher(cfg.Staging.Path())
	cfg.Selector = nil

	// a stale PAFM file from an interrupted run must not satisfy the event
	testutil.NewStaging().WithFile("stale.mseed", testutil.NewTrace("PAFM")).Build(t, cfg.Staging.Path())

	res, err := runner.New(cfg).RunEvents(context.Background(), []catalog.Event{testutil.AlorEvent()})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
}

func TestRunEvents_RecordsIndexAndMetrics(t *testing.T) {
	root := t.TempDir()
	cfg := newConfig(t, root)

	ix, err := index.Open(context.Background(), filepath.Join(root, "out", "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	cfg.Index = ix
	cfg.Metrics = metrics.New()
	cfg.MetricsPath = filepath.Join(root, "out", "wavecut.prom")

	res, err := runner.New(cfg).RunEvents(context.Background(), eventTable())
	require.NoError(t, err)

	outcomes, err := ix.Outcomes(context.Background(), res.RunID)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, index.StatusSaved, outcomes[0].Status)
	assert.Equal(t, "20240310T081500Z", outcomes[0].EventKey)
	assert.Equal(t, 1, outcomes[0].Traces)
	assert.Equal(t, index.StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Reason, "archive fetch failed")
	assert.Equal(t, index.StatusSkipped, outcomes[2].Status)

	runs, err := ix.Runs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, 1, runs[0].Succeeded)
	assert.False(t, runs[0].FinishedAt.IsZero())

	prom, err := os.ReadFile(cfg.MetricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `wavecut_events_total{outcome="saved"} 1`)
	assert.Contains(t, string(prom), `wavecut_events_total{outcome="skipped"} 1`)
	assert.Contains(t, string(prom), "wavecut_traces_written_total 1")
}

func TestRunEvents_LogsReplacedArtifact(t *testing.T) {
	root := t.TempDir()
	var diag bytes.Buffer
	log.InitWriter(&diag, log.LevelInfo)
	t.Cleanup(func() { log.InitWriter(io.Discard, log.LevelError) })

	ix, err := index.Open(context.Background(), filepath.Join(root, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	for i := 0; i < 2; i++ {
		cfg := newConfig(t, root)
		cfg.Index = ix
		_, err := runner.New(cfg).RunEvents(context.Background(), eventTable())
		require.NoError(t, err)
	}

	assert.Equal(t, 1, strings.Count(diag.String(), "Replaced artifact from an earlier run"))
	assert.Contains(t, diag.String(), "event=20240310T081500Z")
}

func TestRunEvents_CancelledBeforeStart(t *testing.T) {
	cfg := newConfig(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := runner.New(cfg).RunEvents(ctx, eventTable())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Succeeded+res.Failed+res.Skipped)
	assert.FileExists(t, res.LedgerPath)
}

func TestRunEvents_SignalDuringFetchFinishesEvent(t *testing.T) {
	cfg := newConfig(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the download sees the signal arrive mid-flight, as exec.CommandContext would
	fake := newFetcher(cfg.Staging.Path())
	cfg.Fetcher = fetcher.Func(func(fctx context.Context, day string, year int) error {
		cancel()
		if err := fctx.Err(); err != nil {
			return err
		}
		return fake.Fetch(fctx, day, year)
	})
	console := &bytes.Buffer{}
	cfg.Console = console

	res, err := runner.New(cfg).RunEvents(ctx, eventTable())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, fake.Calls(), 1)
	assert.Contains(t, console.String(), "[ERROR] Run cancelled with 2 events left")

	ledger, err := os.ReadFile(res.LedgerPath)
	require.NoError(t, err)
	assert.Equal(t, report.LedgerHeader+"\n", string(ledger))
}

func TestRunEvents_SignalDuringLastEventIsReported(t *testing.T) {
	cfg := newConfig(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := newFetcher(cfg.Staging.Path())
	cfg.Fetcher = fetcher.Func(func(fctx context.Context, day string, year int) error {
		cancel()
		return fake.Fetch(fctx, day, year)
	})

	res, err := runner.New(cfg).RunEvents(ctx, []catalog.Event{testutil.AlorEvent()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Succeeded)
}

func TestRun_ReadsEventTable(t *testing.T) {
	root := t.TempDir()
	cfg := newConfig(t, root)
	cfg.CatalogPath = filepath.Join(root, "filtered.csv")
	require.NoError(t, catalog.WriteCSVFile(cfg.CatalogPath, eventTable()))

	res, err := runner.New(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
}

func TestRun_MissingTable(t *testing.T) {
	cfg := newConfig(t, t.TempDir())
	cfg.CatalogPath = filepath.Join(t.TempDir(), "nope.csv")

	_, err := runner.New(cfg).Run(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}
