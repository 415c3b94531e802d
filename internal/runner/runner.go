// Package runner drives a whole run: it walks the filtered event table in
// order, hands every valid row to the event processor and folds the outcomes
// into a RunResult.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/wavecut/internal/catalog"
	"github.com/zjrosen/wavecut/internal/fetcher"
	"github.com/zjrosen/wavecut/internal/index"
	"github.com/zjrosen/wavecut/internal/log"
	"github.com/zjrosen/wavecut/internal/metrics"
	"github.com/zjrosen/wavecut/internal/planner"
	"github.com/zjrosen/wavecut/internal/processor"
	"github.com/zjrosen/wavecut/internal/report"
	"github.com/zjrosen/wavecut/internal/selector"
	"github.com/zjrosen/wavecut/internal/staging"
	"github.com/zjrosen/wavecut/internal/tracing"
)

// Config holds everything a run needs. Fetcher, Staging and OutputDir are
// required; Index, Metrics and Tracer are optional.
type Config struct {
	CatalogPath string
	OutputDir   string
	Staging     staging.Dir
	Offsets     planner.Offsets
	Format      string // artifact extension, "mseed" when empty

	Fetcher  fetcher.ArchiveFetcher
	Selector *selector.Selector // nil keeps every station

	Index       *index.Index
	Metrics     *metrics.Metrics
	MetricsPath string // textfile written at the end when Metrics is set
	Tracer      trace.Tracer

	Console io.Writer // nil discards console output
	Boxed   bool      // frame the summary
}

// RunResult is what a run produced.
type RunResult struct {
	RunID      string
	Total      int // rows in the input table
	Succeeded  int
	Failed     int
	Skipped    int // rows that could not be planned
	LedgerPath string
	Artifacts  []string // in input order
	Elapsed    time.Duration
}

// Summary converts r for printing.
func (r RunResult) Summary() report.Summary {
	return report.Summary{
		RunID:      r.RunID,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		LedgerPath: r.LedgerPath,
		Elapsed:    r.Elapsed,
	}
}

// Runner executes runs. Events are processed strictly one at a time since
// they share the staging directory.
type Runner struct {
	cfg   Config
	newID func() string
	now   func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunID replaces the uuid run id generator.
func WithRunID(fn func() string) Option {
	return func(r *Runner) { r.newID = fn }
}

// New returns a Runner for cfg.
func New(cfg Config, opts ...Option) *Runner {
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer(tracing.ServiceName)
	}
	if cfg.Selector == nil {
		cfg.Selector = selector.New(nil)
	}
	r := &Runner{
		cfg:   cfg,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loads the event table from CatalogPath and runs it.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	events, err := catalog.ReadCSVFile(r.cfg.CatalogPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("loading event table: %w", err)
	}
	return r.RunEvents(ctx, events)
}

// RunEvents processes events in order. Per-event problems end up in the
// result and the ledger; the error is reserved for setup failures and for
// cancellation between events, in which case the partial result is returned
// alongside ctx.Err().
func (r *Runner) RunEvents(ctx context.Context, events []catalog.Event) (RunResult, error) {
	started := r.now()
	res := RunResult{
		RunID:      r.newID(),
		Total:      len(events),
		LedgerPath: report.LedgerPath(r.cfg.OutputDir),
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}
	if err := r.cfg.Staging.Ensure(); err != nil {
		return res, err
	}
	ledger, err := report.CreateLedger(res.LedgerPath)
	if err != nil {
		return res, err
	}
	defer func() { _ = ledger.Close() }()
	journal := report.NewJournal(r.cfg.OutputDir, r.cfg.Console)
	defer func() { _ = journal.Close() }()

	r.purgeLeftovers(journal)

	ctx, span := tracing.Start(ctx, r.cfg.Tracer, tracing.SpanRun, tracing.AttrRunID.String(res.RunID))
	log.Info(log.CatRun, "Run started", "run_id", res.RunID, "events", len(events), "input", r.cfg.CatalogPath)
	r.indexBegin(ctx, res.RunID, started)

	proc := processor.New(processor.Config{
		Fetcher:   r.cfg.Fetcher,
		Selector:  r.cfg.Selector,
		Staging:   r.cfg.Staging,
		OutputDir: r.cfg.OutputDir,
		Journal:   journal,
		Ledger:    ledger,
		Metrics:   r.cfg.Metrics,
		Tracer:    r.cfg.Tracer,
	})

	var runErr error
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			log.Warn(log.CatRun, "Run cancelled", "run_id", res.RunID, "remaining", len(events)-i)
			journal.Print(fmt.Sprintf("[ERROR] Run cancelled with %d events left", len(events)-i))
			runErr = err
			break
		}
		// an event runs to completion once started; the signal is honoured
		// before the next one
		r.step(context.WithoutCancel(ctx), proc, journal, &res, i, ev)
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	res.Elapsed = r.now().Sub(started)
	r.finish(ctx, res)
	tracing.End(span, runErr)

	if err := report.WriteSummary(r.cfg.Console, res.Summary(), r.cfg.Boxed); err != nil {
		log.ErrorErr(log.CatRun, "Failed to print summary", err)
	}
	return res, runErr
}

func (r *Runner) step(ctx context.Context, proc *processor.Processor, journal *report.Journal, res *RunResult, seq int, ev catalog.Event) {
	if err := ev.Validate(); err != nil {
		res.Skipped++
		journal.Print(fmt.Sprintf("[SKIP] Empty data at row %d", seq))
		log.Info(log.CatRun, "Row skipped", "row", seq, "reason", err)
		r.cfg.Metrics.Event(string(index.StatusSkipped))
		r.indexRecord(ctx, index.Outcome{RunID: res.RunID, Seq: seq, Status: index.StatusSkipped, Reason: err.Error()})
		return
	}

	plan, err := planner.New(ev, r.cfg.Offsets, r.cfg.Format)
	if err != nil {
		res.Skipped++
		journal.Print(fmt.Sprintf("[SKIP] Row %d: %v", seq, err))
		log.Info(log.CatRun, "Row skipped", "row", seq, "reason", err)
		r.cfg.Metrics.Event(string(index.StatusSkipped))
		r.indexRecord(ctx, index.Outcome{RunID: res.RunID, Seq: seq, Status: index.StatusSkipped, Reason: err.Error()})
		return
	}

	out := proc.Process(ctx, plan)

	rec := index.Outcome{
		RunID:    res.RunID,
		Seq:      seq,
		EventKey: plan.Key(),
		Day:      plan.Day,
		Year:     plan.Year,
		Traces:   out.Traces,
	}
	if out.Saved() {
		r.notePrevious(ctx, plan.Key(), out.Artifact)
		res.Succeeded++
		res.Artifacts = append(res.Artifacts, out.Artifact)
		rec.Status = index.StatusSaved
		rec.Artifact = out.Artifact
	} else {
		res.Failed++
		rec.Status = index.StatusFailed
		if out.Err != nil {
			rec.Reason = out.Err.Error()
		}
	}
	r.cfg.Metrics.Event(string(rec.Status))
	r.indexRecord(ctx, rec)
}

// purgeLeftovers empties a staging directory left dirty by an earlier,
// interrupted run so its files cannot leak into the first event.
func (r *Runner) purgeLeftovers(journal *report.Journal) {
	entries, err := r.cfg.Staging.List()
	if err != nil || len(entries) == 0 {
		return
	}
	log.Warn(log.CatRun, "Staging directory not empty at start", "path", r.cfg.Staging.Path(), "entries", len(entries))
	_, errs := r.cfg.Staging.Purge()
	for _, e := range errs {
		journal.Print(fmt.Sprintf("[ERROR] Failed to delete %s: %v", e.Path, e.Err))
	}
}

// notePrevious logs when an earlier run already saved this event, meaning its
// artifact was just overwritten.
func (r *Runner) notePrevious(ctx context.Context, key, artifact string) {
	if r.cfg.Index == nil {
		return
	}
	prev, ok, err := r.cfg.Index.LastSaved(ctx, key)
	if err != nil {
		log.ErrorErr(log.CatIndex, "Failed to look up earlier artifact", err, "event", key)
		return
	}
	if ok {
		log.Info(log.CatRun, "Replaced artifact from an earlier run", "event", key, "previous", prev, "artifact", artifact)
	}
}

func (r *Runner) indexBegin(ctx context.Context, id string, started time.Time) {
	if r.cfg.Index == nil {
		return
	}
	if err := r.cfg.Index.BeginRun(ctx, id, r.cfg.CatalogPath, started); err != nil {
		log.ErrorErr(log.CatIndex, "Failed to index run", err, "run_id", id)
	}
}

func (r *Runner) indexRecord(ctx context.Context, o index.Outcome) {
	if r.cfg.Index == nil {
		return
	}
	o.RecordedAt = r.now()
	if err := r.cfg.Index.Record(ctx, o); err != nil {
		log.ErrorErr(log.CatIndex, "Failed to index outcome", err, "run_id", o.RunID, "row", o.Seq)
	}
}

func (r *Runner) finish(ctx context.Context, res RunResult) {
	finished := r.now()
	log.Info(log.CatRun, "Run finished",
		"run_id", res.RunID,
		"total", res.Total,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"elapsed", res.Elapsed)

	if r.cfg.Index != nil {
		// a cancelled ctx must not lose the closing counters
		err := r.cfg.Index.FinishRun(context.WithoutCancel(ctx), index.Run{
			ID:         res.RunID,
			FinishedAt: finished,
			Total:      res.Total,
			Succeeded:  res.Succeeded,
			Failed:     res.Failed,
			Skipped:    res.Skipped,
		})
		if err != nil {
			log.ErrorErr(log.CatIndex, "Failed to close run in index", err, "run_id", res.RunID)
		}
	}

	if r.cfg.Metrics != nil {
		r.cfg.Metrics.Finish(finished)
		if r.cfg.MetricsPath != "" {
			if err := r.cfg.Metrics.WriteTextfile(r.cfg.MetricsPath); err != nil {
				log.ErrorErr(log.CatRun, "Failed to write metrics textfile", err, "path", r.cfg.MetricsPath)
			}
		}
	}
}
