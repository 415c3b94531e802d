// Package processor runs one catalog event through fetch, selection, write
// and cleanup.
package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/wavecut/internal/fetcher"
	"github.com/zjrosen/wavecut/internal/log"
	"github.com/zjrosen/wavecut/internal/metrics"
	"github.com/zjrosen/wavecut/internal/mseed"
	"github.com/zjrosen/wavecut/internal/planner"
	"github.com/zjrosen/wavecut/internal/report"
	"github.com/zjrosen/wavecut/internal/selector"
	"github.com/zjrosen/wavecut/internal/staging"
	"github.com/zjrosen/wavecut/internal/tracing"
)

// Failure reasons.
var (
	ErrNoData      = errors.New("no matching data")
	ErrWriteFailed = errors.New("writing artifact failed")
)

// WriteFunc persists the merged traces of one event.
type WriteFunc func(path string, traces []*mseed.Trace) error

// Config wires the collaborators of a Processor. Fetcher, Selector,
// Staging, OutputDir, Journal and Ledger are required.
type Config struct {
	Fetcher   fetcher.ArchiveFetcher
	Selector  *selector.Selector
	Staging   staging.Dir
	OutputDir string
	Journal   *report.Journal
	Ledger    *report.Ledger
	Metrics   *metrics.Metrics // optional
	Tracer    trace.Tracer     // optional
	Write     WriteFunc        // defaults to mseed.WriteFile
}

// Processor handles events one at a time. It is not safe for concurrent
// use because every event shares the staging directory.
type Processor struct {
	cfg Config
}

// New returns a Processor for cfg.
func New(cfg Config) *Processor {
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer(tracing.ServiceName)
	}
	if cfg.Write == nil {
		cfg.Write = mseed.WriteFile
	}
	return &Processor{cfg: cfg}
}

// ArtifactPath is where the merged traces of plan are written.
func (p *Processor) ArtifactPath(plan planner.Plan) string {
	return filepath.Join(p.cfg.OutputDir, strconv.Itoa(plan.Year), plan.FileName)
}

// Process runs plan through START, FETCHING, SELECTING, SAVED or FAILED and
// finally CLEANED. Errors are folded into the returned Outcome; the staging
// directory is purged whatever happened.
func (p *Processor) Process(ctx context.Context, plan planner.Plan) Outcome {
	out := Outcome{Plan: plan, Path: []State{StateStart}}

	ctx, span := tracing.Start(ctx, p.cfg.Tracer, tracing.SpanEvent,
		tracing.AttrEventKey.String(plan.Key()),
		tracing.AttrDay.String(plan.Day),
		tracing.AttrYear.Int(plan.Year),
	)
	defer func() {
		span.SetAttributes(tracing.AttrOutcome.String(out.Final().String()), tracing.AttrTraces.Int(out.Traces))
		tracing.End(span, out.Err)
	}()

	p.note(plan.Year, fmt.Sprintf("\n=== Event %s (Day %s, Year %d) ===", plan.OriginString(), plan.Day, plan.Year))

	out.enter(StateFetching)
	if err := p.fetch(ctx, plan); err != nil {
		p.note(plan.Year, fmt.Sprintf("[FAILED] Download failed for Day %s Year %d: %v", plan.Day, plan.Year, err))
		p.fail(&out, ReasonFetch, err)
		p.cleanup(ctx, &out)
		return out
	}

	out.enter(StateSelecting)
	sel, err := p.selectTraces(ctx, plan)
	out.Selection = sel
	for _, scan := range sel.Unreadable() {
		p.note(plan.Year, fmt.Sprintf("[SKIP] %s: %v", scan.Path, scan.Reason))
	}
	switch {
	case err != nil:
		p.note(plan.Year, fmt.Sprintf("[ERROR] Cannot scan %s: %v", p.cfg.Staging.Path(), err))
		p.fail(&out, ReasonNoData, fmt.Errorf("%w: %w", ErrNoData, err))
	case len(sel.Traces) == 0:
		p.note(plan.Year, fmt.Sprintf("[FAILED] No data for event %s", plan.OriginString()))
		p.fail(&out, ReasonNoData, ErrNoData)
	default:
		p.save(ctx, &out, sel.Traces)
	}

	p.cleanup(ctx, &out)
	return out
}

func (p *Processor) fetch(ctx context.Context, plan planner.Plan) error {
	ctx, span := tracing.Start(ctx, p.cfg.Tracer, tracing.SpanFetch)
	start := time.Now()
	err := p.cfg.Fetcher.Fetch(ctx, plan.Day, plan.Year)
	p.cfg.Metrics.Stage("fetch", time.Since(start))
	tracing.End(span, err)
	if err != nil {
		log.Warn(log.CatFetch, "Fetch failed", "day", plan.Day, "year", plan.Year, "error", err)
	}
	return err
}

func (p *Processor) selectTraces(ctx context.Context, plan planner.Plan) (selector.Result, error) {
	_, span := tracing.Start(ctx, p.cfg.Tracer, tracing.SpanSelect)
	start := time.Now()
	res, err := p.cfg.Selector.Select(p.cfg.Staging, plan.Window)
	p.cfg.Metrics.Stage("select", time.Since(start))

	for _, scan := range res.Scans {
		p.cfg.Metrics.File(scan.Status.String())
	}
	span.SetAttributes(
		tracing.AttrFiles.Int(len(res.Scans)),
		tracing.AttrSkipped.Int(len(res.Unreadable())),
		tracing.AttrTraces.Int(len(res.Traces)),
	)
	tracing.End(span, err)
	return res, err
}

func (p *Processor) save(ctx context.Context, out *Outcome, traces []*mseed.Trace) {
	path := p.ArtifactPath(out.Plan)
	_, span := tracing.Start(ctx, p.cfg.Tracer, tracing.SpanWrite, tracing.AttrArtifact.String(path))
	start := time.Now()
	err := p.cfg.Write(path, traces)
	p.cfg.Metrics.Stage("write", time.Since(start))
	tracing.End(span, err)

	if err != nil {
		p.note(out.Plan.Year, fmt.Sprintf("[ERROR] Failed to write %s: %v", path, err))
		p.fail(out, ReasonWrite, fmt.Errorf("%w: %w", ErrWriteFailed, err))
		return
	}

	out.enter(StateSaved)
	out.Artifact = path
	out.Traces = len(traces)
	p.cfg.Metrics.Traces(len(traces))
	p.note(out.Plan.Year, "[SAVED] "+path)
}

func (p *Processor) fail(out *Outcome, reason Reason, err error) {
	out.enter(StateFailed)
	out.Reason = reason
	out.Err = err

	plan := out.Plan
	rec := report.FailureRecord{
		Origin:    plan.Origin,
		Magnitude: plan.Event.Magnitude,
		Latitude:  plan.Event.Latitude,
		Longitude: plan.Event.Longitude,
		Depth:     plan.Event.Depth,
		Day:       plan.Day,
		Year:      plan.Year,
		Remarks:   plan.Event.Remarks,
	}
	if err := p.cfg.Ledger.Append(rec); err != nil {
		log.ErrorErr(log.CatRun, "Failed to append ledger row", err, "event", plan.Key())
		p.cfg.Journal.Print(fmt.Sprintf("[ERROR] %v", err))
	}
}

func (p *Processor) cleanup(ctx context.Context, out *Outcome) {
	_, span := tracing.Start(ctx, p.cfg.Tracer, tracing.SpanPurge)
	start := time.Now()
	removed, errs := p.cfg.Staging.Purge()
	p.cfg.Metrics.Stage("purge", time.Since(start))
	p.cfg.Metrics.PurgeErrors(len(errs))

	for _, e := range errs {
		p.note(out.Plan.Year, fmt.Sprintf("[ERROR] Failed to delete %s: %v", e.Path, e.Err))
	}
	out.PurgeErrors = errs
	out.enter(StateCleaned)

	var spanErr error
	if len(errs) > 0 {
		spanErr = errs[0]
	}
	tracing.End(span, spanErr)
	log.Debug(log.CatRun, "Staging purged", "removed", removed, "errors", len(errs))
}

// note writes a run message; a broken log file never stops the event.
func (p *Processor) note(year int, msg string) {
	if err := p.cfg.Journal.Log(year, msg); err != nil {
		log.ErrorErr(log.CatRun, "Failed to write year log", err, "year", year)
	}
}
