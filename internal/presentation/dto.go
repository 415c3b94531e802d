package presentation

import (
	"time"

	"github.com/zjrosen/wavecut/internal/index"
	"github.com/zjrosen/wavecut/internal/mseed"
)

// RunDTO represents an indexed run for presentation
type RunDTO struct {
	ID         string `json:"id"`
	Input      string `json:"input"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"` // empty for a run that never finished
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

// OutcomeDTO represents one event outcome of a run
type OutcomeDTO struct {
	Row      int    `json:"row"`
	EventKey string `json:"event_key,omitempty"`
	Day      string `json:"day,omitempty"`
	Year     int    `json:"year,omitempty"`
	Status   string `json:"status"`
	Artifact string `json:"artifact,omitempty"`
	Traces   int    `json:"traces"`
	Reason   string `json:"reason,omitempty"`
}

// TraceDTO describes one trace of a waveform file
type TraceDTO struct {
	ID         string  `json:"id"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	SampleRate float64 `json:"sample_rate"`
	Samples    int     `json:"samples"`
	Encoding   string  `json:"encoding"`
}

// FileDTO describes one inspected waveform file
type FileDTO struct {
	Path   string     `json:"path"`
	Error  string     `json:"error,omitempty"`
	Traces []TraceDTO `json:"traces"`
}

const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// FromRun converts an indexed run to a DTO
func FromRun(r index.Run) RunDTO {
	return RunDTO{
		ID:         r.ID,
		Input:      r.Input,
		StartedAt:  formatTime(r.StartedAt),
		FinishedAt: formatTime(r.FinishedAt),
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
	}
}

// FromRuns converts a list of runs
func FromRuns(runs []index.Run) []RunDTO {
	out := make([]RunDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, FromRun(r))
	}
	return out
}

// FromOutcomes converts the outcomes of one run
func FromOutcomes(outcomes []index.Outcome) []OutcomeDTO {
	out := make([]OutcomeDTO, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, OutcomeDTO{
			Row:      o.Seq,
			EventKey: o.EventKey,
			Day:      o.Day,
			Year:     o.Year,
			Status:   string(o.Status),
			Artifact: o.Artifact,
			Traces:   o.Traces,
			Reason:   o.Reason,
		})
	}
	return out
}

// FromTraces converts the traces read from path. A non-nil err marks the
// file unreadable.
func FromTraces(path string, traces []*mseed.Trace, err error) FileDTO {
	f := FileDTO{Path: path, Traces: make([]TraceDTO, 0, len(traces))}
	if err != nil {
		f.Error = err.Error()
		return f
	}
	for _, tr := range traces {
		f.Traces = append(f.Traces, TraceDTO{
			ID:         tr.ID(),
			Start:      formatTime(tr.StartTime),
			End:        formatTime(tr.EndTime()),
			SampleRate: tr.SampleRate,
			Samples:    tr.Len(),
			Encoding:   tr.Encoding.String(),
		})
	}
	return f
}
