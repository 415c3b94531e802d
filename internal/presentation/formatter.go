// Package presentation renders indexed runs and inspected waveform files
// for the command line, as JSON or as aligned text.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	json   bool
}

// NewFormatter creates a new formatter. asJSON selects JSON over text.
func NewFormatter(writer io.Writer, asJSON bool) *Formatter {
	return &Formatter{
		writer: writer,
		json:   asJSON,
	}
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatRuns prints a list of runs
func (f *Formatter) FormatRuns(runs []RunDTO) error {
	if f.json {
		return f.encode(runs)
	}
	tw := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tTOTAL\tSAVED\tFAILED\tSKIPPED\tINPUT")
	for _, r := range runs {
		started := r.StartedAt
		if r.FinishedAt == "" {
			started += " (unfinished)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, started, r.Total, r.Succeeded, r.Failed, r.Skipped, r.Input)
	}
	return tw.Flush()
}

// FormatOutcomes prints the outcomes of one run
func (f *Formatter) FormatOutcomes(outcomes []OutcomeDTO) error {
	if f.json {
		return f.encode(outcomes)
	}
	tw := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ROW\tEVENT\tDAY\tSTATUS\tTRACES\tDETAIL")
	for _, o := range outcomes {
		detail := o.Artifact
		if detail == "" {
			detail = o.Reason
		}
		day := ""
		if o.Day != "" {
			day = fmt.Sprintf("%d/%s", o.Year, o.Day)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			o.Row, o.EventKey, day, o.Status, o.Traces, detail)
	}
	return tw.Flush()
}

// FormatFiles prints inspected waveform files
func (f *Formatter) FormatFiles(files []FileDTO) error {
	if f.json {
		return f.encode(files)
	}
	for _, file := range files {
		if file.Error != "" {
			if _, err := fmt.Fprintf(f.writer, "%s: unreadable: %s\n", file.Path, file.Error); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(f.writer, "%s: %d trace(s)\n", file.Path, len(file.Traces)); err != nil {
			return err
		}
		for _, tr := range file.Traces {
			if _, err := fmt.Fprintf(f.writer, "  %s | %s - %s | %g Hz, %d samples | %s\n",
				tr.ID, tr.Start, tr.End, tr.SampleRate, tr.Samples, tr.Encoding); err != nil {
				return err
			}
		}
	}
	return nil
}
