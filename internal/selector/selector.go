// Package selector scans a staging directory and cuts every matching trace
// to an event window.
package selector

import (
	"fmt"
	"slices"

	"github.com/zjrosen/wavecut/internal/log"
	"github.com/zjrosen/wavecut/internal/mseed"
	"github.com/zjrosen/wavecut/internal/planner"
	"github.com/zjrosen/wavecut/internal/staging"
)

// ScanStatus tags the outcome of reading one staged file.
type ScanStatus int

const (
	Parsed ScanStatus = iota
	Unreadable
)

func (s ScanStatus) String() string {
	if s == Unreadable {
		return "unreadable"
	}
	return "parsed"
}

// ScanResult is the outcome for one staged file. Reason is set only when
// Status is Unreadable.
type ScanResult struct {
	Path     string
	Status   ScanStatus
	Traces   int // traces decoded from the file
	Accepted int // traces that made it into the merged set
	Reason   error
}

// Result is the merged selection for one event.
type Result struct {
	Traces        []*mseed.Trace
	Scans         []ScanResult
	Filtered      int // dropped by the station allow-list
	OutsideWindow int // no overlap with the window
}

// Unreadable returns the scans that were skipped.
func (r Result) Unreadable() []ScanResult {
	var out []ScanResult
	for _, s := range r.Scans {
		if s.Status == Unreadable {
			out = append(out, s)
		}
	}
	return out
}

// ReadFunc decodes one staged file.
type ReadFunc func(path string) ([]*mseed.Trace, error)

// Selector picks and trims traces for one window at a time.
type Selector struct {
	stations map[string]struct{}
	read     ReadFunc
}

// Option configures a Selector.
type Option func(*Selector)

// WithReader replaces the miniSEED file reader.
func WithReader(fn ReadFunc) Option {
	return func(s *Selector) { s.read = fn }
}

// New returns a Selector restricted to stations. An empty list keeps every
// station.
func New(stations []string, opts ...Option) *Selector {
	s := &Selector{read: mseed.ReadFile}
	if len(stations) > 0 {
		s.stations = make(map[string]struct{}, len(stations))
		for _, st := range stations {
			s.stations[st] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stations returns the allow-list in sorted order.
func (s *Selector) Stations() []string {
	out := make([]string, 0, len(s.stations))
	for st := range s.stations {
		out = append(out, st)
	}
	slices.Sort(out)
	return out
}

// Select scans every entry of dir in name order. Unreadable files are
// recorded and skipped. Each trace whose span touches w (end >= start and
// start <= end) is copied, trimmed to w and zero padded where the data does
// not reach. Merged order follows file order, then order within the file.
// The only error is failing to list dir.
func (s *Selector) Select(dir staging.Dir, w planner.Window) (Result, error) {
	paths, err := dir.List()
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, path := range paths {
		scan := ScanResult{Path: path, Status: Parsed}

		traces, err := s.read(path)
		if err != nil {
			scan.Status = Unreadable
			scan.Reason = err
			res.Scans = append(res.Scans, scan)
			log.Debug(log.CatSelect, "Unreadable staged file", "path", path, "error", err)
			continue
		}
		scan.Traces = len(traces)

		for _, tr := range traces {
			if !s.allowed(tr.Station) {
				res.Filtered++
				continue
			}
			if !tr.Overlaps(w.Start, w.End) {
				res.OutsideWindow++
				continue
			}
			cut := tr.Copy()
			if err := cut.Trim(w.Start, w.End, true, 0); err != nil {
				log.Warn(log.CatSelect, "Cannot trim trace", "trace", tr.ID(), "path", path, "error", err)
				continue
			}
			res.Traces = append(res.Traces, cut)
			scan.Accepted++
		}
		res.Scans = append(res.Scans, scan)
	}

	log.Debug(log.CatSelect, "Selection done",
		"window", w.String(),
		"files", len(paths),
		"traces", len(res.Traces),
		"filtered", res.Filtered,
		"outside", res.OutsideWindow)
	return res, nil
}

func (s *Selector) allowed(station string) bool {
	if s.stations == nil {
		return true
	}
	_, ok := s.stations[station]
	return ok
}

// Describe summarizes a scan result for log lines.
func (r ScanResult) Describe() string {
	if r.Status == Unreadable {
		return fmt.Sprintf("%s: %v", r.Path, r.Reason)
	}
	return fmt.Sprintf("%s: %d/%d traces", r.Path, r.Accepted, r.Traces)
}
