// Package planner derives the per-event trim window and output naming from a
// catalog row. Everything here is a pure function of its input.
package planner

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/zjrosen/wavecut/internal/catalog"
)

var (
	ErrMissingDate = errors.New("event has no date or day of year")
	ErrBadTime     = errors.New("event time is not HH:MM:SS")
	ErrBadOffsets  = errors.New("window offsets must not be negative")
)

// Default offsets around the origin time.
const (
	DefaultBefore = 60 * time.Second
	DefaultAfter  = 300 * time.Second
)

// Window is the closed time range cut out of every trace.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration is End minus Start.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

func (w Window) String() string {
	return fmt.Sprintf("%s - %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Offsets place the window around the origin time.
type Offsets struct {
	Before time.Duration
	After  time.Duration
}

// DefaultOffsets returns 60s before and 300s after origin.
func DefaultOffsets() Offsets {
	return Offsets{Before: DefaultBefore, After: DefaultAfter}
}

// Plan is everything derived from one event before any I/O happens.
type Plan struct {
	Event    catalog.Event
	Origin   time.Time // second precision, UTC
	Window   Window
	Day      string // day of year, three digits
	Year     int
	FileName string
}

// Key identifies the event in logs and the archive index.
func (p Plan) Key() string {
	return p.Origin.Format("20060102T150405Z")
}

// OriginString renders the origin the way the run log prints it.
func (p Plan) OriginString() string {
	return p.Origin.Format("2006-01-02T15:04:05.000000Z")
}

// New plans ev. ext is the artifact extension without the dot; empty means
// "mseed".
func New(ev catalog.Event, off Offsets, ext string) (Plan, error) {
	if ev.Date.IsZero() || ev.DayOfYear <= 0 {
		return Plan{}, ErrMissingDate
	}
	if off.Before < 0 || off.After < 0 {
		return Plan{}, ErrBadOffsets
	}

	origin, err := Origin(ev.Date, ev.Time)
	if err != nil {
		return Plan{}, err
	}
	if ext == "" {
		ext = "mseed"
	}

	return Plan{
		Event:    ev,
		Origin:   origin,
		Window:   Window{Start: origin.Add(-off.Before), End: origin.Add(off.After)},
		Day:      fmt.Sprintf("%03d", ev.DayOfYear),
		Year:     ev.Date.Year(),
		FileName: FileName(origin, ev.Magnitude, ev.Depth, ev.Remarks, ext),
	}, nil
}

// Origin combines a calendar date and an HH:MM:SS[.fraction] time of day.
// The fraction is dropped, not rounded.
func Origin(date time.Time, clock string) (time.Time, error) {
	whole, _, _ := strings.Cut(strings.TrimSpace(clock), ".")
	tod, err := time.Parse("15:04:05", whole)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTime, clock)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC), nil
}

// FileName builds {YYYYMMDD}_{HHMMSS}_Mag{m:.1f}_Depth{int(d)}_{remarks}.{ext}.
func FileName(origin time.Time, magnitude, depth float64, remarks, ext string) string {
	return fmt.Sprintf("%s_Mag%.1f_Depth%d_%s.%s",
		origin.Format("20060102_150405"),
		magnitude,
		int64(math.Trunc(depth)),
		Sanitize(remarks),
		strings.ToLower(ext),
	)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

// Sanitize makes free text safe for a file name: trim, spaces become
// underscores, anything outside [A-Za-z0-9_-] is removed.
func Sanitize(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, " ", "_")
	return unsafeChars.ReplaceAllString(text, "")
}
