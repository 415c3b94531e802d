// Package catalog turns an earthquake catalog listing into the filtered event
// table consumed by the waveform run, and reads that table back.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingDate      = errors.New("missing date")
	ErrMissingDayOfYear = errors.New("missing day of year")
	ErrMalformedRow     = errors.New("malformed catalog row")
)

// DateLayout is the calendar date format used in the event table.
const DateLayout = "2006-01-02"

// Event is one row of the filtered event table.
type Event struct {
	Date      time.Time // UTC midnight; zero when the row had no date
	Time      string    // HH:MM:SS with optional fraction
	Magnitude float64
	Latitude  float64
	Longitude float64
	Depth     float64 // km
	DayOfYear int     // 1-366; 0 when missing
	YearDay   int     // days since the earliest catalog date, starting at 1
	Remarks   string
}

// Validate reports why the row cannot be processed. Rows that fail
// validation are skipped by the run, not counted as failures.
func (e Event) Validate() error {
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	if e.DayOfYear <= 0 {
		return ErrMissingDayOfYear
	}
	if math.IsNaN(e.Magnitude) || math.IsInf(e.Magnitude, 0) {
		return fmt.Errorf("%w: magnitude is not a number", ErrMalformedRow)
	}
	if math.IsNaN(e.Depth) || math.IsInf(e.Depth, 0) {
		return fmt.Errorf("%w: depth is not a number", ErrMalformedRow)
	}
	return nil
}

// FormatFloat renders v the way the catalog tables have always printed
// floats: shortest round-trip digits, integral values keep a trailing ".0",
// and NaN is the empty string.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !math.IsInf(v, 0) && !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
