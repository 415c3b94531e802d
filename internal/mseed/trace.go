// Package mseed reads and writes SEED 2.4 miniSEED waveform archives and
// provides the trace arithmetic (nearest-sample trim with padding) used to
// cut event windows out of continuous station data.
package mseed

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxTrimSamples bounds the length of a trimmed trace.
const MaxTrimSamples = 1 << 26

var ErrTrimTooLarge = errors.New("trim window too large")

// Encoding is a SEED data encoding format code (blockette 1000 field 3).
type Encoding uint8

const (
	EncodingInt16   Encoding = 1
	EncodingInt32   Encoding = 3
	EncodingFloat32 Encoding = 4
	EncodingFloat64 Encoding = 5
	EncodingSteim1  Encoding = 10
	EncodingSteim2  Encoding = 11
)

func (e Encoding) String() string {
	switch e {
	case EncodingInt16:
		return "INT16"
	case EncodingInt32:
		return "INT32"
	case EncodingFloat32:
		return "FLOAT32"
	case EncodingFloat64:
		return "FLOAT64"
	case EncodingSteim1:
		return "STEIM1"
	case EncodingSteim2:
		return "STEIM2"
	default:
		return fmt.Sprintf("ENCODING(%d)", uint8(e))
	}
}

// Integer reports whether samples in this encoding are integers.
func (e Encoding) Integer() bool {
	switch e {
	case EncodingInt16, EncodingInt32, EncodingSteim1, EncodingSteim2:
		return true
	default:
		return false
	}
}

// Trace is one continuous single-channel time series.
// Sample i is taken at StartTime + i/SampleRate.
type Trace struct {
	Network    string
	Station    string
	Location   string
	Channel    string
	Quality    byte
	StartTime  time.Time
	SampleRate float64
	Encoding   Encoding
	Data       []float64
}

// ID returns the SEED identifier NET.STA.LOC.CHA.
func (t *Trace) ID() string {
	return t.Network + "." + t.Station + "." + t.Location + "." + t.Channel
}

// Len returns the number of samples.
func (t *Trace) Len() int {
	return len(t.Data)
}

// Delta returns the sample interval.
func (t *Trace) Delta() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return secondsToDuration(1 / t.SampleRate)
}

// SampleTime returns the instant of sample index i. i may be negative or
// past the end of Data.
func (t *Trace) SampleTime(i int) time.Time {
	if t.SampleRate <= 0 {
		return t.StartTime
	}
	return t.StartTime.Add(secondsToDuration(float64(i) / t.SampleRate))
}

// EndTime returns the instant of the last sample. For an empty trace it
// equals StartTime.
func (t *Trace) EndTime() time.Time {
	if len(t.Data) == 0 {
		return t.StartTime
	}
	return t.SampleTime(len(t.Data) - 1)
}

// Overlaps reports whether the trace span touches [start, end]. Both
// boundaries are inclusive: a trace ending exactly at start, or beginning
// exactly at end, overlaps.
func (t *Trace) Overlaps(start, end time.Time) bool {
	return !t.EndTime().Before(start) && !t.StartTime.After(end)
}

// Copy returns a deep copy of the trace.
func (t *Trace) Copy() *Trace {
	c := *t
	c.Data = append([]float64(nil), t.Data...)
	return &c
}

// Trim restricts the trace to [start, end] using nearest-sample selection.
// With pad set, samples outside the original coverage are created and set
// to fill, so the result always spans the requested window. Without pad the
// result is clipped to the available data and may become empty.
func (t *Trace) Trim(start, end time.Time, pad bool, fill float64) error {
	if end.Before(start) {
		return fmt.Errorf("trim: end %s before start %s", end.Format(time.RFC3339Nano), start.Format(time.RFC3339Nano))
	}
	if t.SampleRate <= 0 {
		return fmt.Errorf("trim %s: invalid sample rate %v", t.ID(), t.SampleRate)
	}

	first := t.indexOf(start)
	last := t.indexOf(end)
	n := len(t.Data)
	if !pad {
		first = max(first, 0)
		last = min(last, n-1)
	}

	if last >= first && last-first >= MaxTrimSamples {
		return fmt.Errorf("%w: %s would hold %d samples", ErrTrimTooLarge, t.ID(), last-first+1)
	}

	newStart := t.SampleTime(first)
	if last < first {
		t.StartTime = newStart
		t.Data = []float64{}
		return nil
	}

	out := make([]float64, last-first+1)
	for i := range out {
		src := first + i
		if src >= 0 && src < n {
			out[i] = t.Data[src]
		} else {
			out[i] = fill
		}
	}
	t.StartTime = newStart
	t.Data = out
	return nil
}

// indexOf returns the index of the sample nearest to ts. Ties go to the
// even index.
func (t *Trace) indexOf(ts time.Time) int {
	offset := ts.Sub(t.StartTime).Seconds()
	return int(math.RoundToEven(offset * t.SampleRate))
}

func (t *Trace) String() string {
	return fmt.Sprintf("%s | %s - %s | %g Hz, %d samples",
		t.ID(),
		t.StartTime.UTC().Format("2006-01-02T15:04:05.000000Z"),
		t.EndTime().UTC().Format("2006-01-02T15:04:05.000000Z"),
		t.SampleRate, len(t.Data))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
