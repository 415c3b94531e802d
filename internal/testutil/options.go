package testutil

import (
	"time"

	"github.com/zjrosen/wavecut/internal/mseed"
)

// TraceOption configures a synthetic trace.
type TraceOption func(*mseed.Trace)

// Network sets the network code.
func Network(code string) TraceOption {
	return func(tr *mseed.Trace) { tr.Network = code }
}

// Location sets the location code.
func Location(code string) TraceOption {
	return func(tr *mseed.Trace) { tr.Location = code }
}

// Channel sets the channel code.
func Channel(code string) TraceOption {
	return func(tr *mseed.Trace) { tr.Channel = code }
}

// StartAt sets the first sample time.
func StartAt(t time.Time) TraceOption {
	return func(tr *mseed.Trace) { tr.StartTime = t }
}

// Rate sets the sample rate and keeps the covered duration.
func Rate(hz float64) TraceOption {
	return func(tr *mseed.Trace) {
		span := float64(len(tr.Data)-1) / tr.SampleRate
		tr.SampleRate = hz
		tr.Data = rampData(int(span*hz) + 1)
	}
}

// Span sets the number of seconds between first and last sample.
func Span(d time.Duration) TraceOption {
	return func(tr *mseed.Trace) {
		tr.Data = rampData(int(d.Seconds()*tr.SampleRate) + 1)
	}
}

// Values sets the samples verbatim.
func Values(v ...float64) TraceOption {
	return func(tr *mseed.Trace) { tr.Data = append([]float64(nil), v...) }
}

// Covering places the trace so it spans [start, end] at the current rate.
func Covering(start, end time.Time) TraceOption {
	return func(tr *mseed.Trace) {
		tr.StartTime = start
		tr.Data = rampData(int(end.Sub(start).Seconds()*tr.SampleRate) + 1)
	}
}

// rampData returns 1..n so that no real sample is zero.
func rampData(n int) []float64 {
	if n < 1 {
		n = 1
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i + 1)
	}
	return data
}
