// Package testutil builds synthetic events, staged archive files and fake
// collaborators for tests.
package testutil

import (
	"time"

	"github.com/zjrosen/wavecut/internal/catalog"
	"github.com/zjrosen/wavecut/internal/mseed"
)

// The Alor event: 2024-03-10 08:15:00 UTC, M5.2 at 33 km.
var (
	AlorOrigin      = time.Date(2024, 3, 10, 8, 15, 0, 0, time.UTC)
	AlorWindowStart = AlorOrigin.Add(-60 * time.Second)
	AlorWindowEnd   = AlorOrigin.Add(300 * time.Second)
)

// AlorFileName is the artifact name planned for AlorEvent.
const AlorFileName = "20240310_081500_Mag5.2_Depth33_Near_Alor.mseed"

// AlorEvent returns the catalog row for the Alor event.
func AlorEvent() catalog.Event {
	return catalog.Event{
		Date:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Time:      "08:15:00",
		Magnitude: 5.2,
		Latitude:  -8.25,
		Longitude: 124.5,
		Depth:     33,
		DayOfYear: 70,
		YearDay:   1,
		Remarks:   "Near Alor",
	}
}

// EventOn returns a valid event at the given origin.
func EventOn(origin time.Time, magnitude, depth float64, remarks string) catalog.Event {
	y, m, d := origin.Date()
	return catalog.Event{
		Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Time:      origin.Format("15:04:05"),
		Magnitude: magnitude,
		Latitude:  -8.5,
		Longitude: 124,
		Depth:     depth,
		DayOfYear: origin.YearDay(),
		YearDay:   1,
		Remarks:   remarks,
	}
}

// NewTrace returns a 1 Hz IA network BHZ trace covering the hour from
// 08:00 on the Alor event day, with samples 1..n.
func NewTrace(station string, opts ...TraceOption) *mseed.Trace {
	tr := &mseed.Trace{
		Network:    "IA",
		Station:    station,
		Channel:    "BHZ",
		Quality:    'D',
		StartTime:  time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		SampleRate: 1,
		Encoding:   mseed.EncodingSteim2,
		Data:       rampData(3601),
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}
