package planner

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/wavecut/internal/catalog"
)

func alorEvent() catalog.Event {
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

func TestNew_AlorScenario(t *testing.T) {
	plan, err := New(alorEvent(), DefaultOffsets(), "")
	require.NoError(t, err)

	require.Equal(t, time.Date(2024, 3, 10, 8, 15, 0, 0, time.UTC), plan.Origin)
	require.Equal(t, time.Date(2024, 3, 10, 8, 14, 0, 0, time.UTC), plan.Window.Start)
	require.Equal(t, time.Date(2024, 3, 10, 8, 20, 0, 0, time.UTC), plan.Window.End)
	require.Equal(t, 6*time.Minute, plan.Window.Duration())
	require.Equal(t, "070", plan.Day)
	require.Equal(t, 2024, plan.Year)
	require.Equal(t, "20240310_081500_Mag5.2_Depth33_Near_Alor.mseed", plan.FileName)
	require.Equal(t, "2024-03-10T08:15:00.000000Z", plan.OriginString())
	require.Equal(t, "20240310T081500Z", plan.Key())
}

func TestNew_DropsFraction(t *testing.T) {
	ev := alorEvent()
	ev.Time = "08:15:00.987"
	plan, err := New(ev, DefaultOffsets(), "MSEED")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 10, 8, 15, 0, 0, time.UTC), plan.Origin)
	require.Equal(t, "20240310_081500_Mag5.2_Depth33_Near_Alor.mseed", plan.FileName)
}

func TestNew_Errors(t *testing.T) {
	ev := alorEvent()
	ev.Date = time.Time{}
	_, err := New(ev, DefaultOffsets(), "")
	require.ErrorIs(t, err, ErrMissingDate)

	ev = alorEvent()
	ev.DayOfYear = 0
	_, err = New(ev, DefaultOffsets(), "")
	require.ErrorIs(t, err, ErrMissingDate)

	ev = alorEvent()
	ev.Time = "8h15"
	_, err = New(ev, DefaultOffsets(), "")
	require.ErrorIs(t, err, ErrBadTime)

	_, err = New(alorEvent(), Offsets{Before: -time.Second}, "")
	require.ErrorIs(t, err, ErrBadOffsets)
}

func TestFileName_Formatting(t *testing.T) {
	origin := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)
	require.Equal(t, "20231231_235959_Mag4.0_Depth9_Banda_Sea.mseed",
		FileName(origin, 4, 9.99, " Banda Sea ", "mseed"))
	require.Equal(t, "20231231_235959_Mag3.1_Depth120_Kupang_NTT.mseed",
		FileName(origin, 3.14, 120.4, "Kupang (NTT)", "mseed"))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Near Alor", "Near_Alor"},
		{"  Alor, NTT-Indonesia  ", "Alor_NTT-Indonesia"},
		{"Laut Flores / Banda", "Laut_Flores__Banda"},
		{"", ""},
		{"Sumbawa\tBarat", "SumbawaBarat"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Sanitize(tt.in), "input %q", tt.in)
	}
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9_\-]*$`)

func TestProperty_SanitizeOnlySafeCharacters(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		in := rapid.String().Draw(rt, "remarks")
		out := Sanitize(in)
		if !safeName.MatchString(out) {
			rt.Fatalf("Sanitize(%q) = %q has unsafe characters", in, out)
		}
		if Sanitize(out) != out {
			rt.Fatalf("Sanitize is not idempotent on %q", in)
		}
	})
}

func TestProperty_WindowSpansOffsets(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ev := alorEvent()
		h := rapid.IntRange(0, 23).Draw(rt, "hour")
		m := rapid.IntRange(0, 59).Draw(rt, "minute")
		s := rapid.IntRange(0, 59).Draw(rt, "second")
		ev.Time = time.Date(0, 1, 1, h, m, s, 0, time.UTC).Format("15:04:05")
		before := time.Duration(rapid.IntRange(0, 3600).Draw(rt, "before")) * time.Second
		after := time.Duration(rapid.IntRange(0, 3600).Draw(rt, "after")) * time.Second

		plan, err := New(ev, Offsets{Before: before, After: after}, "")
		if err != nil {
			rt.Fatalf("plan: %v", err)
		}
		if plan.Origin.Sub(plan.Window.Start) != before || plan.Window.End.Sub(plan.Origin) != after {
			rt.Fatalf("window %s does not match offsets around %s", plan.Window, plan.Origin)
		}
	})
}
