package catalog

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const listing = `+---------------------------+--------+-----+-----+----+-----+---------+----------+-------+-----------+
| Origin Time (GMT)         | Status | cnt | Mag | T  | cnt | Lat     | Lon      | Depth | Remarks   |
+---------------------------+--------+-----+-----+----+-----+---------+----------+-------+-----------+
| 2024-03-10 08:15:00.412   | manual | 14  | 5.2 | M  | 9   | 8.25 S  | 124.50 E | 33 km | Near Alor |
| 2024-03-08 22:01:13.000   | manual | 9   | 3.1 | MLv| 4   | 9.10 S  | 123.70 E | 10 km | Timor Sea |
| 2024-03-11 01:00:00       | auto   | 5   | -   | M  | 0   | 8.00 S  | 124.00 E | 12 km | Flores    |
| 2024-03-12 04:30:00       | manual | 7   | 4.0 | M  | 3   | 2.00 N  | 128.00 E | 40 km | Halmahera |
| 2024-03-13 04:30:00       | manual | 7   | 4.0 |
+---------------------------+--------+-----+-----+----+-----+---------+----------+-------+-----------+
`

func TestParseText(t *testing.T) {
	events, err := ParseText(strings.NewReader(listing))
	require.NoError(t, err)
	require.Len(t, events, 4, "short row should be dropped")

	alor := events[0]
	require.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), alor.Date)
	require.Equal(t, "08:15:00.412", alor.Time)
	require.Equal(t, 5.2, alor.Magnitude)
	require.Equal(t, -8.25, alor.Latitude)
	require.Equal(t, 124.5, alor.Longitude)
	require.Equal(t, 33.0, alor.Depth)
	require.Equal(t, 70, alor.DayOfYear)
	require.Equal(t, 3, alor.YearDay, "counted from 2024-03-08")
	require.Equal(t, "Near Alor", alor.Remarks)

	require.Equal(t, 1, events[1].YearDay)
	require.True(t, math.IsNaN(events[2].Magnitude))
	require.Equal(t, 2.0, events[3].Latitude)
}

func TestFilter_InclusiveAndNaN(t *testing.T) {
	events, err := ParseText(strings.NewReader(listing))
	require.NoError(t, err)

	kept := Filter(events, DefaultBounds())
	require.Len(t, kept, 2)
	require.Equal(t, "Near Alor", kept[0].Remarks)
	require.Equal(t, "Timor Sea", kept[1].Remarks)

	edge := Bounds{LatMin: -8.25, LatMax: -8.25, LonMin: 124.5, LonMax: 124.5, MagMin: 5.2, MagMax: 5.2, DepthMin: 33, DepthMax: 33}
	require.True(t, edge.Contains(events[0]))
}

func TestCSV_WriteThenRead(t *testing.T) {
	events, err := ParseText(strings.NewReader(listing))
	require.NoError(t, err)
	kept := Filter(events, DefaultBounds())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, kept))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "Date,Time,Magnitude,Latitude,Longitude,Depth,DayOfYear,YearDay,Remarks", lines[0])
	require.Equal(t, "2024-03-10,08:15:00.412,5.2,-8.25,124.5,33.0,070,3,Near Alor", lines[1])

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, kept, back)
}

func TestReadCSV_MissingCellsAreSkippable(t *testing.T) {
	input := "Date,Time,Magnitude,Latitude,Longitude,Depth,DayOfYear,YearDay,Remarks\n" +
		",08:15:00,5.2,-8.25,124.5,33.0,70.0,3,no date\n" +
		"2024-03-10,08:15:00,5.2,-8.25,124.5,33.0,,3,no day\n" +
		"2024-03-10,08:15:00,5.2,-8.25,124.5,33.0,70.0,3,\"Alor, East\"\n"

	events, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.ErrorIs(t, events[0].Validate(), ErrMissingDate)
	require.ErrorIs(t, events[1].Validate(), ErrMissingDayOfYear)
	require.NoError(t, events[2].Validate())
	require.Equal(t, 70, events[2].DayOfYear)
	require.Equal(t, "Alor, East", events[2].Remarks)
}

func TestReadCSV_RequiresCoreColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Magnitude,Depth\n5.0,10\n"))
	require.ErrorIs(t, err, ErrMalformedRow)

	events, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestEvent_ValidateNonFinite(t *testing.T) {
	ev := Event{Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), DayOfYear: 70, Magnitude: math.NaN(), Depth: 10}
	require.ErrorIs(t, ev.Validate(), ErrMalformedRow)

	ev.Magnitude = 4
	ev.Depth = math.Inf(1)
	require.ErrorIs(t, ev.Validate(), ErrMalformedRow)
}

func TestFormatFloat(t *testing.T) {
	require.Equal(t, "33.0", FormatFloat(33))
	require.Equal(t, "5.2", FormatFloat(5.2))
	require.Equal(t, "-8.25", FormatFloat(-8.25))
	require.Equal(t, "0.0", FormatFloat(0))
	require.Equal(t, "", FormatFloat(math.NaN()))
}

func TestCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.csv")
	ev := Event{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Time: "00:00:01", Magnitude: 3, Latitude: -9, Longitude: 120, Depth: 5, DayOfYear: 2, YearDay: 1, Remarks: "x"}
	require.NoError(t, WriteCSVFile(path, []Event{ev}))

	back, err := ReadCSVFile(path)
	require.NoError(t, err)
	require.Equal(t, []Event{ev}, back)

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
