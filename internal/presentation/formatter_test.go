package presentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/wavecut/internal/index"
	"github.com/zjrosen/wavecut/internal/mseed"
)

func TestFormatRuns_JSON(t *testing.T) {
	runs := FromRuns([]index.Run{{
		ID:         "r1",
		Input:      "filtered_catalog.csv",
		StartedAt:  time.Date(2024, 3, 12, 1, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 12, 1, 5, 0, 0, time.UTC),
		Total:      3, Succeeded: 1, Failed: 1, Skipped: 1,
	}})

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, true).FormatRuns(runs))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "r1", got[0]["id"])
	require.Equal(t, "2024-03-12T01:00:00.000000Z", got[0]["started_at"])
	require.EqualValues(t, 1, got[0]["skipped"])
}

func TestFormatRuns_TextMarksUnfinished(t *testing.T) {
	runs := FromRuns([]index.Run{{ID: "r2", StartedAt: time.Date(2024, 3, 12, 1, 0, 0, 0, time.UTC)}})

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, false).FormatRuns(runs))
	require.Contains(t, buf.String(), "RUN")
	require.Contains(t, buf.String(), "(unfinished)")
}

func TestFormatOutcomes_Text(t *testing.T) {
	outcomes := FromOutcomes([]index.Outcome{
		{Seq: 0, EventKey: "20240310T081500Z", Day: "070", Year: 2024, Status: index.StatusSaved, Artifact: "events/2024/a.mseed", Traces: 2},
		{Seq: 1, EventKey: "20240311T023000Z", Day: "071", Year: 2024, Status: index.StatusFailed, Reason: "archive fetch failed"},
		{Seq: 2, Status: index.StatusSkipped, Reason: "missing date"},
	})

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, false).FormatOutcomes(outcomes))
	out := buf.String()
	require.Contains(t, out, "2024/070")
	require.Contains(t, out, "events/2024/a.mseed")
	require.Contains(t, out, "archive fetch failed")
	require.Contains(t, out, "skipped")
}

func TestFormatFiles(t *testing.T) {
	tr := &mseed.Trace{
		Network: "IA", Station: "PAFM", Channel: "BHZ",
		StartTime:  time.Date(2024, 3, 10, 8, 14, 0, 0, time.UTC),
		SampleRate: 1,
		Encoding:   mseed.EncodingSteim2,
		Data:       make([]float64, 361),
	}
	files := []FileDTO{
		FromTraces("a.mseed", []*mseed.Trace{tr}, nil),
		FromTraces("b.txt", nil, errors.New("not miniSEED")),
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, false).FormatFiles(files))
	out := buf.String()
	require.Contains(t, out, "a.mseed: 1 trace(s)")
	require.Contains(t, out, "2024-03-10T08:14:00.000000Z - 2024-03-10T08:20:00.000000Z")
	require.Contains(t, out, "361 samples")
	require.Contains(t, out, "b.txt: unreadable: not miniSEED")

	buf.Reset()
	require.NoError(t, NewFormatter(&buf, true).FormatFiles(files))
	var got []FileDTO
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, files, got)
}
