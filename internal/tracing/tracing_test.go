package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_DisabledIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), SpanEvent)
	require.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: ExporterFile})
	require.Error(t, err)

	_, err = NewProvider(context.Background(), Config{Enabled: true, Exporter: "jaeger"})
	require.ErrorContains(t, err, "unsupported exporter")

	p, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: ExporterNone})
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestFileExporter_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.jsonl")
	p, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: ExporterFile, FilePath: path, SampleRate: 1})
	require.NoError(t, err)

	ctx, event := Start(context.Background(), p.Tracer(), SpanEvent, AttrEventKey.String("20240310T081500Z"), AttrYear.Int(2024))
	_, fetch := Start(ctx, p.Tracer(), SpanFetch)
	End(fetch, errors.New("exit status 1"))
	End(event, nil)
	require.NoError(t, p.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var lines []SpanLine
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var l SpanLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		lines = append(lines, l)
	}
	require.Len(t, lines, 2)

	byName := map[string]SpanLine{}
	for _, l := range lines {
		byName[l.Name] = l
	}
	require.Equal(t, "ERROR", byName[SpanFetch].Status)
	require.Equal(t, "exit status 1", byName[SpanFetch].Message)
	require.Equal(t, byName[SpanEvent].SpanID, byName[SpanFetch].ParentID)
	require.Equal(t, "OK", byName[SpanEvent].Status)
	require.Equal(t, "20240310T081500Z", byName[SpanEvent].Attributes["wavecut.event.key"])
}

func TestFileExporter_ClosedRejectsSpans(t *testing.T) {
	e, err := NewFileExporter(filepath.Join(t.TempDir(), "x.jsonl"))
	require.NoError(t, err)
	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := tp.Tracer("t").Start(context.Background(), "s")
	span.End()
	require.Error(t, e.ExportSpans(context.Background(), rec.Ended()))
}
