package tracing

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/conneroisu/wikilight/internal/highlight"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.False(t, cfg.Enabled, "tracing should be disabled by default")
	require.Equal(t, "stdout", cfg.Exporter)
	require.Equal(t, "wikilight", cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "test-span")
	require.False(t, span.SpanContext().IsValid(), "no-op spans carry no context")
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_Stdout(t *testing.T) {
	var buf bytes.Buffer
	provider, err := NewProvider(Config{Enabled: true, Exporter: "stdout", Writer: &buf})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "stdout-span")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
	require.Contains(t, buf.String(), "stdout-span")
}

func TestNewProvider_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.jsonl")
	provider, err := NewProvider(Config{Enabled: true, Exporter: "file", FilePath: path, ServiceName: "test-service"})
	require.NoError(t, err)

	_, span := provider.Tracer().Start(context.Background(), "file-span")
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "file-span")
}

func TestNewProvider_Errors(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "file"})
	require.Error(t, err)

	_, err = NewProvider(Config{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)

	p, err := NewProvider(Config{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestHighlighterRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	h := NewHighlighter(highlight.Default(), tp.Tracer("test"))
	res := h.Run("'''a''' [[b]]")
	require.Equal(t, highlight.Highlight("'''a''' [[b]]"), res.HTML)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, SpanHighlight, spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)

	var ruleEvents int
	for _, ev := range spans[0].Events() {
		if ev.Name == "rule.applied" {
			ruleEvents++
		}
	}
	require.Equal(t, 2, ruleEvents)
}

func TestHighlighterMarksFailures(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	e, err := highlight.NewEngine(highlight.WithRegistry(highlight.Registry{
		{Name: "boom", Expr: `x`, Priority: 1, Classes: []string{"mw-x"},
			Render: func(highlight.Match) string { panic("no") }},
	}))
	require.NoError(t, err)

	NewHighlighter(e, tp.Tracer("test")).Run("x")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
}
