package tracing

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/wikilight/internal/highlight"
)

// Span names and attribute keys.
const (
	SpanHighlight = "highlight.run"

	AttrInputBytes  = "highlight.input.bytes"
	AttrOutputBytes = "highlight.output.bytes"
	AttrFailures    = "highlight.failures"
	AttrRule        = "highlight.rule"
	AttrRuleCount   = "highlight.rule.count"
)

// Runner is anything that produces a highlight result.
type Runner interface {
	Run(text string) highlight.Result
}

// Highlighter wraps a Runner so every run is recorded as a span. Rule
// failures become span events and mark the span as errored.
type Highlighter struct {
	next   Runner
	tracer trace.Tracer
}

// NewHighlighter returns next wrapped in spans from tracer.
func NewHighlighter(next Runner, tracer trace.Tracer) *Highlighter {
	return &Highlighter{next: next, tracer: tracer}
}

// Run highlights text inside a root span.
func (h *Highlighter) Run(text string) highlight.Result {
	return h.RunContext(context.Background(), text)
}

// RunContext highlights text inside a span parented on ctx.
func (h *Highlighter) RunContext(ctx context.Context, text string) highlight.Result {
	_, span := h.tracer.Start(ctx, SpanHighlight,
		trace.WithAttributes(attribute.Int(AttrInputBytes, len(text))))
	defer span.End()

	res := h.next.Run(text)

	span.SetAttributes(
		attribute.Int(AttrOutputBytes, len(res.HTML)),
		attribute.Int(AttrFailures, len(res.Failures)),
	)

	rules := make([]string, 0, len(res.Counts))
	for rule := range res.Counts {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	for _, rule := range rules {
		span.AddEvent("rule.applied", trace.WithAttributes(
			attribute.String(AttrRule, rule),
			attribute.Int(AttrRuleCount, res.Counts[rule]),
		))
	}

	for _, err := range res.Failures {
		span.RecordError(err)
	}
	if len(res.Failures) > 0 {
		span.SetStatus(codes.Error, "highlight rules skipped")
	}

	return res
}
