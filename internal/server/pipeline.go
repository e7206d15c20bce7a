package server

import (
	"context"
	"time"

	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/tracing"
)

// Pipeline is the highlighter every request and editor session goes through:
// cache lookup, tracing, metrics and the optional sanitize pass, in that
// order. It satisfies editor.Highlighter.
type Pipeline struct {
	cache     *highlight.Cache
	traced    *tracing.Highlighter
	sanitizer *highlight.Sanitizer
	metrics   *Metrics
}

// Run highlights text.
func (p *Pipeline) Run(text string) highlight.Result {
	return p.RunContext(context.Background(), text)
}

// RunContext highlights text with its span parented on ctx.
func (p *Pipeline) RunContext(ctx context.Context, text string) highlight.Result {
	start := time.Now()
	res := p.traced.RunContext(ctx, text)
	p.metrics.observeHighlight(res, time.Since(start))

	if p.sanitizer != nil {
		res.HTML = p.sanitizer.Sanitize(res.HTML)
	}
	return res
}

// Engine returns the engine behind the cache.
func (p *Pipeline) Engine() *highlight.Engine {
	return p.cache.Engine()
}
