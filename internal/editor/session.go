// Package editor keeps an editable text surface and its highlighted overlay
// in step.
//
// The raw text is the source of truth. Edits are stored immediately and the
// overlay is re-rendered once typing pauses; scroll positions are mirrored
// straight away. Renders that finish after a newer edit are dropped, so the
// overlay never shows text newer or older than what it claims to.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/wikilight/internal/debounce"
	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/logging"
)

// DefaultDebounce is how long typing must pause before the overlay is
// re-rendered.
const DefaultDebounce = 300 * time.Millisecond

// Highlighter renders text into a highlight result. *highlight.Engine and
// *highlight.Cache both satisfy it.
type Highlighter interface {
	Run(text string) highlight.Result
}

// Scroll is a scroll offset in pixels.
type Scroll struct {
	Top  int `json:"top"`
	Left int `json:"left"`
}

// State is a point-in-time copy of a session.
type State struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Version  uint64 `json:"version"`
	HTML     string `json:"html"`
	Rendered uint64 `json:"rendered"`
	Scroll   Scroll `json:"scroll"`
}

// Option configures a Session.
type Option func(*Session)

// WithHighlighter replaces the default engine.
func WithHighlighter(h Highlighter) Option {
	return func(s *Session) {
		if h != nil {
			s.hl = h
		}
	}
}

// WithDebounce sets the render delay.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.wait = d
	}
}

// WithClock sets the clock the render debouncer runs on.
func WithClock(c debounce.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithLogger sets the session logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session binds one editable surface to its overlay.
type Session struct {
	id    string
	sink  Sink
	hl    Highlighter
	log   logging.Logger
	wait  time.Duration
	clock debounce.Clock

	renders *debounce.Debouncer[uint64]

	mu       sync.Mutex
	text     string
	version  uint64
	html     string
	rendered uint64
	scroll   Scroll
	closed   bool
}

// NewSession returns an empty session publishing to sink.
func NewSession(id string, sink Sink, opts ...Option) *Session {
	s := &Session{
		id:    id,
		sink:  sink,
		hl:    highlight.Default(),
		log:   logging.Nop(),
		wait:  DefaultDebounce,
		clock: debounce.RealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = Discard
	}
	s.log = s.log.With("session", id)
	s.renders = debounce.New(s.render, s.wait, debounce.WithClock(s.clock))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Load replaces the text and renders it at once, bypassing the debounce. It
// is used when a document is first opened or reloaded from disk.
func (s *Session) Load(text string) uint64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.version++
	s.text = text
	v := s.version
	s.mu.Unlock()

	s.render(v)
	return v
}

// SetText records an edit and schedules a render. It returns the new
// version.
func (s *Session) SetText(text string) uint64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.version++
	s.text = text
	v := s.version
	s.mu.Unlock()

	s.renders.Trigger(v)
	return v
}

// render highlights the text of version v and publishes it, unless a newer
// edit has arrived in the meantime.
func (s *Session) render(v uint64) {
	s.mu.Lock()
	if s.closed || v != s.version {
		s.mu.Unlock()
		return
	}
	text := s.text
	s.mu.Unlock()

	op := logging.StartOperation(s.log, "render")
	res := s.hl.Run(text)
	for _, err := range res.Failures {
		s.log.Warn(context.Background(), err, "Highlight rule skipped", "version", v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || v != s.version || v <= s.rendered {
		s.log.Debug(context.Background(), "Dropped stale render", "version", v, "current", s.version)
		return
	}
	s.html = res.HTML
	s.rendered = v
	op.End(context.Background(), "version", v, "bytes", len(text))

	s.sink.Publish(Message{
		Type:     MessageHighlight,
		Session:  s.id,
		Version:  v,
		HTML:     res.HTML,
		Failures: failureStrings(res.Failures),
	})
}

// Scroll mirrors a scroll position to the overlay.
func (s *Session) Scroll(pos Scroll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.scroll = pos
	s.sink.Publish(Message{Type: MessageScroll, Session: s.id, Scroll: &pos})
}

// Flush renders a pending edit now. It reports whether one was pending.
func (s *Session) Flush() bool {
	return s.renders.Flush()
}

// Pending reports whether an edit is waiting to be rendered.
func (s *Session) Pending() bool {
	return s.renders.Pending()
}

// Snapshot returns the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:       s.id,
		Text:     s.text,
		Version:  s.version,
		HTML:     s.html,
		Rendered: s.rendered,
		Scroll:   s.scroll,
	}
}

// Close stops rendering. Pending edits are discarded and later calls do
// nothing.
func (s *Session) Close() {
	s.renders.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func failureStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
