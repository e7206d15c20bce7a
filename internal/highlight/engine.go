package highlight

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/conneroisu/wikilight/internal/errors"
)

// DefaultMatchTimeout bounds a single regexp2 match. Backtracking rules can
// blow up on adversarial input; a rule that exceeds the bound is skipped for
// that run instead of stalling the editor.
const DefaultMatchTimeout = 250 * time.Millisecond

// Result is the outcome of one highlight run.
type Result struct {
	// HTML is the decorated, escaped document.
	HTML string
	// Failures lists rules that were skipped because they panicked or timed
	// out. The HTML is still complete; it only lacks those decorations.
	Failures []error
	// Counts is the number of decorations each rule applied.
	Counts map[string]int
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	registry Registry
	timeout  time.Duration
}

// WithRegistry replaces the default rule set.
func WithRegistry(r Registry) Option {
	return func(o *engineOptions) {
		o.registry = r
	}
}

// WithMatchTimeout sets the per-match timeout. Non-positive values keep the
// default.
func WithMatchTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

type compiledRule struct {
	pattern Pattern
	re      *regexp2.Regexp
}

// Engine applies a registry to text. It holds only compiled, read-only
// state and is safe for concurrent use.
type Engine struct {
	rules   []compiledRule
	timeout time.Duration
}

// NewEngine compiles the registry in priority order.
func NewEngine(opts ...Option) (*Engine, error) {
	o := engineOptions{timeout: DefaultMatchTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}

	sorted := make(Registry, len(o.registry))
	copy(sorted, o.registry)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	rules := make([]compiledRule, 0, len(sorted))
	for _, p := range sorted {
		if p.Render == nil {
			return nil, errors.NewPatternError(p.Name, errors.ErrCodePatternCompile, "rule has no renderer", nil)
		}
		re, err := regexp2.Compile(p.Expr, p.Options)
		if err != nil {
			return nil, errors.NewPatternError(p.Name, errors.ErrCodePatternCompile, "invalid expression", err)
		}
		re.MatchTimeout = o.timeout
		rules = append(rules, compiledRule{pattern: p, re: re})
	}

	return &Engine{rules: rules, timeout: o.timeout}, nil
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// Default returns the shared engine built from DefaultRegistry.
func Default() *Engine {
	defaultEngineOnce.Do(func() {
		e, err := NewEngine()
		if err != nil {
			panic(fmt.Sprintf("highlight: default registry does not compile: %v", err))
		}
		defaultEngine = e
	})
	return defaultEngine
}

// Highlight decorates text with the default engine.
func Highlight(text string) string {
	return Default().Highlight(text)
}

// HighlightAny is Highlight for loosely typed callers such as JSON payloads.
// Anything that is not a string yields an empty document.
func HighlightAny(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Highlight(s)
}

// Highlight returns the decorated HTML for text.
func (e *Engine) Highlight(text string) string {
	return e.Run(text).HTML
}

// Run escapes text and threads it through every rule in priority order, each
// rule working on the previous rule's output.
func (e *Engine) Run(text string) Result {
	if text == "" {
		return Result{}
	}

	collector := errors.NewCollector()
	counts := make(map[string]int, len(e.rules))
	working := Escape(text)

	for i := range e.rules {
		out, n, err := e.apply(&e.rules[i], working)
		if err != nil {
			collector.Add(err)
			continue
		}
		if n > 0 {
			counts[e.rules[i].pattern.Name] += n
		}
		working = out
	}

	return Result{
		HTML:     working,
		Failures: collector.Errors(),
		Counts:   counts,
	}
}

// apply runs one rule over working. On failure the caller keeps working as
// it was; partial output from the failed rule is never returned.
func (e *Engine) apply(r *compiledRule, working string) (out string, applied int, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, applied = working, 0
			err = errors.NewPatternError(r.pattern.Name, errors.ErrCodePatternPanic,
				"rule panicked", fmt.Errorf("%v", p))
		}
	}()

	runes := []rune(working)
	offsets := runeOffsets(working)
	tags := scanTags(runes)

	var b strings.Builder
	last, pos := 0, 0
	for pos <= len(runes) {
		m, merr := r.re.FindRunesMatchStartingAt(runes, pos)
		if merr != nil {
			return working, 0, errors.NewPatternError(r.pattern.Name, errors.ErrCodePatternTimeout,
				"match failed", merr).WithContext("timeout", e.timeout.String())
		}
		if m == nil {
			break
		}

		start, end := m.Index, m.Index+m.Length
		if m.Length == 0 || !acceptable(m, tags, r.pattern.MatchesMarkup) {
			pos = start + 1
			continue
		}

		if applied == 0 {
			b.Grow(len(working) + 64)
		}
		b.WriteString(working[offsets[last]:offsets[start]])
		b.WriteString(r.pattern.Render(toMatch(m, working, offsets)))
		applied++
		last, pos = end, end
	}

	if applied == 0 {
		return working, 0, nil
	}
	b.WriteString(working[offsets[last]:])
	return b.String(), applied, nil
}

// acceptable keeps a rule from decorating across the markup of an earlier
// rule: the match, and unless the rule targets markup each captured group,
// must cover whole, balanced tags only.
func acceptable(m *regexp2.Match, tags tagIndex, matchesMarkup bool) bool {
	if !tags.balanced(m.Index, m.Index+m.Length) {
		return false
	}
	if matchesMarkup {
		return true
	}
	groups := m.Groups()
	for i := 1; i < len(groups); i++ {
		g := &groups[i]
		if len(g.Captures) == 0 {
			continue
		}
		if !tags.balanced(g.Index, g.Index+g.Length) {
			return false
		}
	}
	return true
}

// runeOffsets maps the rune indices regexp2 reports to byte offsets in s,
// with one extra entry for len(s). An invalid byte counts as one rune, as it
// does in []rune(s), so slicing s by these offsets keeps the bytes as written.
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}

func toMatch(m *regexp2.Match, s string, offsets []int) Match {
	groups := m.Groups()
	out := Match{
		groups:  make([]string, len(groups)),
		present: make([]bool, len(groups)),
	}
	for i := range groups {
		if len(groups[i].Captures) == 0 {
			continue
		}
		g := &groups[i]
		out.groups[i] = s[offsets[g.Index]:offsets[g.Index+g.Length]]
		out.present[i] = true
	}
	return out
}

// RuleInfo describes one rule for listings.
type RuleInfo struct {
	Name     string   `json:"name" yaml:"name"`
	Priority int      `json:"priority" yaml:"priority"`
	Expr     string   `json:"expr" yaml:"expr"`
	Classes  []string `json:"classes" yaml:"classes"`
}

// Rules returns the engine's rules in application order.
func (e *Engine) Rules() []RuleInfo {
	out := make([]RuleInfo, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, RuleInfo{
			Name:     r.pattern.Name,
			Priority: r.pattern.Priority,
			Expr:     r.pattern.Expr,
			Classes:  append([]string(nil), r.pattern.Classes...),
		})
	}
	return out
}

// Classes returns the sorted set of class names the engine can emit.
func (e *Engine) Classes() []string {
	seen := make(map[string]struct{})
	for _, r := range e.rules {
		for _, c := range r.pattern.Classes {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
