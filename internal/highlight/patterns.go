package highlight

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// Pattern is one markup rule: what to look for, when to look for it, and how
// to decorate what was found. Patterns are values and are never modified
// after the registry is built.
type Pattern struct {
	// Name identifies the rule in logs, metrics and failure reports.
	Name string
	// Expr is a regexp2 (.NET flavoured) expression. Backreferences and
	// lookarounds are available.
	Expr string
	// Options are the regexp2 compile options for Expr.
	Options regexp2.RegexOptions
	// Priority orders rule application, highest first. Rules with equal
	// priority keep their registry order.
	Priority int
	// Classes lists every class name Render can emit.
	Classes []string
	// MatchesMarkup marks rules whose expression is written against markup
	// emitted by earlier rules. Their captured groups are not required to be
	// balanced on their own, only the match as a whole.
	MatchesMarkup bool
	// Render turns a match into the replacement fragment. It must re-emit
	// every character of the match so the visible text is unchanged.
	Render func(m Match) string
}

// Registry is an ordered catalogue of patterns.
type Registry []Pattern

// Match is the view of one regexp match handed to a renderer. Group 0 is the
// whole match.
type Match struct {
	groups  []string
	present []bool
}

// Text returns the whole matched text.
func (m Match) Text() string {
	return m.Group(0)
}

// Group returns the text of group i, or "" when the group did not take part
// in the match.
func (m Match) Group(i int) string {
	if i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}

// Has reports whether group i took part in the match.
func (m Match) Has(i int) bool {
	return i >= 0 && i < len(m.present) && m.present[i]
}

// NewMatch builds a Match from group texts. Empty groups count as absent.
// It exists for tests and for callers rendering fragments by hand.
func NewMatch(groups ...string) Match {
	present := make([]bool, len(groups))
	for i, g := range groups {
		present[i] = g != ""
	}
	return Match{groups: groups, present: present}
}

func span(class, inner string) string {
	return `<span class="` + class + `">` + inner + `</span>`
}

// DefaultRegistry returns the MediaWiki rule set. Each call returns a fresh
// slice so callers may extend it without affecting other engines.
func DefaultRegistry() Registry {
	return Registry{
		{
			Name:     "header",
			Expr:     `^(={1,6})([ \t]*)(.+?)([ \t]*)\1([ \t]*)(?=\r?$)`,
			Options:  regexp2.Multiline,
			Priority: 10,
			Classes: []string{
				"mw-header", "mw-header-1", "mw-header-2", "mw-header-3",
				"mw-header-4", "mw-header-5", "mw-header-6",
			},
			Render: func(m Match) string {
				equals := m.Group(1)
				class := "mw-header mw-header-" + strconv.Itoa(len(equals))
				return span(class, equals+m.Group(2)+m.Group(3)+m.Group(4)+equals+m.Group(5))
			},
		},
		{
			Name:     "bold",
			Expr:     `'''([^']+?)'''`,
			Priority: 8,
			Classes:  []string{"mw-bold"},
			Render: func(m Match) string {
				return span("mw-bold", "'''"+m.Group(1)+"'''")
			},
		},
		{
			Name:     "italic",
			Expr:     `(?<!')''([^']+?)''(?!')`,
			Priority: 7,
			Classes:  []string{"mw-italic"},
			Render: func(m Match) string {
				return span("mw-italic", "''"+m.Group(1)+"''")
			},
		},
		{
			Name:     "link",
			Expr:     `\[\[([^\]|]+?)(\|([^\]]+?))?\]\]`,
			Priority: 9,
			Classes:  []string{"mw-link", "mw-link-target", "mw-link-display"},
			Render: func(m Match) string {
				var b strings.Builder
				b.WriteString("[[")
				b.WriteString(span("mw-link-target", m.Group(1)))
				if m.Has(2) {
					b.WriteString("|")
					b.WriteString(span("mw-link-display", m.Group(3)))
				}
				b.WriteString("]]")
				return span("mw-link", b.String())
			},
		},
		{
			Name:     "external-link",
			Expr:     `\[([^\s\]\[]+)(\s+)([^\]]+?)\]`,
			Priority: 9,
			Classes:  []string{"mw-external-link", "mw-url", "mw-link-text"},
			Render: func(m Match) string {
				return span("mw-external-link",
					"["+span("mw-url", m.Group(1))+m.Group(2)+span("mw-link-text", m.Group(3))+"]")
			},
		},
		{
			Name:     "template",
			Expr:     `\{\{([^}|]+?)(\|([^}]*?))?\}\}`,
			Priority: 8,
			Classes:  []string{"mw-template", "mw-template-name", "mw-template-params"},
			Render: func(m Match) string {
				var b strings.Builder
				b.WriteString("{{")
				b.WriteString(span("mw-template-name", m.Group(1)))
				if m.Has(2) {
					b.WriteString("|")
					b.WriteString(span("mw-template-params", m.Group(3)))
				}
				b.WriteString("}}")
				return span("mw-template", b.String())
			},
		},
		{
			Name:     "unordered-list",
			Expr:     `^(\*+)([ \t]*)(.+?)(?=\r?$)`,
			Options:  regexp2.Multiline,
			Priority: 6,
			Classes:  []string{"mw-list", "mw-list-unordered", "mw-list-bullets"},
			Render: func(m Match) string {
				return span("mw-list mw-list-unordered",
					span("mw-list-bullets", m.Group(1))+m.Group(2)+m.Group(3))
			},
		},
		{
			Name:     "ordered-list",
			Expr:     `^(#+)([ \t]*)(.+?)(?=\r?$)`,
			Options:  regexp2.Multiline,
			Priority: 6,
			Classes:  []string{"mw-list", "mw-list-ordered", "mw-list-numbers"},
			Render: func(m Match) string {
				return span("mw-list mw-list-ordered",
					span("mw-list-numbers", m.Group(1))+m.Group(2)+m.Group(3))
			},
		},
		{
			// Links run first, so a category usually arrives already wrapped
			// as a link. The first alternative layers the category wrapper
			// around that link; the second catches raw category markup the
			// link rule left alone, such as an empty sort key.
			Name: "category",
			Expr: `(<span class="mw-link">\[\[<span class="mw-link-target">)Category:([^<\]]+?)` +
				`(</span>(?:\|<span class="mw-link-display">[^<]*</span>)?\]\]</span>)` +
				`|\[\[Category:([^\]]+?)\]\]`,
			Priority:      5,
			Classes:       []string{"mw-category", "mw-category-name"},
			MatchesMarkup: true,
			Render: func(m Match) string {
				if m.Has(2) {
					return span("mw-category",
						m.Group(1)+"Category:"+span("mw-category-name", m.Group(2))+m.Group(3))
				}
				return span("mw-category", "[[Category:"+span("mw-category-name", m.Group(4))+"]]")
			},
		},
		{
			Name:     "comment",
			Expr:     `&lt;!--(.*?)--&gt;`,
			Options:  regexp2.Singleline,
			Priority: 4,
			Classes:  []string{"mw-comment"},
			Render: func(m Match) string {
				return span("mw-comment", "&lt;!--"+m.Group(1)+"--&gt;")
			},
		},
		{
			Name:     "table",
			Expr:     `^(\{\|.*?)^\|\}[ \t]*(?=\r?$)`,
			Options:  regexp2.Multiline | regexp2.Singleline,
			Priority: 3,
			Classes:  []string{"mw-table"},
			Render: func(m Match) string {
				return span("mw-table", m.Text())
			},
		},
		{
			Name:     "table-row",
			Expr:     `^\|-.*?(?=\r?$)`,
			Options:  regexp2.Multiline,
			Priority: 2,
			Classes:  []string{"mw-table-row"},
			Render: func(m Match) string {
				return span("mw-table-row", m.Text())
			},
		},
		{
			Name:     "table-cell",
			Expr:     `^\|([^\-}\r\n].*?)(?=\r?$)`,
			Options:  regexp2.Multiline,
			Priority: 2,
			Classes:  []string{"mw-table-cell"},
			Render: func(m Match) string {
				return span("mw-table-cell", m.Text())
			},
		},
	}
}
