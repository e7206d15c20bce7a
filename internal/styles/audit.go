package styles

import (
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

var classSelector = regexp.MustCompile(`\.(-?[_a-zA-Z][_a-zA-Z0-9-]*)`)

// Selectors parses cssText and returns the sorted class names that appear in
// any rule's selectors, including rules nested in at-rules.
func Selectors(cssText string) ([]string, error) {
	sheet, err := parser.Parse(cssText)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var walk func(rules []*css.Rule)
	walk = func(rules []*css.Rule) {
		for _, rule := range rules {
			for _, sel := range rule.Selectors {
				for _, m := range classSelector.FindAllStringSubmatch(sel, -1) {
					seen[m[1]] = struct{}{}
				}
			}
			walk(rule.Rules)
		}
	}
	walk(sheet.Rules)

	return sortedKeys(seen), nil
}

// Missing returns the classes in vocabulary that the built-in stylesheet has
// no rule for.
func Missing(vocabulary []string) ([]string, error) {
	return MissingFrom(Stylesheet(), vocabulary)
}

// MissingFrom is Missing against an arbitrary stylesheet.
func MissingFrom(cssText string, vocabulary []string) ([]string, error) {
	styled, err := Selectors(cssText)
	if err != nil {
		return nil, err
	}
	have := make(map[string]struct{}, len(styled))
	for _, c := range styled {
		have[c] = struct{}{}
	}

	missing := make(map[string]struct{})
	for _, c := range vocabulary {
		if _, ok := have[c]; !ok {
			missing[c] = struct{}{}
		}
	}
	return sortedKeys(missing), nil
}

// ClassesInHTML returns the sorted class names used by elements in an HTML
// fragment.
func ClassesInHTML(fragment string) ([]string, error) {
	seen := make(map[string]struct{})
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return sortedKeys(seen), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			for {
				key, val, more := z.TagAttr()
				if string(key) == "class" {
					for _, c := range strings.Fields(string(val)) {
						seen[c] = struct{}{}
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
