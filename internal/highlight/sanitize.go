package highlight

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var classAttr = regexp.MustCompile(`^mw-[a-z0-9-]+( mw-[a-z0-9-]+)*$`)

// Sanitizer strips anything from a highlighted document that the engine
// would never emit. Engine output only ever contains <span class="mw-...">
// elements, so this is a second line of defence for documents that travel
// through other hands before being shown.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds the span-only policy.
func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("span")
	p.AllowAttrs("class").Matching(classAttr).OnElements("span")
	return &Sanitizer{policy: p}
}

// Sanitize returns html with disallowed elements and attributes removed.
// Text content is kept; entities may be re-encoded in a different but
// equivalent form.
func (s *Sanitizer) Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return s.policy.Sanitize(html)
}
