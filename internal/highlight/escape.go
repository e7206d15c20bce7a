package highlight

import "strings"

// htmlEscaper only touches the characters that could start markup in the
// rendered document. The apostrophe is deliberately left alone because it is
// the bold/italic delimiter the rules look for.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape makes raw editor text safe to embed in HTML. Every character other
// than & < > and " is returned unchanged, including all wiki delimiters.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return htmlEscaper.Replace(text)
}
