// Package renderer provides the templ components that wrap highlighted
// markup in HTML pages: the live editor page served by the server and the
// standalone documents written by the highlight and watch commands.
package renderer

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/wikilight/internal/styles"
)

//go:embed editor.js
var editorScript string

// layoutCSS stacks the overlay under a transparent textarea. The two must
// share font metrics and padding or the decoration drifts from the caret.
const layoutCSS = `
body { margin: 0; background: #111; color: #ddd; font-family: sans-serif; }
header { padding: 8px 16px; display: flex; gap: 16px; align-items: baseline; }
header h1 { font-size: 16px; margin: 0; }
#wikilight-status { font-size: 12px; opacity: 0.7; }
.wikilight-surface { position: relative; height: calc(100vh - 48px); }
.wikilight-surface textarea,
.wikilight-surface pre {
  position: absolute; inset: 0; margin: 0; padding: 12px 16px; border: 0;
  box-sizing: border-box; overflow: auto; white-space: pre-wrap;
  overflow-wrap: break-word; font: inherit; line-height: inherit; tab-size: 4;
}
.wikilight-surface pre { pointer-events: none; }
.wikilight-surface textarea {
  background: transparent; color: transparent; caret-color: #e8e8e8;
  resize: none; outline: none;
}
`

// PageData is the input to EditorPage.
type PageData struct {
	Title string
	// CSS is the installed stylesheet. An empty CSS renders the page
	// without the sheet element.
	CSS string
	// Text is the initial raw markup and HTML its highlighted form.
	Text string
	HTML string
	// WSPath is the websocket endpoint the page connects to.
	WSPath string
}

// EditorPage renders the live editor: a textarea over a highlighted overlay,
// kept in sync through the websocket at data.WSPath.
func EditorPage(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := data.Title
		if title == "" {
			title = "wikilight"
		}
		wsPath := data.WSPath
		if wsPath == "" {
			wsPath = "/ws"
		}

		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
		b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
		fmt.Fprintf(&b, "<title>%s</title>\n", templ.EscapeString(title))
		b.WriteString(styleSheet(data.CSS))
		fmt.Fprintf(&b, "<style>%s</style>\n", layoutCSS)
		b.WriteString("</head>\n<body>\n")
		fmt.Fprintf(&b, "<header><h1>%s</h1><span id=\"wikilight-status\">connecting</span></header>\n",
			templ.EscapeString(title))
		fmt.Fprintf(&b, "<div class=\"%s wikilight-surface\" data-wikilight data-ws=\"%s\">\n",
			styles.EditorClass, templ.EscapeString(wsPath))
		// The trailing newline keeps the overlay as tall as the textarea
		// when the text ends in a blank line.
		fmt.Fprintf(&b, "<pre class=\"%s\" aria-hidden=\"true\">%s\n</pre>\n", styles.HighlightClass, data.HTML)
		fmt.Fprintf(&b, "<textarea spellcheck=\"false\" autocomplete=\"off\" aria-label=\"Markup\">%s</textarea>\n",
			templ.EscapeString(data.Text))
		b.WriteString("</div>\n")
		fmt.Fprintf(&b, "<script>%s</script>\n", editorScript)
		b.WriteString("</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Document renders a read-only page showing already highlighted html with
// the stylesheet css inlined.
func Document(title, css, html string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
		fmt.Fprintf(&b, "<title>%s</title>\n", templ.EscapeString(title))
		b.WriteString(styleSheet(css))
		b.WriteString("</head>\n<body>\n")
		fmt.Fprintf(&b, "<div class=\"%s\"><pre class=\"%s\">%s</pre></div>\n",
			styles.EditorClass, styles.HighlightClass, html)
		b.WriteString("</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// String renders c to a string.
func String(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func styleSheet(css string) string {
	if css == "" {
		return ""
	}
	// A stray closing tag would end the style element early.
	css = strings.ReplaceAll(css, "</", "<\\/")
	return fmt.Sprintf("<style id=\"%s\">\n%s</style>\n", styles.SheetID, css)
}
