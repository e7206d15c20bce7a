package renderer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/styles"
)

func TestEditorPage(t *testing.T) {
	text := "== Intro ==\n<b>not a tag</b> & '''bold'''"
	out, err := String(context.Background(), EditorPage(PageData{
		Title:  "Sandbox <draft>",
		CSS:    styles.Stylesheet(),
		Text:   text,
		HTML:   highlight.Highlight(text),
		WSPath: "/ws",
	}))
	require.NoError(t, err)

	assert.Contains(t, out, `<style id="mediawiki-highlighter-styles">`)
	assert.Contains(t, out, "<title>Sandbox &lt;draft&gt;</title>")
	assert.Contains(t, out, `data-ws="/ws"`)
	assert.Contains(t, out, `<span class="mw-header mw-header-2">`)
	assert.Contains(t, out, `<span class="mw-bold">'''bold'''</span>`)
	assert.Contains(t, out, "&lt;b&gt;not a tag&lt;/b&gt; &amp;")
	assert.NotContains(t, out, "<b>not a tag</b>")
	assert.Contains(t, out, "new WebSocket")
	assert.Equal(t, 1, strings.Count(out, styles.SheetID))
}

func TestEditorPageTextareaRoundTrips(t *testing.T) {
	text := "</textarea><script>alert(1)</script>"
	out, err := String(context.Background(), EditorPage(PageData{Text: text}))
	require.NoError(t, err)

	z := html.NewTokenizer(strings.NewReader(out))
	var inTextarea bool
	var got strings.Builder
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()
		switch {
		case tt == html.StartTagToken && tok.Data == "textarea":
			inTextarea = true
		case tt == html.EndTagToken && tok.Data == "textarea":
			inTextarea = false
		case tt == html.TextToken && inTextarea:
			got.WriteString(tok.Data)
		}
	}
	assert.Equal(t, text, got.String())
}

func TestEditorPageDefaults(t *testing.T) {
	out, err := String(context.Background(), EditorPage(PageData{}))
	require.NoError(t, err)

	assert.Contains(t, out, "<title>wikilight</title>")
	assert.Contains(t, out, `data-ws="/ws"`)
	assert.NotContains(t, out, styles.SheetID)
}

func TestDocument(t *testing.T) {
	body := highlight.Highlight("[[Main Page|home]]")
	out, err := String(context.Background(), Document("page.wiki", styles.Stylesheet(), body))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>page.wiki</title>")
	assert.Contains(t, out, `<div class="mediawiki-editor"><pre class="mw-highlight">`+body+"</pre></div>")
	assert.NotContains(t, out, "<script>")
}

func TestStyleSheetCannotCloseEarly(t *testing.T) {
	out := styleSheet("a::after { content: \"</style><script>\"; }")
	assert.Equal(t, 1, strings.Count(out, "</style>"))
	assert.Contains(t, out, `<\/style>`)
}
