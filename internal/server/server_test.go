package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/wikilight/internal/config"
	"github.com/conneroisu/wikilight/internal/editor"
	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/styles"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Editor.Debounce = 20 * time.Millisecond
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg, opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws",
		&websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg editor.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

// next reads messages until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ editor.MessageType) editor.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var msg editor.Message
		require.NoError(t, wsjson.Read(ctx, conn, &msg), "waiting for %s", typ)
		if msg.Type == typ {
			return msg
		}
	}
}

func text(s string) *string { return &s }

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewRejectsMissingFile(t *testing.T) {
	_, err := New(testConfig(t), WithFile(filepath.Join(t.TempDir(), "missing.wiki")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.wiki")
}

func TestIndexPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sandbox.wiki")
	require.NoError(t, os.WriteFile(path, []byte("== Sandbox ==\n<tag> & '''x'''"), 0o644))

	_, ts := newTestServer(t, testConfig(t), WithFile(path))
	resp, body := get(t, ts.URL+"/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `<style id="mediawiki-highlighter-styles">`)
	assert.Contains(t, body, "<title>Sandbox.wiki - wikilight</title>")
	assert.Contains(t, body, `<span class="mw-header mw-header-2">`)
	assert.Contains(t, body, "&lt;tag&gt; &amp;")
	assert.Contains(t, body, "<textarea")
}

func TestUnknownPathIsNotFound(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	resp, _ := get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStylesheetFollowsRegistry(t *testing.T) {
	s, ts := newTestServer(t, testConfig(t))

	resp, body := get(t, ts.URL+"/styles.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/css; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, styles.Stylesheet(), body)

	require.True(t, s.Styles().Remove())
	resp, _ = get(t, ts.URL+"/styles.css")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, page := get(t, ts.URL+"/")
	assert.NotContains(t, page, styles.SheetID)
}

func TestHighlightAPI(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))

	tests := []struct {
		name     string
		body     string
		status   int
		wantHTML string
	}{
		{"string content", `{"content":"[[Main Page]]"}`, http.StatusOK, highlight.Highlight("[[Main Page]]")},
		{"number content", `{"content":42}`, http.StatusOK, ""},
		{"object content", `{"content":{"a":1}}`, http.StatusOK, ""},
		{"null content", `{"content":null}`, http.StatusOK, ""},
		{"missing content", `{}`, http.StatusOK, ""},
		{"empty string", `{"content":""}`, http.StatusOK, ""},
		{"malformed body", `{"content":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/highlight", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}

			var out HighlightResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tt.wantHTML, out.HTML)
			assert.Empty(t, out.Failures)
		})
	}
}

func TestHighlightAPIMethod(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	resp, _ := get(t, ts.URL+"/api/highlight")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSanitizedHighlight(t *testing.T) {
	cfg := testConfig(t)
	cfg.Highlight.Sanitize = true
	_, ts := newTestServer(t, cfg)

	doc := "== A ==\n'''b''' [[c|d]] {{e|f}} <script>"
	resp, err := http.Post(ts.URL+"/api/highlight", "application/json",
		strings.NewReader(`{"content":`+mustJSON(t, doc)+`}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out HighlightResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.HTML, `<span class="mw-bold">`)
	assert.Contains(t, out.HTML, "&lt;script&gt;")
	assert.NotContains(t, out.HTML, "<script>")
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestRulesAPI(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	resp, body := get(t, ts.URL+"/api/rules")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rules []highlight.RuleInfo
	require.NoError(t, json.Unmarshal([]byte(body), &rules))
	require.Len(t, rules, len(highlight.DefaultRegistry()))
	assert.Equal(t, "header", rules[0].Name)
	for i := 1; i < len(rules); i++ {
		assert.GreaterOrEqual(t, rules[i-1].Priority, rules[i].Priority)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	resp, body := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	checks := health["checks"].(map[string]interface{})
	assert.Equal(t, true, checks["styles"].(map[string]interface{})["installed"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))

	resp, err := http.Post(ts.URL+"/api/highlight", "application/json", strings.NewReader(`{"content":"''x''"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "wikilight_highlight_passes_total 1")
	assert.Contains(t, body, "wikilight_highlight_duration_seconds_count 1")
	assert.Contains(t, body, "wikilight_highlight_cache_entries 1")
	assert.Contains(t, body, "wikilight_editor_sessions 0")
}

func TestCORSForAllowedOrigins(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.AllowedOrigins = []string{"https://wiki.example.org"}
	_, ts := newTestServer(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/highlight", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://wiki.example.org")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://wiki.example.org", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.test")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEditorSession(t *testing.T) {
	s, ts := newTestServer(t, testConfig(t))
	conn := dial(t, ts, nil)

	send(t, conn, editor.Message{Type: editor.MessageText, Content: text("''a''")})
	session := next(t, conn, editor.MessageSession)
	require.NotEmpty(t, session.Session)
	assert.Nil(t, session.Content)

	first := next(t, conn, editor.MessageHighlight)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, `<span class="mw-italic">''a''</span>`, first.HTML)

	for _, edit := range []string{"'", "''", "'''b", "'''b'''"} {
		send(t, conn, editor.Message{Type: editor.MessageText, Content: text(edit)})
	}
	last := next(t, conn, editor.MessageHighlight)
	for last.Version < 5 {
		last = next(t, conn, editor.MessageHighlight)
	}
	assert.Equal(t, uint64(5), last.Version)
	assert.Equal(t, `<span class="mw-bold">'''b'''</span>`, last.HTML)

	send(t, conn, editor.Message{Type: editor.MessageScroll, Scroll: &editor.Scroll{Top: 40, Left: 2}})
	scroll := next(t, conn, editor.MessageScroll)
	require.NotNil(t, scroll.Scroll)
	assert.Equal(t, editor.Scroll{Top: 40, Left: 2}, *scroll.Scroll)

	assert.Equal(t, 1, s.Sessions())
	stored, ok := s.sessions.Get(session.Session)
	require.True(t, ok)
	assert.Equal(t, "'''b'''", stored)
}

func TestEditorRejectsBadMessages(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	conn := dial(t, ts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, "malformed message", next(t, conn, editor.MessageError).Error)

	send(t, conn, editor.Message{Type: "bogus"})
	assert.Contains(t, next(t, conn, editor.MessageError).Error, "bogus")

	send(t, conn, editor.Message{Type: editor.MessageText})
	assert.Contains(t, next(t, conn, editor.MessageError).Error, "without content")
}

func TestEditorResume(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))

	first := dial(t, ts, nil)
	send(t, first, editor.Message{Type: editor.MessageText, Content: text("{{Infobox}}")})
	id := next(t, first, editor.MessageSession).Session
	next(t, first, editor.MessageHighlight)
	require.NoError(t, first.Close(websocket.StatusNormalClosure, ""))

	second := dial(t, ts, nil)
	send(t, second, editor.Message{Type: editor.MessageResume, Session: id})
	resumed := next(t, second, editor.MessageSession)
	assert.Equal(t, id, resumed.Session)
	require.NotNil(t, resumed.Content)
	assert.Equal(t, "{{Infobox}}", *resumed.Content)
	assert.Equal(t, highlight.Highlight("{{Infobox}}"), next(t, second, editor.MessageHighlight).HTML)
}

func TestEditorResumeUnknownSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.wiki")
	require.NoError(t, os.WriteFile(path, []byte("* item"), 0o644))
	_, ts := newTestServer(t, testConfig(t), WithFile(path))

	conn := dial(t, ts, nil)
	send(t, conn, editor.Message{Type: editor.MessageResume, Session: "expired"})
	msg := next(t, conn, editor.MessageSession)
	assert.NotEqual(t, "expired", msg.Session)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "* item", *msg.Content)
}

func TestWebSocketOrigin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.AllowedOrigins = []string{"https://wiki.example.org"}
	_, ts := newTestServer(t, cfg)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {"https://evil.test"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	dial(t, ts, http.Header{"Origin": {"https://wiki.example.org"}})
	dial(t, ts, http.Header{"Origin": {ts.URL}})
}

func TestCheckOrigin(t *testing.T) {
	s, err := New(testConfig(t))
	require.NoError(t, err)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:8080", true},
		{"https://other.test", false},
		{"file://localhost:8080", false},
		{"::bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, s.checkOrigin(r), tt.origin)
	}

	s.cfg.Server.AllowedOrigins = []string{"*"}
	r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/ws", nil)
	r.Header.Set("Origin", "https://other.test")
	assert.True(t, s.checkOrigin(r))
}

func TestReloadPushesToEditors(t *testing.T) {
	s, ts := newTestServer(t, testConfig(t))
	conn := dial(t, ts, nil)
	send(t, conn, editor.Message{Type: editor.MessageText, Content: text("old")})
	next(t, conn, editor.MessageHighlight)

	s.Reload("== New ==")

	reload := next(t, conn, editor.MessageReload)
	require.NotNil(t, reload.Content)
	assert.Equal(t, "== New ==", *reload.Content)
	assert.Equal(t, highlight.Highlight("== New =="), next(t, conn, editor.MessageHighlight).HTML)
	assert.Equal(t, "== New ==", s.initialText())
}

func TestServedFileIsWatched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.wiki")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o644))

	s, err := New(testConfig(t), WithFile(path))
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), listener) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		assert.NoError(t, <-done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+listener.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	send(t, conn, editor.Message{Type: editor.MessageResume})
	initial := next(t, conn, editor.MessageSession)
	require.NotNil(t, initial.Content)
	assert.Equal(t, "before", *initial.Content)

	require.NoError(t, os.WriteFile(path, []byte("'''after'''"), 0o644))
	// The write may surface as a truncation followed by the new contents.
	for {
		reload := next(t, conn, editor.MessageReload)
		require.NotNil(t, reload.Content)
		if *reload.Content == "'''after'''" {
			break
		}
	}
	assert.Equal(t, "'''after'''", s.initialText())
}

func TestShutdownClosesEditors(t *testing.T) {
	s, ts := newTestServer(t, testConfig(t))
	conn := dial(t, ts, nil)
	send(t, conn, editor.Message{Type: editor.MessageText, Content: text("x")})
	next(t, conn, editor.MessageHighlight)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))

	_, _, err := conn.Read(ctx)
	assert.Error(t, err)
	assert.False(t, s.Styles().Installed())
	assert.Equal(t, 0, s.Sessions())

	resp, _ := get(t, ts.URL+"/ws")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
