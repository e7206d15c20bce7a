//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"fmt"
	"io"
	"net/http"
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
	"github.com/conneroisu/wikilight/internal/server"
)

type runningServer struct {
	srv     *server.Server
	baseURL string
	done    chan error
}

func startServer(t *testing.T, file string) *runningServer {
	t.Helper()

	port, err := FindAvailablePort()
	require.NoError(t, err)

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port
	cfg.Editor.Debounce = 20 * time.Millisecond
	cfg.Watch.Debounce = 20 * time.Millisecond

	var opts []server.Option
	if file != "" {
		opts = append(opts, server.WithFile(file))
	}
	srv, err := server.New(cfg, opts...)
	require.NoError(t, err)

	rs := &runningServer{
		srv:     srv,
		baseURL: fmt.Sprintf("http://%s", cfg.Server.Addr()),
		done:    make(chan error, 1),
	}
	go func() { rs.done <- srv.Start(context.Background()) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		select {
		case err := <-rs.done:
			assert.NoError(t, err)
		case <-ctx.Done():
			t.Error("server did not stop")
		}
	})

	_, err = WaitForServerReadiness(context.Background(), rs.baseURL, nil)
	require.NoError(t, err)
	return rs
}

func (rs *runningServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout())
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(rs.baseURL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func await(t *testing.T, conn *websocket.Conn, typ editor.MessageType, accept func(editor.Message) bool) editor.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout())
	defer cancel()
	for {
		var msg editor.Message
		require.NoError(t, wsjson.Read(ctx, conn, &msg), "waiting for %s", typ)
		if msg.Type == typ && (accept == nil || accept(msg)) {
			return msg
		}
	}
}

func write(t *testing.T, conn *websocket.Conn, msg editor.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout())
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

func TestIntegration_EditorHighlightsWhileTyping(t *testing.T) {
	rs := startServer(t, "")

	resp, err := http.Get(rs.baseURL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "data-wikilight")

	conn := rs.dial(t)
	text := "== Intro ==\n'''bold''' and [[Link]]"
	write(t, conn, editor.Message{Type: editor.MessageText, Content: &text})

	session := await(t, conn, editor.MessageSession, nil)
	assert.NotEmpty(t, session.Session)

	got := await(t, conn, editor.MessageHighlight, nil)
	assert.Equal(t, highlight.Highlight(text), got.HTML)

	for _, typed := range []string{"''a", "''ab", "''ab''"} {
		typed := typed
		write(t, conn, editor.Message{Type: editor.MessageText, Content: &typed})
	}
	final := await(t, conn, editor.MessageHighlight, func(m editor.Message) bool {
		return m.HTML == highlight.Highlight("''ab''")
	})
	assert.Contains(t, final.HTML, "mw-italic")
}

func TestIntegration_EditorFollowsFile(t *testing.T) {
	dir := t.TempDir()
	path := CreateTestDocument(t, dir, "page.wiki", "{{Infobox}}")
	rs := startServer(t, path)

	conn := rs.dial(t)
	write(t, conn, editor.Message{Type: editor.MessageResume, Session: "unknown"})

	session := await(t, conn, editor.MessageSession, nil)
	require.NotNil(t, session.Content)
	assert.Equal(t, "{{Infobox}}", *session.Content)
	await(t, conn, editor.MessageHighlight, nil)

	CreateTestDocument(t, dir, "page.wiki", "* item")
	reload := await(t, conn, editor.MessageReload, func(m editor.Message) bool {
		return m.Content != nil && *m.Content == "* item"
	})
	assert.Equal(t, session.Session, reload.Session)

	got := await(t, conn, editor.MessageHighlight, func(m editor.Message) bool {
		return strings.Contains(m.HTML, "mw-list")
	})
	assert.Equal(t, highlight.Highlight("* item"), got.HTML)
}

func TestIntegration_ResumeAfterReconnect(t *testing.T) {
	rs := startServer(t, "")

	first := rs.dial(t)
	text := "<!-- kept -->"
	write(t, first, editor.Message{Type: editor.MessageText, Content: &text})
	session := await(t, first, editor.MessageSession, nil)
	await(t, first, editor.MessageHighlight, nil)
	require.NoError(t, first.Close(websocket.StatusNormalClosure, ""))

	second := rs.dial(t)
	write(t, second, editor.Message{Type: editor.MessageResume, Session: session.Session})
	resumed := await(t, second, editor.MessageSession, nil)
	assert.Equal(t, session.Session, resumed.Session)
	require.NotNil(t, resumed.Content)
	assert.Equal(t, text, *resumed.Content)
}
