package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/wikilight/internal/editor"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed between messages from the peer before it is dropped.
	readWait = 5 * time.Minute

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer. Text messages carry the whole
	// document.
	maxMessageSize = 4 << 20

	sendBuffer = 64
)

// client is one websocket connection and the editor session bound to it.
// The session is created by the first message the client sends.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server

	mu      sync.Mutex
	session *editor.Session
	closed  bool
}

// Publish implements editor.Sink. It never blocks: when the client is too
// slow to drain its buffer the message is dropped and the next highlight
// supersedes it.
func (c *client) Publish(msg editor.Message) {
	if msg.Type == editor.MessageHighlight {
		c.server.metrics.renders.Inc()
	}
	c.enqueue(msg)
}

func (c *client) enqueue(msg editor.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.server.log.Error(context.Background(), err, "Failed to marshal editor message", "type", msg.Type)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.server.log.Warn(context.Background(), nil, "Editor client send buffer full, dropping message", "type", msg.Type)
	}
}

func (c *client) currentSession() *editor.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// close stops the session and the write pump. Safe to call more than once.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	session := c.session
	close(c.send)
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}
}

// hub tracks the connected clients.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) register(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *hub) unregister(c *client) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	return len(h.clients), ok
}

func (h *hub) each(fn func(*client)) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		fn(c)
	}
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every client.
func (h *hub) closeAll(reason string) {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		_ = c.conn.Close(websocket.StatusGoingAway, reason)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isShutdown() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	if !s.checkOrigin(r) {
		s.log.Warn(r.Context(), nil, "WebSocket origin rejected", "origin", r.Header.Get("Origin"))
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins were checked above against server.allowed_origins.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.log.Error(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}
	total := s.hub.register(c)
	s.metrics.sessions.Set(float64(total))
	s.log.Debug(r.Context(), "Editor client connected", "clients", total)

	go c.writePump(s.ctx)
	c.readPump(s.ctx)
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-origin requests and the configured allowed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}
	if strings.EqualFold(originURL.Host, r.Host) {
		return true
	}

	return s.isAllowedOrigin(origin)
}

func (s *Server) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	origin = strings.TrimSuffix(origin, "/")
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// readPump decodes client messages until the connection fails or the
// server shuts down.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		if total, ok := c.server.hub.unregister(c); ok {
			c.server.metrics.sessions.Set(float64(total))
			c.server.log.Debug(context.Background(), "Editor client disconnected", "clients", total)
		}
		c.close()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		readCtx, cancel := context.WithTimeout(ctx, readWait)
		typ, data, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.server.log.Debug(context.Background(), "WebSocket read ended", "error", err.Error())
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg editor.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(editor.Message{Type: editor.MessageError, Error: "malformed message"})
			continue
		}
		c.handle(msg)
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.server.log.Debug(context.Background(), "WebSocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// handle dispatches one client message.
func (c *client) handle(msg editor.Message) {
	switch msg.Type {
	case editor.MessageResume:
		c.resume(msg.Session)

	case editor.MessageText:
		if msg.Content == nil {
			c.enqueue(editor.Message{Type: editor.MessageError, Error: "text message without content"})
			return
		}
		text := *msg.Content
		session := c.currentSession()
		if session == nil {
			// The first edit of a fresh client renders straight away.
			session = c.open(c.server.sessions.NewID(), nil)
			c.server.sessions.Save(session.ID(), text)
			session.Load(text)
			return
		}
		c.server.metrics.edits.Inc()
		c.server.sessions.Save(session.ID(), text)
		session.SetText(text)

	case editor.MessageScroll:
		if msg.Scroll == nil {
			return
		}
		if session := c.currentSession(); session != nil {
			session.Scroll(*msg.Scroll)
		}

	default:
		c.enqueue(editor.Message{Type: editor.MessageError, Error: "unknown message type " + string(msg.Type)})
	}
}

// resume binds the client to the stored session id, or to a new session
// holding the server's initial text when id is unknown or expired.
func (c *client) resume(id string) {
	if c.currentSession() != nil {
		return
	}

	text, ok := "", false
	if id != "" {
		text, ok = c.server.sessions.Get(id)
	}
	if !ok {
		id = c.server.sessions.NewID()
		text = c.server.initialText()
	}

	session := c.open(id, &text)
	c.server.sessions.Save(id, text)
	session.Load(text)
}

// open creates the client's editor session and tells the client its id. A
// non-nil content is sent along so the client can replace what its textarea
// holds.
func (c *client) open(id string, content *string) *editor.Session {
	s := c.server
	session := editor.NewSession(id, c,
		editor.WithHighlighter(s.pipeline),
		editor.WithDebounce(s.cfg.Editor.Debounce),
		editor.WithClock(s.clock),
		editor.WithLogger(s.log),
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		session.Close()
		return session
	}
	c.session = session
	c.mu.Unlock()

	c.enqueue(editor.Message{Type: editor.MessageSession, Session: id, Content: content})
	return session
}
