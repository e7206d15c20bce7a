// Package server hosts the live MediaWiki editor: an HTML page with a
// textarea over a highlighted overlay, a websocket that keeps the two in step
// and a small JSON API over the highlight engine.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/conneroisu/wikilight/internal/config"
	"github.com/conneroisu/wikilight/internal/debounce"
	"github.com/conneroisu/wikilight/internal/errors"
	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/logging"
	"github.com/conneroisu/wikilight/internal/styles"
	"github.com/conneroisu/wikilight/internal/tracing"
	"github.com/conneroisu/wikilight/internal/watcher"
)

// Server serves the editor page, its websocket and the highlight API.
type Server struct {
	cfg      *config.Config
	log      logging.Logger
	tracer   trace.Tracer
	clock    debounce.Clock
	pipeline *Pipeline
	sheets   *styles.Registry
	sessions *SessionStore
	metrics  *Metrics
	hub      *hub
	started  time.Time

	// File mode: the served document and its watcher.
	file      string
	textMutex sync.RWMutex
	text      string
	watcher   *watcher.FileWatcher

	ctx    context.Context
	cancel context.CancelFunc

	httpServer    *http.Server
	serverMutex   sync.RWMutex
	shutdownOnce  sync.Once
	shutdownMutex sync.RWMutex
	shutdown      bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTracer records highlight passes as spans from t.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock sets the clock editor sessions debounce on.
func WithClock(c debounce.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithFile serves path as the initial document and reloads every editor when
// it changes on disk.
func WithFile(path string) Option {
	return func(s *Server) {
		s.file = path
	}
}

// New builds a server from cfg. Nothing listens until Start.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "server requires a configuration")
	}

	s := &Server{
		cfg:     cfg,
		log:     logging.Nop(),
		tracer:  noop.NewTracerProvider().Tracer(""),
		clock:   debounce.RealClock(),
		sheets:  styles.NewRegistry(),
		hub:     newHub(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("server")
	s.ctx, s.cancel = context.WithCancel(context.Background())

	engine, err := highlight.NewEngine(highlight.WithMatchTimeout(cfg.Highlight.MatchTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to build highlight engine: %w", err)
	}
	cache, err := highlight.NewCache(engine, cfg.Highlight.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight cache: %w", err)
	}

	s.metrics = NewMetrics(cache.Len)
	s.sessions = NewSessionStore(cfg.Editor.SessionTTL)
	s.pipeline = &Pipeline{
		cache:   cache,
		traced:  tracing.NewHighlighter(cache, s.tracer),
		metrics: s.metrics,
	}
	if cfg.Highlight.Sanitize {
		s.pipeline.sanitizer = highlight.NewSanitizer()
	}

	if s.file != "" {
		text, err := os.ReadFile(s.file)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				"cannot read served document", err).WithFile(s.file)
		}
		s.text = string(text)
	}

	s.sheets.Install()
	return s, nil
}

// Handler returns the server's routes wrapped in its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /styles.css", s.handleStyles)
	mux.HandleFunc("POST /api/highlight", s.handleHighlight)
	mux.HandleFunc("GET /api/rules", s.handleRules)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.addMiddleware(mux)
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return errors.NewNetworkError(errors.ErrCodeListenFailed,
			"failed to listen on "+s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until Shutdown.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.file != "" {
		if err := s.setupFileWatcher(ctx); err != nil {
			_ = listener.Close()
			return err
		}
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.log.Info(ctx, "Editor server listening", "addr", listener.Addr().String(), "file", s.file)

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return errors.NewNetworkError(errors.ErrCodeServeFailed, "server error", err)
	}
	return nil
}

// Shutdown disconnects every editor, stops the watcher, removes the
// stylesheet and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.log.Info(ctx, "Shutting down editor server")

		s.shutdownMutex.Lock()
		s.shutdown = true
		s.shutdownMutex.Unlock()

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.log.Warn(ctx, err, "Failed to stop file watcher")
			}
		}

		s.hub.closeAll("server shutdown")
		s.metrics.sessions.Set(0)
		s.cancel()
		s.sheets.Remove()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) isShutdown() bool {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	return s.shutdown
}

// Sessions returns the number of connected editors.
func (s *Server) Sessions() int {
	return s.hub.len()
}

// Styles returns the stylesheet registry the editor pages inline.
func (s *Server) Styles() *styles.Registry {
	return s.sheets
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) initialText() string {
	s.textMutex.RLock()
	defer s.textMutex.RUnlock()
	return s.text
}

func (s *Server) title() string {
	if s.file == "" {
		return "wikilight"
	}
	return filepath.Base(s.file) + " - wikilight"
}
