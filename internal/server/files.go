package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/wikilight/internal/editor"
	"github.com/conneroisu/wikilight/internal/watcher"
)

// setupFileWatcher watches the served document's directory, so editors that
// save by renaming a temporary file over it are noticed too.
func (s *Server) setupFileWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.cfg.Watch.Debounce,
		watcher.WithLogger(s.log.WithComponent("watcher")))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(s.file)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.file, err)
	}
	fw.AddFilter(watcher.PathFilter(abs))
	fw.AddHandler(s.handleFileChange)
	if err := fw.AddPath(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.file, err)
	}
	if err := fw.Start(s.ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.watcher = fw
	s.log.Info(ctx, "Watching served document", "file", abs)
	return nil
}

// handleFileChange reloads every editor with the document's new contents.
// Deletions and renames away are ignored; the editors keep their text until
// the file returns.
func (s *Server) handleFileChange(events []watcher.ChangeEvent) error {
	for _, event := range events {
		if event.Type == watcher.EventTypeDeleted {
			s.log.Info(s.ctx, "Served document removed", "file", event.Path)
			continue
		}

		data, err := os.ReadFile(event.Path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to reload %s: %w", event.Path, err)
		}
		s.Reload(string(data))
	}
	return nil
}

// Reload replaces the served text and pushes it to every connected editor,
// re-rendering each overlay at once.
func (s *Server) Reload(text string) {
	s.textMutex.Lock()
	s.text = text
	s.textMutex.Unlock()

	s.metrics.reloads.Inc()
	s.hub.each(func(c *client) {
		session := c.currentSession()
		if session == nil {
			return
		}
		content := text
		c.enqueue(editor.Message{Type: editor.MessageReload, Session: session.ID(), Content: &content})
		s.sessions.Save(session.ID(), text)
		session.Load(text)
	})
}
