package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/wikilight/internal/renderer"
	"github.com/conneroisu/wikilight/internal/version"
)

// maxHighlightBody bounds POST /api/highlight request bodies.
const maxHighlightBody = 8 << 20

// HighlightRequest is the body of POST /api/highlight. Content that is not a
// JSON string yields an empty result.
type HighlightRequest struct {
	Content any `json:"content"`
}

// HighlightResponse is the reply to POST /api/highlight.
type HighlightResponse struct {
	HTML     string   `json:"html"`
	Failures []string `json:"failures"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	text := s.initialText()
	data := renderer.PageData{
		Title:  s.title(),
		Text:   text,
		HTML:   s.pipeline.RunContext(r.Context(), text).HTML,
		WSPath: "/ws",
	}
	if sheet, ok := s.sheets.Sheet(); ok {
		data.CSS = sheet.CSS
	}

	templ.Handler(renderer.EditorPage(data)).ServeHTTP(w, r)
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.sheets.Sheet()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Last-Modified", sheet.InstalledAt.UTC().Format(http.TimeFormat))
	_, _ = w.Write([]byte(sheet.CSS))
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxHighlightBody)

	var req HighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	resp := HighlightResponse{Failures: []string{}}
	if text, ok := req.Content.(string); ok {
		res := s.pipeline.RunContext(r.Context(), text)
		resp.HTML = res.HTML
		for _, err := range res.Failures {
			resp.Failures = append(resp.Failures, err.Error())
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Engine().Rules())
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"version":   info.Short(),
		"checks": map[string]interface{}{
			"styles":   map[string]interface{}{"installed": s.sheets.Installed()},
			"sessions": map[string]interface{}{"connected": s.hub.len(), "stored": s.sessions.Len()},
			"watcher":  map[string]interface{}{"enabled": s.file != "", "file": s.file},
		},
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// addMiddleware adds CORS for the configured origins and request logging.
func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.log.Debug(r.Context(), "Request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
