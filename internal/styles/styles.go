// Package styles owns the stylesheet that gives highlighted documents their
// look, and the single installed copy of it that editor pages share.
package styles

import (
	_ "embed"
	"sync"
	"time"
)

// SheetID is the element ID the stylesheet is installed under.
const SheetID = "mediawiki-highlighter-styles"

// EditorClass and HighlightClass are the container classes the sheet styles
// besides the engine's own vocabulary.
const (
	EditorClass    = "mediawiki-editor"
	HighlightClass = "mw-highlight"
)

//go:embed mediawiki.css
var stylesheet string

// Stylesheet returns the CSS for every class the highlighter emits.
func Stylesheet() string {
	return stylesheet
}

// Sheet is an installed stylesheet.
type Sheet struct {
	ID          string
	CSS         string
	InstalledAt time.Time
}

// Registry holds at most one installed Sheet. Installing twice returns the
// existing sheet; removing when nothing is installed does nothing.
type Registry struct {
	mu    sync.RWMutex
	sheet *Sheet
	now   func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Install installs the stylesheet if it is not already present and returns
// the installed sheet.
func (r *Registry) Install() *Sheet {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sheet == nil {
		r.sheet = &Sheet{ID: SheetID, CSS: Stylesheet(), InstalledAt: r.now()}
	}
	return r.sheet
}

// Remove uninstalls the stylesheet. It reports whether one was installed.
func (r *Registry) Remove() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sheet == nil {
		return false
	}
	r.sheet = nil
	return true
}

// Sheet returns the installed sheet, if any.
func (r *Registry) Sheet() (*Sheet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sheet, r.sheet != nil
}

// Installed reports whether a sheet is installed.
func (r *Registry) Installed() bool {
	_, ok := r.Sheet()
	return ok
}
