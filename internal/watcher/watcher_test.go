package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/wikilight/internal/debounce"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100 * time.Millisecond)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.batcher)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFilters(t *testing.T) {
	tests := []struct {
		path   string
		wiki   bool
		hidden bool
	}{
		{"docs/Main_Page.wiki", true, true},
		{"docs/Help.MediaWiki", true, true},
		{"notes.mw", true, true},
		{"notes.txt", false, true},
		{"docs/.draft.wiki", true, false},
		{"docs/page.wiki~", false, false},
		{"docs/.page.wiki.swp", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.wiki, WikiFilter(tt.path))
			assert.Equal(t, tt.hidden, NoHiddenFilter(tt.path))
		})
	}

	txt := ExtensionFilter(".TXT")
	assert.True(t, txt("a.txt"))
	assert.False(t, txt("a.wiki"))
}

func TestPathFilter(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "page.wiki")
	f := PathFilter(target)

	assert.True(t, f(target))
	assert.True(t, f(filepath.Join(dir, ".", "page.wiki")))
	assert.False(t, f(filepath.Join(dir, "other.wiki")))
}

func TestValidatePath(t *testing.T) {
	_, err := validatePath("")
	assert.Error(t, err)

	_, err = validatePath("../outside")
	assert.Error(t, err)

	_, err = validatePath("docs/..")
	assert.Error(t, err)

	p, err := validatePath(t.TempDir())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))
}

func TestAddPathMissing(t *testing.T) {
	watcher, err := NewFileWatcher(100 * time.Millisecond)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NoError(t, watcher.AddPath(t.TempDir()))
	assert.Error(t, watcher.AddPath("/non/existent/path"))
}

func TestBatchingWithFakeClock(t *testing.T) {
	clock := debounce.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	watcher, err := NewFileWatcher(200*time.Millisecond, WithClock(clock))
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(WikiFilter)

	watcher.handleFsnotifyEvent(fsnotify.Event{Name: "b.wiki", Op: fsnotify.Create})
	clock.Advance(100 * time.Millisecond)
	watcher.handleFsnotifyEvent(fsnotify.Event{Name: "a.wiki", Op: fsnotify.Write})
	watcher.handleFsnotifyEvent(fsnotify.Event{Name: "ignored.go", Op: fsnotify.Write})
	watcher.handleFsnotifyEvent(fsnotify.Event{Name: "b.wiki", Op: fsnotify.Write})
	watcher.handleFsnotifyEvent(fsnotify.Event{Name: "a.wiki", Op: fsnotify.Chmod})

	clock.Advance(199 * time.Millisecond)
	select {
	case <-watcher.batcher.output:
		t.Fatal("batch released before the quiet period")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case events := <-watcher.batcher.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.wiki", events[0].Path)
		assert.Equal(t, EventTypeModified, events[0].Type)
		assert.Equal(t, "b.wiki", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	default:
		t.Fatal("no batch released")
	}
}

func TestEventTypeMapping(t *testing.T) {
	clock := debounce.NewFakeClock(time.Now())
	watcher, err := NewFileWatcher(10*time.Millisecond, WithClock(clock))
	require.NoError(t, err)
	defer watcher.Stop()

	ops := map[fsnotify.Op]EventType{
		fsnotify.Create: EventTypeCreated,
		fsnotify.Write:  EventTypeModified,
		fsnotify.Remove: EventTypeDeleted,
		fsnotify.Rename: EventTypeRenamed,
	}
	for op, want := range ops {
		watcher.handleFsnotifyEvent(fsnotify.Event{Name: "x.wiki", Op: op})
		clock.Advance(10 * time.Millisecond)
		events := <-watcher.batcher.output
		require.Len(t, events, 1)
		assert.Equal(t, want, events[0].Type, op.String())
	}
}

func TestDispatchContinuesAfterHandlerError(t *testing.T) {
	watcher, err := NewFileWatcher(10 * time.Millisecond)
	require.NoError(t, err)
	defer watcher.Stop()

	var calls int
	watcher.AddHandler(func([]ChangeEvent) error {
		calls++
		return assert.AnError
	})
	watcher.AddHandler(func([]ChangeEvent) error {
		calls++
		return nil
	})

	watcher.dispatch(context.Background(), []ChangeEvent{{Path: "a.wiki"}})
	assert.Equal(t, 2, calls)
}

func TestFileWatcherEndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	watcher, err := NewFileWatcher(50 * time.Millisecond)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(WikiFilter)
	watcher.AddFilter(NoHiddenFilter)

	var mu sync.Mutex
	seen := make(map[string]bool)
	got := make(chan struct{}, 1)
	watcher.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			seen[filepath.Base(e.Path)] = true
		}
		select {
		case got <- struct{}{}:
		default:
		}
		return nil
	})

	require.NoError(t, watcher.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "page.wiki"), []byte("== v =="), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["page.wiki"])
	assert.False(t, seen["notes.txt"])
}
