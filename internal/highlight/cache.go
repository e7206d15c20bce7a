package highlight

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of documents a Cache keeps.
const DefaultCacheSize = 256

type cacheKey [sha256.Size]byte

// Cache memoises an Engine. Highlighting is a pure function of its input, so
// an editor that flips between the same few states (undo, redo, retyping a
// deleted character) is served from memory.
type Cache struct {
	engine *Engine
	lru    *lru.Cache[cacheKey, Result]
}

// NewCache wraps engine with an LRU of the given size. A nil engine uses
// Default(); a non-positive size uses DefaultCacheSize.
func NewCache(engine *Engine, size int) (*Cache, error) {
	if engine == nil {
		engine = Default()
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cacheKey, Result](size)
	if err != nil {
		return nil, err
	}
	return &Cache{engine: engine, lru: c}, nil
}

// Lookup returns the cached result for text, computing it on a miss, and
// reports whether it was a hit. Results with rule failures are not stored;
// a timeout may not repeat on a less loaded machine.
func (c *Cache) Lookup(text string) (Result, bool) {
	key := cacheKey(sha256.Sum256([]byte(text)))
	if r, ok := c.lru.Get(key); ok {
		return r, true
	}
	r := c.engine.Run(text)
	if len(r.Failures) == 0 {
		c.lru.Add(key, r)
	}
	return r, false
}

// Run is Lookup without the hit flag.
func (c *Cache) Run(text string) Result {
	r, _ := c.Lookup(text)
	return r
}

// Highlight returns the decorated HTML for text.
func (c *Cache) Highlight(text string) string {
	return c.Run(text).HTML
}

// Engine returns the wrapped engine.
func (c *Cache) Engine() *Engine {
	return c.engine
}

// Len reports the number of cached documents.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every cached document.
func (c *Cache) Purge() {
	c.lru.Purge()
}
