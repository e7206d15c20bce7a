package server

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle session's text is kept for a
// reconnecting client.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore keeps the last known text of every editor session so a client
// that reconnects can resume where it left off. Entries expire after the TTL
// unless they are saved again.
type SessionStore struct {
	ttl   time.Duration
	cache *gocache.Cache
}

// NewSessionStore returns an empty store. A non-positive ttl uses
// DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &SessionStore{ttl: ttl, cache: gocache.New(ttl, cleanup)}
}

// NewID returns a fresh session identifier.
func (s *SessionStore) NewID() string {
	return uuid.NewString()
}

// Save records text for id and restarts its expiry.
func (s *SessionStore) Save(id, text string) {
	s.cache.Set(id, text, gocache.DefaultExpiration)
}

// Get returns the text saved for id.
func (s *SessionStore) Get(id string) (string, bool) {
	value, found := s.cache.Get(id)
	if !found {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// Delete forgets id.
func (s *SessionStore) Delete(id string) {
	s.cache.Delete(id)
}

// Len returns the number of stored sessions, including expired ones not yet
// cleaned up.
func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}

// TTL returns the expiry applied on every Save.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Flush forgets every session.
func (s *SessionStore) Flush() {
	s.cache.Flush()
}
