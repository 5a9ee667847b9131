package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"PrettyChat/internal/session"
)

// CachedResponse represents a cached backend response
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// Key derives a cache key from the backend mode, the prior history and the
// new prompt. Keying on the mode keeps one model's answers from being served
// for another.
func Key(mode string, history []session.Turn, prompt string) string {
	h := sha256.New()
	h.Write([]byte(mode))
	for _, turn := range history {
		h.Write([]byte(turn.Role))
		h.Write([]byte(turn.Content))
	}
	h.Write([]byte(session.RoleUser))
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Cache stores backend responses keyed by Key. Safe for concurrent use.
type Cache struct {
	entries sync.Map
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{}
}

// Get returns the cached response for key, if present.
func (c *Cache) Get(key string) (string, bool) {
	if val, ok := c.entries.Load(key); ok {
		cached := val.(CachedResponse)
		return cached.Response, true
	}
	return "", false
}

// Put stores a response under key.
func (c *Cache) Put(key, response string) {
	c.entries.Store(key, CachedResponse{
		Response:  response,
		Timestamp: time.Now(),
	})
}
