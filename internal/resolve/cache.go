package resolve

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mistakeknot/arbiter/internal/core"
)

const cacheSize = 1024

// SuggestionCache holds suggestions keyed by conflict id for the suggestion
// TTL. Entries past their TTL are treated as absent, never returned stale.
type SuggestionCache struct {
	lru     *expirable.LRU[string, *core.Suggestion]
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewSuggestionCache(ttl time.Duration) *SuggestionCache {
	return &SuggestionCache{
		lru:     expirable.NewLRU[string, *core.Suggestion](cacheSize, nil, ttl),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Get returns the cached suggestion for a conflict, or nil when missing or
// expired. The explicit ExpiresAt check backs up the LRU's own TTL eviction
// so a clock injected in tests behaves consistently.
func (c *SuggestionCache) Get(conflictID string) *core.Suggestion {
	s, ok := c.lru.Get(conflictID)
	if !ok {
		return nil
	}
	if c.nowFunc().After(s.ExpiresAt) {
		c.lru.Remove(conflictID)
		return nil
	}
	return s
}

// Put stores a suggestion, replacing any prior entry for the conflict.
func (c *SuggestionCache) Put(s *core.Suggestion) {
	c.lru.Add(s.ConflictID, s)
}

// Invalidate drops the entry for a conflict if present.
func (c *SuggestionCache) Invalidate(conflictID string) bool {
	return c.lru.Remove(conflictID)
}

// Reset drops every entry. Test support.
func (c *SuggestionCache) Reset() {
	c.lru.Purge()
}
