package assistant

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/tutorbot/internal/core"
)

const DefaultCacheTTL = 30 * time.Minute

type cacheEntry struct {
	value    core.AssistantAnswer
	storedAt time.Time
	ttl      time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// ResponseCache maps a deterministic request key to a previously computed
// answer. Entries are read or fully replaced, never partially updated.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// CacheKey derives the lookup key from everything that makes two requests
// interchangeable. The message is normalized so case and incidental
// spacing do not split entries; requestType, languageID and day segments
// keep distinct requests from ever colliding.
func CacheKey(requestType core.RequestType, languageID string, day int, message string) string {
	return fmt.Sprintf("%s:%s:day%d:%s", requestType, languageID, day, normalizeForKey(message))
}

func normalizeForKey(message string) string {
	return strings.ToLower(strings.Join(strings.Fields(message), " "))
}

// Get returns the cached answer for key. An expired entry is a miss
// whether or not it has been physically evicted yet.
func (c *ResponseCache) Get(key string) (core.AssistantAnswer, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired(c.now()) {
		return core.AssistantAnswer{}, false
	}
	return entry.value, true
}

func (c *ResponseCache) Set(key string, value core.AssistantAnswer, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}
}

// InvalidateDay removes every entry derived from the given language/day
// pair, across all request types. Used when course content for that day
// changes. The segment is matched right after the requestType field, so
// a message that happens to contain the same text is never evicted.
func (c *ResponseCache) InvalidateDay(languageID string, day int) {
	segment := fmt.Sprintf("%s:day%d:", languageID, day)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		i := strings.IndexByte(key, ':')
		if i >= 0 && strings.HasPrefix(key[i+1:], segment) {
			delete(c.entries, key)
		}
	}
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
