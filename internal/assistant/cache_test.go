package assistant

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/tutorbot/internal/core"
)

func answerFor(text string) core.AssistantAnswer {
	return core.AssistantAnswer{Message: text}
}

func TestCacheKey_Normalization(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"case_insensitive", "What is a Variable?", "what is a variable?", true},
		{"collapsed_spaces", "what  is   a variable?", "what is a variable?", true},
		{"trimmed", "  what is a variable?  ", "what is a variable?", true},
		{"tabs_and_newlines", "what\tis\na variable?", "what is a variable?", true},
		{"different_text", "what is a variable?", "what is a loop?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyA := CacheKey(core.RequestQuestion, "python", 12, tt.a)
			keyB := CacheKey(core.RequestQuestion, "python", 12, tt.b)
			if (keyA == keyB) != tt.same {
				t.Errorf("keys %q and %q: same = %v, want %v", keyA, keyB, keyA == keyB, tt.same)
			}
		})
	}
}

func TestCacheKey_Discrimination(t *testing.T) {
	base := CacheKey(core.RequestQuestion, "python", 12, "what is a variable?")

	tests := []struct {
		name string
		key  string
	}{
		{"different_request_type", CacheKey(core.RequestCodeHelp, "python", 12, "what is a variable?")},
		{"different_language", CacheKey(core.RequestQuestion, "javascript", 12, "what is a variable?")},
		{"different_day", CacheKey(core.RequestQuestion, "python", 13, "what is a variable?")},
		{"different_message", CacheKey(core.RequestQuestion, "python", 12, "what is a function?")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key == base {
				t.Errorf("key %q must not collide with base", tt.key)
			}
		})
	}
}

func TestResponseCache_HitAndMiss(t *testing.T) {
	c := NewResponseCache()
	key := CacheKey(core.RequestQuestion, "python", 12, "what is a variable?")

	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache must miss")
	}

	c.Set(key, answerFor("a variable is a name bound to a value"), time.Minute)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Message != "a variable is a name bound to a value" {
		t.Errorf("message = %q", got.Message)
	}

	// A normalized-equal request computes the same key and hits.
	sameKey := CacheKey(core.RequestQuestion, "python", 12, "  What IS a   variable?")
	if _, ok := c.Get(sameKey); !ok {
		t.Error("normalized-equal request should hit")
	}
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	c := NewResponseCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("key", answerFor("answer"), time.Minute)

	if _, ok := c.Get("key"); !ok {
		t.Fatal("fresh entry should hit")
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Error("expired entry must be a miss even before eviction")
	}
}

func TestResponseCache_Overwrite(t *testing.T) {
	c := NewResponseCache()

	c.Set("key", answerFor("first"), time.Minute)
	c.Set("key", answerFor("second"), time.Minute)

	got, ok := c.Get("key")
	if !ok || got.Message != "second" {
		t.Errorf("got %q, want unconditional overwrite to second", got.Message)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestResponseCache_InvalidateDay(t *testing.T) {
	c := NewResponseCache()

	day12 := CacheKey(core.RequestQuestion, "python", 12, "what is a variable?")
	day12Help := CacheKey(core.RequestCodeHelp, "python", 12, "why does this fail?")
	day13 := CacheKey(core.RequestQuestion, "python", 13, "what is a loop?")
	otherLang := CacheKey(core.RequestQuestion, "javascript", 12, "what is a variable?")

	for _, key := range []string{day12, day12Help, day13, otherLang} {
		c.Set(key, answerFor(key), time.Minute)
	}

	c.InvalidateDay("python", 12)

	if _, ok := c.Get(day12); ok {
		t.Error("python day 12 question should be invalidated")
	}
	if _, ok := c.Get(day12Help); ok {
		t.Error("python day 12 code-help should be invalidated")
	}
	if _, ok := c.Get(day13); !ok {
		t.Error("python day 13 must survive")
	}
	if _, ok := c.Get(otherLang); !ok {
		t.Error("javascript day 12 must survive")
	}
}

func TestResponseCache_InvalidateDayMatchesSegmentPosition(t *testing.T) {
	c := NewResponseCache()

	// The message text mimics a key's language/day segment; only the
	// real segment position may match.
	lookalike := CacheKey(core.RequestQuestion, "javascript", 3, "what does :python:day12: mean here")
	target := CacheKey(core.RequestQuestion, "python", 12, "what is a variable?")

	c.Set(lookalike, answerFor("lookalike"), time.Minute)
	c.Set(target, answerFor("target"), time.Minute)

	c.InvalidateDay("python", 12)

	if _, ok := c.Get(lookalike); !ok {
		t.Error("entry whose message merely mentions the segment must survive")
	}
	if _, ok := c.Get(target); ok {
		t.Error("real python day 12 entry should be invalidated")
	}
}

func TestResponseCache_Clear(t *testing.T) {
	c := NewResponseCache()
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("key%d", i), answerFor("x"), time.Minute)
	}

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("len = %d after clear", c.Len())
	}
}

func TestResponseCache_ConcurrentAccess(t *testing.T) {
	c := NewResponseCache()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(fmt.Sprintf("key%d", n), answerFor("x"), time.Minute)
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get(fmt.Sprintf("key%d", n))
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				c.InvalidateDay("python", n)
			} else {
				c.Clear()
			}
		}(i)
	}
	wg.Wait()
}
