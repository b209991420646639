package greeting

import (
	"fmt"
	"testing"
)

func frames(b ...byte) [][]byte {
	out := make([][]byte, len(b))
	for i := range b {
		out[i] = []byte{b[i]}
	}
	return out
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(4)
	key := NewKey("t1", "en", "alloy", "Hello, thanks for calling.")
	c.Put(key, frames(1, 2, 3))

	got, hit := c.Get(key)
	if !hit {
		t.Fatalf("Get() miss after Put")
	}
	if len(got) != 3 || got[0][0] != 1 || got[2][0] != 3 {
		t.Fatalf("unexpected frames: %v", got)
	}
}

func TestCacheMissOnDifferentText(t *testing.T) {
	c := NewCache(4)
	c.Put(NewKey("t1", "en", "alloy", "Hello"), frames(1))
	if _, hit := c.Get(NewKey("t1", "en", "alloy", "Goodbye")); hit {
		t.Fatalf("hit for different greeting text")
	}
	if _, hit := c.Get(NewKey("t1", "he", "alloy", "Hello")); hit {
		t.Fatalf("hit for different locale")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	k1 := NewKey("t1", "en", "v", "one")
	k2 := NewKey("t1", "en", "v", "two")
	k3 := NewKey("t1", "en", "v", "three")

	c.Put(k1, frames(1))
	c.Put(k2, frames(2))
	// Refresh k1 so k2 becomes the eviction candidate.
	if _, hit := c.Get(k1); !hit {
		t.Fatalf("k1 should be cached")
	}
	c.Put(k3, frames(3))

	if _, hit := c.Get(k2); hit {
		t.Fatalf("k2 should have been evicted")
	}
	if _, hit := c.Get(k1); !hit {
		t.Fatalf("k1 should survive eviction")
	}
	if _, hit := c.Get(k3); !hit {
		t.Fatalf("k3 should be cached")
	}
}

func TestCacheRejectsEmptySequence(t *testing.T) {
	c := NewCache(2)
	key := NewKey("t1", "en", "v", "text")
	c.Put(key, nil)
	if _, hit := c.Get(key); hit {
		t.Fatalf("empty sequence should not populate an entry")
	}
}

func TestInvalidateTenantIdempotent(t *testing.T) {
	c := NewCache(8)
	for i := 0; i < 3; i++ {
		c.Put(NewKey("t1", "en", "v", fmt.Sprintf("text-%d", i)), frames(byte(i)))
	}
	c.Put(NewKey("t2", "en", "v", "other"), frames(9))

	if got := c.InvalidateTenant("t1"); got != 3 {
		t.Fatalf("first InvalidateTenant = %d, want 3", got)
	}
	if got := c.InvalidateTenant("t1"); got != 0 {
		t.Fatalf("second InvalidateTenant = %d, want 0", got)
	}
	if _, hit := c.Get(NewKey("t2", "en", "v", "other")); !hit {
		t.Fatalf("other tenant's entry should survive")
	}
}

func TestStats(t *testing.T) {
	c := NewCache(4)
	c.Put(NewKey("t1", "en", "v", "a"), frames(1))
	c.Put(NewKey("t1", "en", "v", "b"), frames(2))

	s := c.Stats()
	if s.Entries != 2 || s.Capacity != 4 {
		t.Fatalf("stats = %+v", s)
	}
	if s.Utilization != 0.5 {
		t.Fatalf("utilization = %v, want 0.5", s.Utilization)
	}
}
