package cache

import (
	"testing"
	"time"
)

// withClock pins the cache to a movable fake clock.
func withClock(c *Cache) *time.Time {
	now := time.Date(2024, 12, 2, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return &now
}

func TestGetWithinTTL(t *testing.T) {
	c := New()
	clock := withClock(c)

	c.Set("k", "v", time.Second)
	if got := c.Get("k"); got != "v" {
		t.Fatalf("Get = %v, want v", got)
	}

	*clock = clock.Add(999 * time.Millisecond)
	if got := c.Get("k"); got != "v" {
		t.Errorf("entry expired early: %v", got)
	}
}

func TestGetWithAge(t *testing.T) {
	c := New()
	clock := withClock(c)

	c.Set("k", "v", time.Minute)
	*clock = clock.Add(30 * time.Second)

	v, age, ok := c.GetWithAge("k")
	if !ok || v != "v" {
		t.Fatalf("GetWithAge = %v, %v", v, ok)
	}
	if age != 30*time.Second {
		t.Errorf("age = %s, want 30s", age)
	}

	*clock = clock.Add(31 * time.Second)
	if _, _, ok := c.GetWithAge("k"); ok {
		t.Error("expired entry reported as live")
	}
}

func TestGetPastTTLEvicts(t *testing.T) {
	c := New()
	clock := withClock(c)

	c.Set("k", "v", time.Second)
	*clock = clock.Add(1001 * time.Millisecond)

	if got := c.Get("k"); got != nil {
		t.Errorf("expired Get = %v, want nil", got)
	}
	if c.Has("k") {
		t.Error("Has should be false after expiry")
	}

	// The expired entry was lazily evicted, not just hidden.
	c.mu.Lock()
	_, present := c.items["k"]
	c.mu.Unlock()
	if present {
		t.Error("expired entry not evicted on read")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Delete("a")
	if c.Has("a") {
		t.Error("deleted key still present")
	}
	if !c.Has("b") {
		t.Error("unrelated key removed")
	}

	c.Clear()
	if c.Has("b") {
		t.Error("Clear left entries behind")
	}
}

func TestCleanupSweepsExpired(t *testing.T) {
	c := New()
	clock := withClock(c)

	c.Set("fresh", 1, time.Hour)
	c.Set("stale", 2, time.Second)

	*clock = clock.Add(2 * time.Second)
	c.Cleanup()

	c.mu.Lock()
	_, staleLeft := c.items["stale"]
	_, freshLeft := c.items["fresh"]
	c.mu.Unlock()

	if staleLeft {
		t.Error("Cleanup left expired entry")
	}
	if !freshLeft {
		t.Error("Cleanup removed live entry")
	}
}

func TestOverwriteResetsTTL(t *testing.T) {
	c := New()
	clock := withClock(c)

	c.Set("k", "old", time.Second)
	*clock = clock.Add(900 * time.Millisecond)
	c.Set("k", "new", time.Second)
	*clock = clock.Add(900 * time.Millisecond)

	if got := c.Get("k"); got != "new" {
		t.Errorf("Get = %v, want new (TTL should restart on Set)", got)
	}
}
