package llmcache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Hour)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	c.Set("k", map[string]any{"title": "Invoice"}, 0)
	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	fields, castOK := v.(map[string]any)
	if !castOK || fields["title"] != "Invoice" {
		t.Errorf("Get() = %v, want cached map", v)
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Hour)
	c.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if got := c.Stats().Entries; got != 0 {
		t.Errorf("expired entry not removed, entries = %d", got)
	}
}

func TestEvictExpired(t *testing.T) {
	c := New(time.Hour)
	c.Set("stale", "v", time.Millisecond)
	c.Set("fresh", "v", time.Hour)
	time.Sleep(5 * time.Millisecond)

	if evicted := c.EvictExpired(); evicted != 1 {
		t.Errorf("EvictExpired() = %d, want 1", evicted)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry evicted")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("title", "claude-haiku-4-5-20251001", "some document content")
	b := Fingerprint("title", "claude-haiku-4-5-20251001", "  some document content  ")
	if a != b {
		t.Error("fingerprint should ignore surrounding whitespace")
	}

	c := Fingerprint("tags", "claude-haiku-4-5-20251001", "some document content")
	if a == c {
		t.Error("different stages must not collide")
	}

	d := Fingerprint("title", "claude-sonnet-4-5-20250929", "some document content")
	if a == d {
		t.Error("different models must not collide")
	}
}

func TestStats(t *testing.T) {
	c := New(time.Hour)
	c.Set("k", "v", 0)
	c.Get("k")
	c.Get("k")
	c.Get("absent")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats() = %+v, want 2 hits 1 miss", s)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("HitRate = %v", s.HitRate)
	}
}
