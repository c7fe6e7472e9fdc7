package cache

import (
	"testing"
	"time"

	"github.com/use-agent/mapscout/models"
)

func TestKey_NormalizesQueryAndLocation(t *testing.T) {
	if Key("Bakeries ", "boston", 5) != Key("bakeries", " Boston", 5) {
		t.Error("keys should ignore case and surrounding whitespace")
	}
	if Key("bakeries", "boston", 5) == Key("bakeries", "boston", 6) {
		t.Error("different limits must not share a key")
	}
	boundaries := [][2]string{
		{"a|b", "c"}, {"a", "b|c"},
		{"1:a", "b"}, {"1", "a1:b"},
		{"ab", ""}, {"a", "b"}, {"", "ab"},
	}
	seen := map[string][2]string{}
	for _, f := range boundaries {
		k := Key(f[0], f[1], 1)
		if prev, ok := seen[k]; ok {
			t.Errorf("Key(%q, %q) collides with Key(%q, %q)", f[0], f[1], prev[0], prev[1])
		}
		seen[k] = f
	}
}

func TestCache_GetRespectsMaxAge(t *testing.T) {
	c := New(10)
	key := Key("q", "l", 1)
	c.Set(key, []models.Business{{Name: "A"}})

	if _, ok := c.Get(key, 0); ok {
		t.Error("maxAge 0 must skip the cache")
	}
	got, ok := c.Get(key, 60_000)
	if !ok || len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(key, 1); ok {
		t.Error("entry older than maxAge should miss")
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := New(10)
	key := Key("q", "l", 1)
	in := []models.Business{{Name: "A"}}
	c.Set(key, in)
	in[0].Name = "mutated"

	got, _ := c.Get(key, 60_000)
	got[0].Name = "also mutated"

	again, _ := c.Get(key, 60_000)
	if again[0].Name != "A" {
		t.Errorf("cached value changed to %q", again[0].Name)
	}
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c := New(2)
	c.Set("a", nil)
	c.Set("b", nil)
	c.Set("b", nil)
	if c.Len() != 2 {
		t.Fatalf("overwriting a key should not evict, len = %d", c.Len())
	}
	c.Set("c", nil)
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("c", 60_000); !ok {
		t.Error("newest entry should be present")
	}
}
