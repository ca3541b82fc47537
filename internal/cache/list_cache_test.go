package cache

import (
	"testing"
	"time"

	"github.com/go-while/go-myapp/internal/models"
)

func rows(names ...string) []*models.SampleModel {
	out := make([]*models.SampleModel, len(names))
	for i, n := range names {
		out[i] = &models.SampleModel{ID: int64(i + 1), Name: n}
	}
	return out
}

func TestListCacheGetSet(t *testing.T) {
	lc := NewListCache(10, time.Minute)
	key := ListKey{Query: "a", Ordering: "-id", Page: 1, PageSize: 100}
	if _, _, ok := lc.Get(key); ok {
		t.Fatal("hit on empty cache")
	}
	lc.Set(key, rows("x", "y"), 2)
	got, total, ok := lc.Get(key)
	if !ok || total != 2 || len(got) != 2 || got[0].Name != "x" {
		t.Fatalf("Get = %v, %d, %v", got, total, ok)
	}
	if _, _, ok := lc.Get(ListKey{Query: "a", Ordering: "-id", Page: 2, PageSize: 100}); ok {
		t.Error("other page should miss")
	}
	stats := lc.GetStats()
	if stats["hits"].(int64) != 1 || stats["misses"].(int64) != 2 {
		t.Errorf("stats = %v", stats)
	}
	lc.Clear()
	if _, _, ok := lc.Get(key); ok {
		t.Error("hit after Clear")
	}
}

func TestListCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lc := NewListCache(10, time.Minute)
	lc.now = func() time.Time { return now }

	lc.Set(ListKey{Page: 1}, rows("a"), 1)
	lc.Set(ListKey{Page: 2}, rows("b"), 1)
	now = now.Add(30 * time.Second)
	if _, _, ok := lc.Get(ListKey{Page: 1}); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(31 * time.Second)
	if _, _, ok := lc.Get(ListKey{Page: 1}); ok {
		t.Error("expired entry returned")
	}
	if n := lc.CleanupExpired(); n != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", n)
	}
	if n := lc.GetStats()["entries"].(int); n != 0 {
		t.Errorf("%d entries left", n)
	}
}

func TestListCacheEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lc := NewListCache(2, time.Hour)
	lc.now = func() time.Time { now = now.Add(time.Second); return now }

	lc.Set(ListKey{Page: 1}, rows("a"), 1)
	lc.Set(ListKey{Page: 2}, rows("b"), 1)
	lc.Get(ListKey{Page: 1}) // page 2 is now the oldest
	lc.Set(ListKey{Page: 3}, rows("c"), 1)

	if _, _, ok := lc.Get(ListKey{Page: 2}); ok {
		t.Error("least recently used entry survived")
	}
	for _, p := range []int{1, 3} {
		if _, _, ok := lc.Get(ListKey{Page: p}); !ok {
			t.Errorf("page %d evicted", p)
		}
	}
}

func TestListCacheDropsPageReadBeforeClear(t *testing.T) {
	lc := NewListCache(10, time.Minute)
	key := ListKey{Ordering: "-id", Page: 1, PageSize: 100}

	gen := lc.Generation()
	// a write lands between the database read and the store
	lc.Clear()
	lc.StoreAt(gen, key, rows("stale"), 1)
	if _, _, ok := lc.Get(key); ok {
		t.Fatal("page read before Clear was cached")
	}
	if got := lc.GetStats()["stale_drops"].(int64); got != 1 {
		t.Errorf("stale_drops = %d, want 1", got)
	}

	lc.StoreAt(lc.Generation(), key, rows("fresh"), 1)
	got, _, ok := lc.Get(key)
	if !ok || got[0].Name != "fresh" {
		t.Errorf("Get after current store = %v, %v", got, ok)
	}
}

func TestNilListCache(t *testing.T) {
	var lc *ListCache = NewListCache(0, time.Minute)
	if lc != nil {
		t.Fatal("zero entries should disable the cache")
	}
	lc.Set(ListKey{}, rows("a"), 1)
	if _, _, ok := lc.Get(ListKey{}); ok {
		t.Error("nil cache returned a hit")
	}
	lc.StoreAt(lc.Generation(), ListKey{}, rows("a"), 1)
	lc.Clear()
	if lc.CleanupExpired() != 0 || lc.GetStats()["enabled"] != false {
		t.Error("nil cache stats")
	}
}

func TestNormalizeQuery(t *testing.T) {
	if got := NormalizeQuery("  foo \t bar  "); got != "foo bar" {
		t.Errorf("NormalizeQuery = %q", got)
	}
}
