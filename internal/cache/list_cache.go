// Package cache holds short-lived caches in front of the database
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-while/go-myapp/internal/models"
)

// ListKey identifies one page of a sample model listing
type ListKey struct {
	Query    string
	Ordering string
	Page     int
	PageSize int
}

func (k ListKey) String() string {
	return fmt.Sprintf("q=%s|o=%s|p%d|s%d", k.Query, k.Ordering, k.Page, k.PageSize)
}

// CachedList holds one cached page with its total count
type CachedList struct {
	Rows       []*models.SampleModel
	TotalCount int
	CreatedAt  time.Time
	LastUsed   time.Time
	Size       int64 // estimated memory size
}

// ListCache caches sample model listing pages for maxAge.
// Writers call Clear after any change to the table.
type ListCache struct {
	cache      map[string]*CachedList
	mutex      sync.Mutex
	maxEntries int
	maxAge     time.Duration
	cachedSize int64
	hits       int64
	misses     int64
	generation uint64 // bumped by Clear
	stale      int64  // pages dropped by StoreAt after a Clear
	now        func() time.Time
}

// NewListCache returns a cache holding at most maxEntries pages.
// A nil *ListCache is valid and never caches.
func NewListCache(maxEntries int, maxAge time.Duration) *ListCache {
	if maxEntries <= 0 || maxAge <= 0 {
		return nil
	}
	return &ListCache{
		cache:      make(map[string]*CachedList),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Get returns a cached page if present and not expired
func (lc *ListCache) Get(key ListKey) ([]*models.SampleModel, int, bool) {
	if lc == nil {
		return nil, 0, false
	}
	k := key.String()
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	entry, exists := lc.cache[k]
	if !exists {
		lc.misses++
		return nil, 0, false
	}
	now := lc.now()
	if now.Sub(entry.CreatedAt) > lc.maxAge {
		lc.remove(k)
		lc.misses++
		return nil, 0, false
	}
	lc.hits++
	entry.LastUsed = now
	return entry.Rows, entry.TotalCount, true
}

// Generation returns the current clear generation. Readers take it before
// querying the database and pass it to StoreAt.
func (lc *ListCache) Generation() uint64 {
	if lc == nil {
		return 0
	}
	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	return lc.generation
}

// Set stores a page, evicting the least recently used one when full
func (lc *ListCache) Set(key ListKey, rows []*models.SampleModel, totalCount int) {
	if lc == nil {
		return
	}
	lc.StoreAt(lc.Generation(), key, rows, totalCount)
}

// StoreAt stores a page read at generation gen. The page is dropped when
// Clear ran since then.
func (lc *ListCache) StoreAt(gen uint64, key ListKey, rows []*models.SampleModel, totalCount int) {
	if lc == nil {
		return
	}
	k := key.String()
	now := lc.now()
	entry := &CachedList{
		Rows:       rows,
		TotalCount: totalCount,
		CreatedAt:  now,
		LastUsed:   now,
		Size:       estimateSize(rows),
	}

	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	if gen != lc.generation {
		lc.stale++
		return
	}
	lc.remove(k)
	lc.cache[k] = entry
	lc.cachedSize += entry.Size
	lc.evictIfNeeded()
}

// Clear removes all entries
func (lc *ListCache) Clear() {
	if lc == nil {
		return
	}
	lc.mutex.Lock()
	lc.cache = make(map[string]*CachedList)
	lc.cachedSize = 0
	lc.generation++
	lc.mutex.Unlock()
}

// CleanupExpired removes expired entries and returns how many
func (lc *ListCache) CleanupExpired() int {
	if lc == nil {
		return 0
	}
	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	now := lc.now()
	removed := 0
	for k, entry := range lc.cache {
		if now.Sub(entry.CreatedAt) > lc.maxAge {
			lc.remove(k)
			removed++
		}
	}
	return removed
}

// GetStats returns cache statistics
func (lc *ListCache) GetStats() map[string]interface{} {
	if lc == nil {
		return map[string]interface{}{"enabled": false}
	}
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	hitRate := 0.0
	if total := lc.hits + lc.misses; total > 0 {
		hitRate = float64(lc.hits) / float64(total) * 100
	}
	return map[string]interface{}{
		"enabled":     true,
		"entries":     len(lc.cache),
		"max_entries": lc.maxEntries,
		"size_bytes":  lc.cachedSize,
		"size_human":  humanSize(lc.cachedSize),
		"max_age":     lc.maxAge.String(),
		"hits":        lc.hits,
		"misses":      lc.misses,
		"hit_rate":    hitRate,
		"stale_drops": lc.stale,
	}
}

// remove deletes one entry, lock must be held
func (lc *ListCache) remove(k string) {
	if entry, ok := lc.cache[k]; ok {
		lc.cachedSize -= entry.Size
		delete(lc.cache, k)
	}
}

// evictIfNeeded drops the least recently used entry, lock must be held
func (lc *ListCache) evictIfNeeded() {
	for len(lc.cache) > lc.maxEntries {
		var oldestKey string
		var oldestTime time.Time
		for k, entry := range lc.cache {
			if oldestKey == "" || entry.LastUsed.Before(oldestTime) {
				oldestKey = k
				oldestTime = entry.LastUsed
			}
		}
		lc.remove(oldestKey)
	}
}

// estimateSize is a rough memory estimate: struct overhead plus strings
func estimateSize(rows []*models.SampleModel) int64 {
	size := int64(100 + len(rows)*120)
	for _, m := range rows {
		if m != nil {
			size += int64(len(m.Name) + len(m.Description))
		}
	}
	return size
}

func humanSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d bytes", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(size)/1024.0)
	}
	return fmt.Sprintf("%.2f MB", float64(size)/(1024.0*1024.0))
}

// NormalizeQuery collapses whitespace so equivalent searches share an entry
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
