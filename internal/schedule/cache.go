package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// CacheKey identifies one memoized task evaluation. The fingerprint covers
// everything the evaluation depends on, so a key hit is always safe to
// reuse: same stored dates, same incoming edges, same predecessor dates.
type CacheKey struct {
	Task        string
	Fingerprint string
}

// CacheStats are cumulative counters for one cache instance.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache memoizes per-task evaluations across engine passes over graphs of
// the same project. Entries expire after a TTL and the least recently used
// entry is evicted when the cache is full. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[CacheKey]*cacheEntry
	byTask     map[string][]CacheKey
	byDep      map[string][]CacheKey
	stats      CacheStats
	now        func() time.Time
}

type cacheEntry struct {
	ev       evaluation
	deps     []string
	addedAt  time.Time
	lastUsed time.Time
}

// NewCache creates a cache. A zero ttl disables expiry; maxEntries <= 0
// means unbounded.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[CacheKey]*cacheEntry),
		byTask:     make(map[string][]CacheKey),
		byDep:      make(map[string][]CacheKey),
		now:        time.Now,
	}
}

// Get returns the memoized evaluation for a key, if present and fresh.
func (c *Cache) Get(key CacheKey) (evaluation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return evaluation{}, false
	}
	if c.ttl > 0 && c.now().Sub(entry.addedAt) > c.ttl {
		c.remove(key)
		c.stats.Misses++
		return evaluation{}, false
	}
	entry.lastUsed = c.now()
	c.stats.Hits++
	return entry.ev, true
}

// Put stores an evaluation together with the dependency IDs it was computed
// from, so InvalidateDependency can find it later.
func (c *Cache) Put(key CacheKey, ev evaluation, depIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.byTask[key.Task] = append(c.byTask[key.Task], key)
		for _, dep := range depIDs {
			c.byDep[dep] = append(c.byDep[dep], key)
		}
	}
	c.entries[key] = &cacheEntry{
		ev:       ev,
		deps:     depIDs,
		addedAt:  c.now(),
		lastUsed: c.now(),
	}

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
}

// InvalidateTask drops every entry for one task code and returns how many
// were removed.
func (c *Cache) InvalidateTask(code string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	// remove compacts the index slice in place; iterate a snapshot.
	keys := append([]CacheKey(nil), c.byTask[code]...)
	n := 0
	for _, key := range keys {
		if _, ok := c.entries[key]; ok {
			c.remove(key)
			n++
		}
	}
	return n
}

// InvalidateDependency drops every entry computed from one dependency ID.
func (c *Cache) InvalidateDependency(depID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	// remove compacts the index slice in place; iterate a snapshot.
	keys := append([]CacheKey(nil), c.byDep[depID]...)
	n := 0
	for _, key := range keys {
		if _, ok := c.entries[key]; ok {
			c.remove(key)
			n++
		}
	}
	return n
}

// InvalidateAll empties the cache and returns the number of dropped entries.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[CacheKey]*cacheEntry)
	c.byTask = make(map[string][]CacheKey)
	c.byDep = make(map[string][]CacheKey)
	return n
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cumulative counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// remove must be called with the lock held.
func (c *Cache) remove(key CacheKey) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.byTask[key.Task] = dropKey(c.byTask[key.Task], key)
	if len(c.byTask[key.Task]) == 0 {
		delete(c.byTask, key.Task)
	}
	for _, dep := range entry.deps {
		c.byDep[dep] = dropKey(c.byDep[dep], key)
		if len(c.byDep[dep]) == 0 {
			delete(c.byDep, dep)
		}
	}
}

// evictOldest must be called with the lock held.
func (c *Cache) evictOldest() {
	var oldest CacheKey
	var oldestUsed time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.lastUsed.Before(oldestUsed) {
			oldest = key
			oldestUsed = entry.lastUsed
			first = false
		}
	}
	if !first {
		c.remove(oldest)
		c.stats.Evictions++
	}
}

func dropKey(keys []CacheKey, key CacheKey) []CacheKey {
	kept := keys[:0]
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return kept
}

// fingerprintNode hashes everything one node's evaluation reads: its own
// stored facts and each incoming edge with the predecessor dates behind it.
func fingerprintNode(g *Graph, node *TaskNode) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%t\n", node.Code, formatDay(node.Start), formatDay(node.End), node.Duration, node.Fixed)
	for _, edge := range g.pred[node.Code] {
		pred := g.nodes[edge.From]
		fmt.Fprintf(h, "%s|%s|%d|%s|%s\n", edge.From, edge.Type, edge.Lag, formatDay(pred.Start), formatDay(pred.End))
	}
	return hex.EncodeToString(h.Sum(nil))
}
