package services

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
)

// QueryCache stores answered queries for the configured TTL. A cache
// failure is never fatal: Get degrades to a miss and Put to a no-op.
type QueryCache interface {
	Get(ctx context.Context, key string) (*models.QueryResult, bool)
	Put(ctx context.Context, key string, result *models.QueryResult, ttl time.Duration)
	Stats() CacheStats
}

// CacheStats reports cache occupancy and effectiveness.
type CacheStats struct {
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// CachePolicy decides which queries may be cached at all.
type CachePolicy struct {
	Enabled  bool
	TTL      time.Duration
	Denylist []string
}

// minCacheableQueryLen excludes trivially short queries whose hit value is
// low and whose text is likely ambiguous.
const minCacheableQueryLen = 10

// Cacheable reports whether the request is eligible for caching, on both
// the read and write path. Conversational requests with history are never
// cached: history makes the key space unbounded and answers
// context-dependent. Queries containing a time-relative denylist term go
// stale independent of TTL and are excluded too.
func (p CachePolicy) Cacheable(req *models.QueryRequest) bool {
	if !p.Enabled {
		return false
	}
	if req.Conversational && len(req.ConversationHistory) > 0 {
		return false
	}

	normalized := strings.ToLower(strings.TrimSpace(req.Query))
	if len(normalized) < minCacheableQueryLen {
		return false
	}
	for _, term := range p.Denylist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(normalized, term) {
			return false
		}
	}
	return true
}

// CacheKey derives a stable key from the normalized query plus every
// parameter that affects the answer. Filters are serialized in sorted key
// order so identical filter sets hash identically.
func CacheKey(query string, topK int, minSimilarity float64, filters map[string]string) string {
	var filterParts []string
	for key, value := range filters {
		filterParts = append(filterParts, key+"="+value)
	}
	sort.Strings(filterParts)

	payload := fmt.Sprintf("%s|%d|%.4f|%s",
		strings.ToLower(strings.TrimSpace(query)),
		topK,
		minSimilarity,
		strings.Join(filterParts, "&"),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// --- In-memory backend ---

type memoryCacheEntry struct {
	key       string
	result    models.QueryResult
	expiresAt time.Time
}

// MemoryCache is a bounded, mutex-guarded LRU cache. Expired entries are
// dropped lazily on access; Sweep allows an optional periodic cleanup.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	stats    CacheStats

	// now is injectable for expiry tests
	now func() time.Time
}

func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		stats:    CacheStats{Capacity: capacity},
		now:      time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*models.QueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	entry := element.Value.(*memoryCacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeLocked(element)
		c.stats.Misses++
		return nil, false
	}

	c.order.MoveToFront(element)
	c.stats.Hits++
	result := entry.result
	return &result, true
}

func (c *MemoryCache) Put(ctx context.Context, key string, result *models.QueryResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		entry := element.Value.(*memoryCacheEntry)
		entry.result = *result
		entry.expiresAt = c.now().Add(ttl)
		c.order.MoveToFront(element)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.stats.Evictions++
	}

	element := c.order.PushFront(&memoryCacheEntry{
		key:       key,
		result:    *result,
		expiresAt: c.now().Add(ttl),
	})
	c.entries[key] = element
}

// Sweep removes expired entries eagerly. Wired to a periodic job; the
// cache stays correct without it.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for element := c.order.Back(); element != nil; {
		prev := element.Prev()
		if now.After(element.Value.(*memoryCacheEntry).expiresAt) {
			c.removeLocked(element)
			removed++
		}
		element = prev
	}
	return removed
}

func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Size = len(c.entries)
	return stats
}

func (c *MemoryCache) removeLocked(element *list.Element) {
	entry := element.Value.(*memoryCacheEntry)
	delete(c.entries, entry.key)
	c.order.Remove(element)
}

// --- Redis backend ---

// RedisCache stores query results in Redis with native TTL expiry, sharing
// cached answers across instances.
type RedisCache struct {
	rdb *redis.Client

	mu    sync.Mutex
	stats CacheStats
}

const redisCachePrefix = "qcache:"

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.QueryResult, bool) {
	data, err := c.rdb.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Query cache read failed, treating as miss", "error", err)
		}
		c.count(false)
		return nil, false
	}

	var result models.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn("Query cache entry corrupt, treating as miss", "error", err)
		c.count(false)
		return nil, false
	}

	c.count(true)
	return &result, true
}

func (c *RedisCache) Put(ctx context.Context, key string, result *models.QueryResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warn("Query cache write failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, redisCachePrefix+key, data, ttl).Err(); err != nil {
		logger.Warn("Query cache write failed", "error", err)
	}
}

func (c *RedisCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *RedisCache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
}
