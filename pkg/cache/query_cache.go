package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"datachat-be/pkg/search"
)

// QueryCache stores synthesized queries keyed by the normalized question
// and target index. A hit lets the pipeline reuse the exact query body
// without calling the model again.
type QueryCache struct {
	cache  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// QueryCacheStats is a point-in-time snapshot of cache effectiveness.
type QueryCacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func NewQueryCache(ttl time.Duration) *QueryCache {
	return &QueryCache{
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

// Key derives the cache key from the user question and target index.
// Normalization keeps trivially-different phrasings ("Top 5 Products ")
// from fragmenting the cache.
func (c *QueryCache) Key(question, index string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := md5.Sum([]byte(normalized + "|" + index))
	return hex.EncodeToString(sum[:])
}

func (c *QueryCache) Get(key string) (*search.StructuredQuery, bool) {
	if x, found := c.cache.Get(key); found {
		c.hits.Add(1)
		return x.(*search.StructuredQuery), true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *QueryCache) Put(key string, query *search.StructuredQuery) {
	c.cache.Set(key, query, gocache.DefaultExpiration)
}

func (c *QueryCache) Invalidate(key string) {
	c.cache.Delete(key)
}

func (c *QueryCache) Flush() {
	c.cache.Flush()
}

func (c *QueryCache) Stats() QueryCacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return QueryCacheStats{
		Entries: c.cache.ItemCount(),
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
	}
}
