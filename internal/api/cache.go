package api

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pagerops/triage/internal/logging"
)

// ResultCacheConfig holds cache configuration.
type ResultCacheConfig struct {
	Size int           // Max entries (default: 128)
	TTL  time.Duration // Entry TTL (default: 15 minutes)
}

// DefaultResultCacheConfig returns the default cache configuration.
func DefaultResultCacheConfig() ResultCacheConfig {
	return ResultCacheConfig{
		Size: 128,
		TTL:  15 * time.Minute,
	}
}

// ResultCacheStats represents cache statistics.
type ResultCacheStats struct {
	Items   int     `json:"items"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Expired uint64  `json:"expired"`
	HitRate float64 `json:"hit_rate"`
}

type cachedResponse struct {
	response  *TriageResponse
	expiresAt time.Time
}

// ResultCache is an LRU cache of triage responses keyed by incident text.
// Identical incident descriptions are served from the cache instead of
// burning another round of provider calls. Entries expire after the TTL so
// a playbook reload eventually reaches repeat requests.
type ResultCache struct {
	lru    *lru.Cache[string, *cachedResponse]
	ttl    time.Duration
	logger *logging.Logger

	// Metrics (atomic)
	hits    uint64
	misses  uint64
	expired uint64
}

// NewResultCache creates a result cache. Size and TTL fall back to the
// defaults when unset.
func NewResultCache(config ResultCacheConfig) (*ResultCache, error) {
	if config.Size <= 0 {
		config.Size = DefaultResultCacheConfig().Size
	}
	if config.TTL <= 0 {
		config.TTL = DefaultResultCacheConfig().TTL
	}

	inner, err := lru.New[string, *cachedResponse](config.Size)
	if err != nil {
		return nil, err
	}

	return &ResultCache{
		lru:    inner,
		ttl:    config.TTL,
		logger: logging.GetLogger("api.cache"),
	}, nil
}

// MakeCacheKey creates a deterministic cache key from an incident
// description.
func MakeCacheKey(incident string) string {
	sum := sha256.Sum256([]byte(incident))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a cached response, returning false if absent or expired.
func (c *ResultCache) Get(key string) (*TriageResponse, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		atomic.AddUint64(&c.expired, 1)
		atomic.AddUint64(&c.misses, 1)
		c.lru.Remove(key)
		return nil, false
	}

	atomic.AddUint64(&c.hits, 1)
	c.logger.Debug("cache hit: key=%s", key[:16])
	return entry.response, true
}

// Put stores a response in the cache.
func (c *ResultCache) Put(key string, response *TriageResponse) {
	c.lru.Add(key, &cachedResponse{
		response:  response,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Clear removes all entries from the cache.
func (c *ResultCache) Clear() {
	c.lru.Purge()
}

// Stats returns cache statistics.
func (c *ResultCache) Stats() ResultCacheStats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	total := hits + misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return ResultCacheStats{
		Items:   c.lru.Len(),
		Hits:    hits,
		Misses:  misses,
		Expired: atomic.LoadUint64(&c.expired),
		HitRate: hitRate,
	}
}
