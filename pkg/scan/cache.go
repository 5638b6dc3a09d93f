package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache deduplicates scans by content hash. Identical bytes always fuse
// to the identical verdict, so re-running the pipeline buys nothing; the
// cache answers repeats from memory and, when configured, from Redis so
// replicas share results. Singleflight collapses concurrent requests for
// the same hash into one pipeline run.
type Cache struct {
	rdb   *redis.Client // nil = in-process only
	local *gocache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCache builds the verdict cache. An empty redisAddr selects
// in-process-only caching.
func NewCache(redisAddr string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		local: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
	if redisAddr != "" {
		c.rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		log.Printf("[CACHE] Redis verdict cache at %s (ttl %s)", redisAddr, ttl)
	}
	return c
}

// ContentKey returns the cache key for raw media bytes.
func ContentKey(content []byte) string {
	sum := sha256.Sum256(content)
	return "ultrascan:verdict:" + hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached verdict for key, or runs compute exactly
// once per key across concurrent callers and caches its result. The
// second return value reports whether the verdict came from cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() (*Verdict, error)) (*Verdict, bool, error) {
	if v := c.lookup(ctx, key); v != nil {
		return v, true, nil
	}

	var computed bool
	out, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight lock: a concurrent caller may have
		// populated the cache while we queued.
		if v := c.lookup(ctx, key); v != nil {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		computed = true
		c.store(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return out.(*Verdict), !computed, nil
}

// lookup checks local memory first, then Redis.
func (c *Cache) lookup(ctx context.Context, key string) *Verdict {
	if cached, ok := c.local.Get(key); ok {
		return cached.(*Verdict)
	}
	if c.rdb == nil {
		return nil
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[CACHE] Redis get failed: %v", err)
		}
		return nil
	}
	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("[CACHE] Corrupt cached verdict for %s: %v", key, err)
		return nil
	}
	c.local.Set(key, &v, gocache.DefaultExpiration)
	return &v
}

func (c *Cache) store(ctx context.Context, key string, v *Verdict) {
	c.local.Set(key, v, gocache.DefaultExpiration)
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("[CACHE] Verdict marshal failed: %v", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("[CACHE] Redis set failed: %v", err)
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
