package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheTTL bounds how long a calibrated result is trusted before the
// pipeline recomputes it against the (presumably larger, by then) trade
// log.
const cacheTTL = 6 * time.Hour

// Result is what gets cached per (pair, source, bar_kind): either a
// scalar threshold or an EWMA seed, depending on which calibration
// function produced it.
type Result struct {
	Value float64 `json:"value"`
}

// Cache is a Redis-backed accelerator in front of the calibration
// formulas. It is never load-bearing: a nil Cache, or any Redis failure,
// just means calibration recomputes from storage — the same "connect
// once at startup, warn and proceed without it on failure" pattern the
// rest of Arcana's ambient stack uses for optional accessories.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis at host:port. If host is empty or the ping
// fails, it logs a warning and returns nil — callers must treat a nil
// *Cache as "caching disabled", not an error.
func NewCache(host string, port int, password string) *Cache {
	if host == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("calibration: redis cache unavailable at %s, proceeding without it: %v", addr, err)
		return nil
	}

	log.Printf("calibration: connected to redis cache at %s", addr)
	return &Cache{client: client}
}

func cacheKey(pair, source, barKind string) string {
	return fmt.Sprintf("arcana:calibration:%s:%s:%s", source, pair, barKind)
}

// Get returns a previously cached calibration result, or (Result{},
// false) on a cache miss, an unreachable cache, or any other failure —
// callers always fall back to recomputing on a false return.
func (c *Cache) Get(ctx context.Context, pair, source, barKind string) (Result, bool) {
	if c == nil {
		return Result{}, false
	}
	val, err := c.client.Get(ctx, cacheKey(pair, source, barKind)).Result()
	if err != nil {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return Result{}, false
	}
	return result, true
}

// Set stores a calibration result. Failures are logged and swallowed —
// a cache write never fails the calibration that produced the value.
func (c *Cache) Set(ctx context.Context, pair, source, barKind string, result Result) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		log.Printf("calibration: failed to encode cache entry for %s/%s/%s: %v", source, pair, barKind, err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(pair, source, barKind), raw, cacheTTL).Err(); err != nil {
		log.Printf("calibration: failed to write cache entry for %s/%s/%s: %v", source, pair, barKind, err)
	}
}

// Close releases the underlying Redis connection. Safe to call on nil.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
