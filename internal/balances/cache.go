package balances

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is a computed report: the originating query plus the ordered,
// typed entry list with subtotal rows interleaved.
type Result struct {
	Query   *Query   `json:"query"`
	Entries []*Entry `json:"entries,omitempty"`

	// Reports with their own row shape fill exactly one of these instead
	// of Entries.
	AnalyticEntries    []*AnalyticEntry        `json:"analyticEntries,omitempty"`
	CurrencyEntries    []*CurrencyColumnsEntry `json:"currencyEntries,omitempty"`
	ComparativeEntries []*ComparativeEntry     `json:"comparativeEntries,omitempty"`

	BuiltAt time.Time `json:"builtAt"`
}

// Len returns the number of rows the result carries, whatever its shape.
func (r *Result) Len() int {
	switch {
	case len(r.AnalyticEntries) > 0:
		return len(r.AnalyticEntries)
	case len(r.CurrencyEntries) > 0:
		return len(r.CurrencyEntries)
	case len(r.ComparativeEntries) > 0:
		return len(r.ComparativeEntries)
	}
	return len(r.Entries)
}

// ResultCache memoizes full result sets by the query hash. Construction is
// explicit and the TTL is configurable; there is no unbounded grow-only
// default.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Set(ctx context.Context, key string, result *Result)
	Bust(ctx context.Context)
}

type cacheItem struct {
	result  *Result
	expires time.Time
}

// MemoryCache is an in-process TTL cache guarded by a single mutex. Expired
// items are dropped lazily on read.
type MemoryCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]cacheItem
}

// NewMemoryCache constructs the cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{ttl: ttl, items: make(map[string]cacheItem)}
}

// Get implements ResultCache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Result, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expires) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return item.result, true
}

// Set implements ResultCache.
func (c *MemoryCache) Set(_ context.Context, key string, result *Result) {
	c.mu.Lock()
	c.items[key] = cacheItem{result: result, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Bust drops every cached result.
func (c *MemoryCache) Bust(_ context.Context) {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

// RedisCache stores JSON-serialized results in Redis so warm results
// survive process restarts and are shared across instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache constructs the backend.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "balanza:"}
}

// Get implements ResultCache. Cache errors degrade to a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set implements ResultCache. Serialization or connectivity errors drop the
// write; the result was already computed for the caller.
func (c *RedisCache) Set(ctx context.Context, key string, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

// Bust drops every cached result under the cache prefix.
func (c *RedisCache) Bust(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
