package balances

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func cachedResult(t *testing.T) *Result {
	t.Helper()
	chart := newTestChart(t)
	return &Result{
		Query:   testQuery(ReportBalanza),
		Entries: []*Entry{posting(t, chart, "1101", "MXN", "1000", "0")},
		BuiltAt: time.Now().UTC(),
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()
	result := cachedResult(t)
	key := result.Query.CacheKey()

	if _, ok := cache.Get(ctx, key); ok {
		t.Fatalf("expected a miss before the first set")
	}
	cache.Set(ctx, key, result)
	got, ok := cache.Get(ctx, key)
	if !ok || got.Len() != 1 {
		t.Fatalf("expected the cached result back, got ok=%v", ok)
	}

	cache.Bust(ctx)
	if _, ok := cache.Get(ctx, key); ok {
		t.Fatalf("expected a miss after bust")
	}
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	cache := NewMemoryCache(10 * time.Millisecond)
	ctx := context.Background()
	result := cachedResult(t)
	key := result.Query.CacheKey()

	cache.Set(ctx, key, result)
	time.Sleep(30 * time.Millisecond)
	if _, ok := cache.Get(ctx, key); ok {
		t.Fatalf("expected the entry to expire")
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()
	result := cachedResult(t)
	key := result.Query.CacheKey()

	if _, ok := cache.Get(ctx, key); ok {
		t.Fatalf("expected a miss before the first set")
	}
	cache.Set(ctx, key, result)

	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Fatalf("expected the cached result back")
	}
	if got.Len() != 1 {
		t.Fatalf("expected one row got %d", got.Len())
	}
	if !got.Entries[0].CurrentBalance.Equal(dec("1000")) {
		t.Fatalf("balance did not survive serialization: %s", got.Entries[0].CurrentBalance)
	}
}

func TestRedisCacheBust(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()
	result := cachedResult(t)
	key := result.Query.CacheKey()

	cache.Set(ctx, key, result)
	cache.Bust(ctx)
	if _, ok := cache.Get(ctx, key); ok {
		t.Fatalf("expected a miss after bust")
	}
}

func TestRedisCacheDegradesToMissOnError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	mr.Close()
	if _, ok := cache.Get(ctx, "balances:Balanza:deadbeef"); ok {
		t.Fatalf("expected connectivity errors to read as a miss")
	}
	// Set must not panic either.
	cache.Set(ctx, "balances:Balanza:deadbeef", cachedResult(t))
}

func TestResultLenPerShape(t *testing.T) {
	if (&Result{Entries: []*Entry{{}, {}}}).Len() != 2 {
		t.Fatalf("unexpected entries length")
	}
	if (&Result{AnalyticEntries: []*AnalyticEntry{{}}}).Len() != 1 {
		t.Fatalf("unexpected analytic length")
	}
	if (&Result{CurrencyEntries: []*CurrencyColumnsEntry{{}, {}, {}}}).Len() != 3 {
		t.Fatalf("unexpected currency length")
	}
	if (&Result{ComparativeEntries: []*ComparativeEntry{{}}}).Len() != 1 {
		t.Fatalf("unexpected comparative length")
	}
}
