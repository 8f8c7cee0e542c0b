package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/wonny/walletsim/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on disabled client = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")
	cfg := RateLimitConfig{Key: "naver", Limit: 10, Window: time.Second}

	// When Redis is disabled, all requests should be allowed
	d, err := limiter.Allow(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if d.Remaining != cfg.Limit {
		t.Errorf("Expected remaining = %d, got %d", cfg.Limit, d.Remaining)
	}
	if err := limiter.Wait(context.Background(), cfg); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestRateLimiter_WindowKey(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "walletsim")
	limiter.now = func() time.Time { return time.UnixMilli(10_250) }

	key, left := limiter.windowKey(RateLimitConfig{Key: "naver", Limit: 5, Window: time.Second})
	if key != "walletsim:ratelimit:naver:10" {
		t.Errorf("key = %q", key)
	}
	if left != 750*time.Millisecond {
		t.Errorf("left = %s, want 750ms", left)
	}
}

func TestRemember_NilCacheLoadsOnce(t *testing.T) {
	calls := 0
	got, hit, err := Remember(context.Background(), nil, ConstituentsKey("KPI200"), TTLDaily,
		func(s []string) bool { return len(s) == 0 },
		func(context.Context) ([]string, error) {
			calls++
			return []string{"005930", "000660"}, nil
		}, nil)
	if err != nil || hit {
		t.Fatalf("Remember() hit=%v err=%v", hit, err)
	}
	if calls != 1 || len(got) != 2 {
		t.Errorf("calls=%d got=%v", calls, got)
	}
}

func TestRemember_DisabledCachePropagatesLoadError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Remember(context.Background(), NewCache(Disabled(), "test"), "k", TTLShort,
		func(v int) bool { return v == 0 },
		func(context.Context) (int, error) { return 0, boom }, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	// When Redis is disabled, cache operations should be no-ops
	if err := cache.Set(ctx, "key", []float64{1, 2}, TTLShort); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var result []float64
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}
}

func TestCache_RoundTrip(t *testing.T) {
	if testing.Short() || os.Getenv("REDIS_HOST") == "" {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}

	t.Setenv("REDIS_ENABLED", "true")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	ctx := context.Background()
	client, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	cache := NewCache(client, "walletsim-test")
	key := PriceSeriesKey("005930", "2024-01-01", "2024-02-01")
	defer cache.Delete(ctx, key) //nolint:errcheck

	if err := cache.Set(ctx, key, []float64{70000, 71000}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got []float64
	found, err := cache.Get(ctx, key, &got)
	if err != nil || !found {
		t.Fatalf("Get() found=%v err=%v", found, err)
	}
	if len(got) != 2 || got[1] != 71000 {
		t.Errorf("Unexpected cached value %v", got)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "PriceSeriesKey",
			fn:       func() string { return PriceSeriesKey("005930", "2024-01-01", "2024-01-31") },
			expected: "bars:005930:2024-01-01:2024-01-31",
		},
		{
			name:     "ConstituentsKey",
			fn:       func() string { return ConstituentsKey("KPI200") },
			expected: "index:KPI200:members",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
