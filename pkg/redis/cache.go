package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values for price series and index memberships
// ⭐ SSOT: 캐시 키/TTL 규칙은 여기서만
type Cache struct {
	client *Client
	prefix string
}

// Cache TTLs
const (
	TTLShort = 10 * time.Minute // 오늘이 포함된 구간 (장중 갱신)
	TTLDaily = 24 * time.Hour   // 확정된 과거 구간, 지수 구성종목
)

// NewCache creates a cache whose keys live under prefix
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// PriceSeriesKey identifies a symbol's daily bars over [from, to]
func PriceSeriesKey(symbol, from, to string) string {
	return "bars:" + symbol + ":" + from + ":" + to
}

// ConstituentsKey identifies a scraped index membership list
func ConstituentsKey(index string) string {
	return "index:" + index + ":members"
}

func (c *Cache) fullKey(key string) string {
	return c.prefix + ":cache:" + key
}

// Get decodes the value at key into dest; a miss returns false
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	raw, err := c.client.rdb.Get(ctx, c.fullKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value at key for ttl
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.rdb.Set(ctx, c.fullKey(key), raw, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.rdb.Del(ctx, c.fullKey(key)).Err()
}

// Remember returns the cached value at key, or calls load and caches a non-empty result.
// Cache failures are reported through onErr and never fail the call.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration,
	empty func(T) bool, load func(context.Context) (T, error), onErr func(error)) (T, bool, error) {
	if c != nil {
		var cached T
		hit, err := c.Get(ctx, key, &cached)
		if err != nil && onErr != nil {
			onErr(err)
		}
		if hit && !empty(cached) {
			return cached, true, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, false, err
	}
	if c != nil && !empty(v) {
		if err := c.Set(ctx, key, v, ttl); err != nil && onErr != nil {
			onErr(err)
		}
	}
	return v, false, nil
}
