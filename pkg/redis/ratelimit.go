package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window request counter shared through Redis.
// CLI, scheduler and API processes pacing the same provider draw from one budget.
// ⭐ SSOT: 분산 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
}

// RateLimitConfig names a budget of Limit requests per Window
type RateLimitConfig struct {
	Key    string // 공급자 이름 (e.g., "naver")
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // 다음 윈도우까지 남은 시간 (거절 시)
}

// NewRateLimiter creates a limiter whose keys live under prefix
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

func (r *RateLimiter) windowKey(cfg RateLimitConfig) (string, time.Duration) {
	now := r.now()
	window := cfg.Window.Milliseconds()
	if window <= 0 {
		window = 1
	}
	slot := now.UnixMilli() / window
	left := time.Duration((slot+1)*window-now.UnixMilli()) * time.Millisecond
	return fmt.Sprintf("%s:ratelimit:%s:%d", r.prefix, cfg.Key, slot), left
}

// Allow counts one request against the current window
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (Decision, error) {
	if !r.client.Enabled() {
		return Decision{Allowed: true, Remaining: cfg.Limit}, nil
	}

	key, left := r.windowKey(cfg)

	pipe := r.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, left+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
	}

	used := int(incr.Val())
	if used > cfg.Limit {
		return Decision{RetryAfter: left}, nil
	}
	return Decision{Allowed: true, Remaining: cfg.Limit - used}, nil
}

// Wait blocks until the window admits a request or ctx ends
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		d, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if d.Allowed {
			return nil
		}

		timer := time.NewTimer(d.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
