package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/walletsim/pkg/logger"
	"github.com/wonny/walletsim/pkg/redis"
)

// maxBodyBytes caps a provider response (일봉 10년치 XML ≈ 1MB)
const maxBodyBytes = 16 << 20

// Client fetches provider pages with pacing, shared rate limits and retry
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	http      *http.Client
	logger    *logger.Logger
	retry     RetryConfig
	userAgent string

	pacer  *rate.Limiter      // 프로세스 내 토큰 버킷
	shared *redis.RateLimiter // 프로세스 간 공유 윈도우
	budget redis.RateLimitConfig
}

// RetryConfig controls exponential backoff on 429/5xx and transport errors
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Enabled      bool
}

// StatusError is returned by GetBytes for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// New creates a client with a 30s timeout and 3 retries
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(log *logger.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: log.Component("http"),
		retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Enabled:      true,
		},
		userAgent: "Mozilla/5.0 (compatible; walletsim/1.0)",
	}
}

// NewWithTimeout creates a client with custom timeout
func NewWithTimeout(log *logger.Logger, timeout time.Duration) *Client {
	c := New(log)
	c.http.Timeout = timeout
	return c
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(maxRetries int, initialDelay time.Duration) *Client {
	c.retry.MaxRetries = maxRetries
	c.retry.InitialDelay = initialDelay
	c.retry.Enabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retry.Enabled = false
	return c
}

// WithPacing limits outgoing requests to perSec with the given burst
func (c *Client) WithPacing(perSec float64, burst int) *Client {
	if perSec <= 0 {
		return c
	}
	c.pacer = rate.NewLimiter(rate.Limit(perSec), max(burst, 1))
	return c
}

// WithRateLimiter draws every request from a Redis-backed budget as well
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.shared = limiter
	c.budget = cfg
	return c
}

// Get performs a GET request; the caller closes the body
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	start := time.Now()

	resp, attempts, err := c.get(ctx, url)

	log := c.logger.WithFields(map[string]interface{}{
		"url":      url,
		"attempts": attempts,
		"duration": time.Since(start),
	})
	if err != nil {
		log.WithError(err).Error("HTTP request failed")
		return nil, err
	}
	log.WithField("status_code", resp.StatusCode).Debug("HTTP request completed")
	return resp, nil
}

// GetBytes performs a GET request and returns the body of a 2xx response
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// throttle waits on the local pacer and then the shared budget
func (c *Client) throttle(ctx context.Context) error {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("pacing wait: %w", err)
		}
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx, c.budget); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return nil
}

// get runs the attempt loop; every attempt is throttled
func (c *Client) get(ctx context.Context, url string) (*http.Response, int, error) {
	retries := 0
	if c.retry.Enabled {
		retries = c.retry.MaxRetries
	}
	delay := c.retry.InitialDelay

	for attempt := 1; ; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return nil, attempt - 1, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, attempt, fmt.Errorf("build GET request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		retryable := err != nil || IsRetryableError(resp.StatusCode)
		if !retryable || attempt > retries {
			return resp, attempt, err
		}

		// 서버가 Retry-After를 주면 그 값을 우선
		wait := delay
		if resp != nil {
			if ra := retryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				wait = min(ra, c.retry.MaxDelay)
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   wait,
			"url":     url,
		}).Warn("Retrying HTTP request")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, ctx.Err()
		case <-timer.C:
		}

		delay = min(delay*2, c.retry.MaxDelay)
	}
}

// retryAfter parses the delta-seconds form of a Retry-After header
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// IsRetryableError reports whether a status is worth another attempt (429, 5xx)
func IsRetryableError(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}
