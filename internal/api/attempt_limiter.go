package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// attemptLimiter is a sliding-window counter keyed by client.
type attemptLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	attempts map[string][]time.Time
}

func newAttemptLimiter(limit int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		limit:    limit,
		window:   window,
		attempts: make(map[string][]time.Time),
	}
}

func (limiter *attemptLimiter) blocked(key string, now time.Time) bool {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	return len(limiter.recentLocked(key, now)) >= limiter.limit
}

func (limiter *attemptLimiter) record(key string, now time.Time) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	limiter.attempts[key] = append(limiter.recentLocked(key, now), now)
}

func (limiter *attemptLimiter) reset(key string) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	delete(limiter.attempts, key)
}

func (limiter *attemptLimiter) recentLocked(key string, now time.Time) []time.Time {
	threshold := now.Add(-limiter.window)
	kept := limiter.attempts[key][:0:0]
	for _, attempt := range limiter.attempts[key] {
		if attempt.After(threshold) {
			kept = append(kept, attempt)
		}
	}

	if len(kept) == 0 {
		delete(limiter.attempts, key)
		return nil
	}
	limiter.attempts[key] = kept
	return kept
}

func requestLimiterKey(c *fiber.Ctx) string {
	key := strings.TrimSpace(utils.CopyString(c.IP()))
	if key == "" {
		return "unknown"
	}
	return key
}
