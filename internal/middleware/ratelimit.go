package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitMiddleware is a fixed-window in-memory limiter. The gateway is a
// single process serving one browser session, so counters never need to be
// shared across instances.
func RateLimitMiddleware(limit int, window time.Duration) fiber.Handler {
	var (
		mu          sync.Mutex
		counts      = make(map[string]int)
		windowStart = time.Now()
	)

	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("%s:%s", c.Path(), c.IP())

		mu.Lock()
		if time.Since(windowStart) > window {
			counts = make(map[string]int)
			windowStart = time.Now()
		}
		counts[key]++
		over := counts[key] > limit
		mu.Unlock()

		if over {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
