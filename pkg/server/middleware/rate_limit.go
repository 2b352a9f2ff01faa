package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/infra/prometheus"
	"github.com/vigilguard/vigil/pkg/waf/ratelimit"
)

type globalRateLimitMiddleware struct {
	logger  *logrus.Logger
	limiter ratelimit.Limiter
}

// NewGlobalRateLimitMiddleware applies the per-IP-and-path window and
// exposes the standard X-RateLimit headers.
func NewGlobalRateLimitMiddleware(logger *logrus.Logger, limiter ratelimit.Limiter) Middleware {
	return &globalRateLimitMiddleware{logger: logger, limiter: limiter}
}

func (m *globalRateLimitMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ip:%s:%s", ClientIP(c), c.Path())

		decision, err := m.limiter.Check(c.Context(), key)
		if err != nil {
			// the limiter is protective, not load-bearing
			m.logger.WithError(err).Warn("Rate limiter unavailable, letting request through")
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if !decision.Allowed {
			prometheus.RateLimitRejections.WithLabelValues(TenantID(c), "global").Inc()
			c.Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": int(decision.RetryAfter.Seconds()),
			})
		}
		return c.Next()
	}
}

// WindowResolver reports the rate limit window a tenant's policy grants.
type WindowResolver interface {
	Window(tenantID string) (int, time.Duration)
}

type tenantRateLimitMiddleware struct {
	logger   *logrus.Logger
	limiter  ratelimit.PolicyLimiter
	policies WindowResolver
}

// NewTenantRateLimitMiddleware applies the tenant+IP window using the
// limit and window the tenant's policy resolves to, so per-tenant policy
// overrides take effect on the next request.
func NewTenantRateLimitMiddleware(logger *logrus.Logger, limiter ratelimit.PolicyLimiter, policies WindowResolver) Middleware {
	return &tenantRateLimitMiddleware{logger: logger, limiter: limiter, policies: policies}
}

func (m *tenantRateLimitMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenant := TenantID(c)
		key := ratelimit.TenantKey(tenant, ClientIP(c))
		maxRequests, window := m.policies.Window(tenant)

		decision, err := m.limiter.CheckWithLimit(c.Context(), key, maxRequests, window)
		if err != nil {
			m.logger.WithError(err).Warn("Tenant rate limiter unavailable, letting request through")
			return c.Next()
		}

		if !decision.Allowed {
			prometheus.RateLimitRejections.WithLabelValues(TenantID(c), "tenant").Inc()
			c.Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "tenant rate limit exceeded",
			})
		}
		return c.Next()
	}
}
