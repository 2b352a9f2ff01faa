package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/vigilguard/vigil/pkg/app/policy"
	"github.com/vigilguard/vigil/pkg/config"
	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/ratelimit"
)

func newTenantLimitApp(t *testing.T, policies *policy.Provider) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	limiter := ratelimit.NewMemoryLimiter(logger, ratelimit.Config{
		MaxRequests:   100,
		Window:        time.Minute,
		BlockDuration: 5 * time.Minute,
	})

	cfg := &config.Config{Upstream: config.UpstreamConfig{TenantID: "default"}}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(NewContextMiddleware(logger, cfg).Middleware())
	app.Use(NewTenantRateLimitMiddleware(logger, limiter, policies).Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func tenantRequest(tenant string) *http.Request {
	req := httptest.NewRequest(fiber.MethodGet, "http://gateway.local/", nil)
	req.Header.Set("X-Tenant-ID", tenant)
	req.Header.Set("X-Real-IP", "203.0.113.50")
	return req
}

func TestTenantPolicyRateLimitEnforced(t *testing.T) {
	policies := policy.NewProvider(config.PolicyConfig{
		BlockThreshold:     80,
		ChallengeThreshold: 60,
		MonitorThreshold:   40,
	}, config.RateLimitConfig{MaxRequests: 100, Window: time.Minute})
	policies.SetOverride("strict", types.Policy{
		RateLimit:       2,
		RateLimitWindow: time.Minute,
	})

	app := newTenantLimitApp(t, policies)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(tenantRequest("strict"), 5000)
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d is within the override", i)
	}

	resp, err := app.Test(tenantRequest("strict"), 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode, "the override limit applies, not the default")
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestTenantWithoutOverrideUsesDefaultWindow(t *testing.T) {
	policies := policy.NewProvider(config.PolicyConfig{
		BlockThreshold:     80,
		ChallengeThreshold: 60,
		MonitorThreshold:   40,
	}, config.RateLimitConfig{MaxRequests: 100, Window: time.Minute})

	app := newTenantLimitApp(t, policies)

	for i := 0; i < 5; i++ {
		resp, err := app.Test(tenantRequest("acme"), 5000)
		assert.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}
