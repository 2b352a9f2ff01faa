package middleware

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/common"
	"github.com/vigilguard/vigil/pkg/config"
)

// clientIPHeaders are consulted in order before falling back to the socket
// address.
var clientIPHeaders = []string{
	"X-Real-IP",
	"X-Forwarded-For",
	"True-Client-IP",
	"CF-Connecting-IP",
}

type contextMiddleware struct {
	logger        *logrus.Logger
	defaultTenant string
}

// NewContextMiddleware stamps every request with an id, the resolved client
// IP and the tenant it belongs to.
func NewContextMiddleware(logger *logrus.Logger, cfg *config.Config) Middleware {
	return &contextMiddleware{
		logger:        logger,
		defaultTenant: cfg.Upstream.TenantID,
	}
}

func (m *contextMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(common.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		tenantID := c.Get("X-Tenant-ID")
		if tenantID == "" {
			tenantID = m.defaultTenant
		}

		c.Locals(string(common.RequestIdContextKey), requestID)
		c.Locals(string(common.TenantContextKey), tenantID)
		c.Locals(string(common.ClientIpContextKey), resolveClientIP(c))

		c.Set(common.RequestIDHeader, requestID)
		return c.Next()
	}
}

func resolveClientIP(c *fiber.Ctx) string {
	for _, header := range clientIPHeaders {
		if value := c.Get(header); value != "" {
			first := strings.TrimSpace(strings.Split(value, ",")[0])
			if net.ParseIP(first) != nil {
				return first
			}
		}
	}
	return strings.TrimSpace(c.IP())
}

// RequestID reads the stamped request id.
func RequestID(c *fiber.Ctx) string {
	if v, ok := c.Locals(string(common.RequestIdContextKey)).(string); ok {
		return v
	}
	return ""
}

// TenantID reads the stamped tenant.
func TenantID(c *fiber.Ctx) string {
	if v, ok := c.Locals(string(common.TenantContextKey)).(string); ok {
		return v
	}
	return ""
}

// ClientIP reads the stamped client address.
func ClientIP(c *fiber.Ctx) string {
	if v, ok := c.Locals(string(common.ClientIpContextKey)).(string); ok {
		return v
	}
	return c.IP()
}
