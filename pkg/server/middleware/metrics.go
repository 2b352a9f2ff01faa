package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/infra/prometheus"
)

type metricsMiddleware struct {
	logger *logrus.Logger
}

// NewMetricsMiddleware counts every request by method and final status.
func NewMetricsMiddleware(logger *logrus.Logger) Middleware {
	return &metricsMiddleware{logger: logger}
}

func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		prometheus.RequestTotal.WithLabelValues(
			TenantID(c),
			c.Method(),
			strconv.Itoa(status),
		).Inc()
		return err
	}
}
