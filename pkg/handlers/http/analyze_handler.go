package http

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/app/analysis"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/types"
)

type analyzeRequest struct {
	Method   string              `json:"method"`
	Path     string              `json:"path"`
	Query    map[string][]string `json:"query"`
	Headers  map[string][]string `json:"headers"`
	Body     string              `json:"body"`
	ClientIP string              `json:"client_ip"`
	TenantID string              `json:"tenant_id"`
}

type analyzeHandler struct {
	logger   *logrus.Logger
	pipeline *analysis.Pipeline
}

// NewAnalyzeHandler scores a request described in the body without proxying
// it anywhere. It serves out-of-band integrations that enforce elsewhere.
func NewAnalyzeHandler(logger *logrus.Logger, pipeline *analysis.Pipeline) Handler {
	return &analyzeHandler{logger: logger, pipeline: pipeline}
}

func (h *analyzeHandler) Handle(c *fiber.Ctx) error {
	var dto analyzeRequest
	if err := c.BodyParser(&dto); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": types.ErrMalformedRequest.Error(),
		})
	}
	if dto.Method == "" || dto.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "method and path are required",
		})
	}

	tenantID := dto.TenantID
	if tenantID == "" {
		tenantID = middleware.TenantID(c)
	}
	clientIP := dto.ClientIP
	if clientIP == "" {
		clientIP = middleware.ClientIP(c)
	}

	reqCtx := &types.RequestContext{
		Method:    dto.Method,
		Path:      dto.Path,
		Query:     url.Values(dto.Query),
		Headers:   dto.Headers,
		Body:      []byte(dto.Body),
		ClientIP:  clientIP,
		TenantID:  tenantID,
		Timestamp: time.Now(),
	}

	result := h.pipeline.Analyze(c.Context(), reqCtx)
	return c.Status(fiber.StatusOK).JSON(result)
}
