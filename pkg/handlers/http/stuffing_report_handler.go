package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/waf/behavior"
)

type stuffingReportHandler struct {
	logger   *logrus.Logger
	analyzer *behavior.Analyzer
}

// NewStuffingReportHandler exposes the credential stuffing assessment for one
// identity so operators can inspect why logins are being rejected.
func NewStuffingReportHandler(logger *logrus.Logger, analyzer *behavior.Analyzer) Handler {
	return &stuffingReportHandler{logger: logger, analyzer: analyzer}
}

func (h *stuffingReportHandler) Handle(c *fiber.Ctx) error {
	identity := c.Params("identity")
	if identity == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "identity is required",
		})
	}

	result := h.analyzer.DetectCredentialStuffing(identity)
	anomaly := h.analyzer.CalculateAnomalyScore(identity)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"identity":      identity,
		"is_stuffing":   result.IsStuffing,
		"confidence":    result.Confidence,
		"indicators":    result.Indicators,
		"anomaly_score": anomaly,
	})
}
