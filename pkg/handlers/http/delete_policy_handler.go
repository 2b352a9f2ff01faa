package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/app/policy"
)

type deletePolicyHandler struct {
	logger   *logrus.Logger
	policies *policy.Provider
}

func NewDeletePolicyHandler(logger *logrus.Logger, policies *policy.Provider) Handler {
	return &deletePolicyHandler{logger: logger, policies: policies}
}

func (h *deletePolicyHandler) Handle(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tenant_id is required",
		})
	}
	h.policies.RemoveOverride(tenantID)
	h.logger.WithField("tenant_id", tenantID).Info("policy override removed")
	return c.SendStatus(fiber.StatusNoContent)
}
