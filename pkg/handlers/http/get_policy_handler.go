package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/app/policy"
)

type getPolicyHandler struct {
	logger   *logrus.Logger
	policies *policy.Provider
}

func NewGetPolicyHandler(logger *logrus.Logger, policies *policy.Provider) Handler {
	return &getPolicyHandler{logger: logger, policies: policies}
}

func (h *getPolicyHandler) Handle(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tenant_id is required",
		})
	}
	return c.Status(fiber.StatusOK).JSON(h.policies.PolicyFor(tenantID))
}
