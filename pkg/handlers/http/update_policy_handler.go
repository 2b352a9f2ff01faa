package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/app/policy"
	"github.com/vigilguard/vigil/pkg/types"
)

type policyRequest struct {
	BlockThreshold     float64 `json:"block_threshold"`
	ChallengeThreshold float64 `json:"challenge_threshold"`
	MonitorThreshold   float64 `json:"monitor_threshold"`
	RateLimit          int     `json:"rate_limit"`
	RateLimitWindowSec int     `json:"rate_limit_window_seconds"`
	EnforcementMode    string  `json:"enforcement_mode"`
	SecurityEngine     string  `json:"security_engine"`
}

type updatePolicyHandler struct {
	logger   *logrus.Logger
	policies *policy.Provider
}

// NewUpdatePolicyHandler installs a per-tenant policy override. Zero-valued
// fields inherit the configured defaults.
func NewUpdatePolicyHandler(logger *logrus.Logger, policies *policy.Provider) Handler {
	return &updatePolicyHandler{logger: logger, policies: policies}
}

func (h *updatePolicyHandler) Handle(c *fiber.Ctx) error {
	tenantID := c.Params("tenant_id")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "tenant_id is required",
		})
	}

	var dto policyRequest
	if err := c.BodyParser(&dto); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed policy",
		})
	}

	mode := types.EnforcementMode(dto.EnforcementMode)
	switch mode {
	case "", types.ModeMonitor, types.ModeBlock:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "enforcement_mode must be monitor or block",
		})
	}

	h.policies.SetOverride(tenantID, types.Policy{
		BlockThreshold:     dto.BlockThreshold,
		ChallengeThreshold: dto.ChallengeThreshold,
		MonitorThreshold:   dto.MonitorThreshold,
		RateLimit:          dto.RateLimit,
		RateLimitWindow:    time.Duration(dto.RateLimitWindowSec) * time.Second,
		EnforcementMode:    mode,
		SecurityEngine:     dto.SecurityEngine,
	})

	h.logger.WithField("tenant_id", tenantID).Info("policy override updated")
	return c.Status(fiber.StatusOK).JSON(h.policies.PolicyFor(tenantID))
}
