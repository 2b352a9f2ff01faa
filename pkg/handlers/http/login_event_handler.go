package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/behavior"
)

type loginEventRequest struct {
	Identity  string    `json:"identity"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Country   string    `json:"country"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

type loginEventResponse struct {
	Allowed        bool      `json:"allowed"`
	Reason         string    `json:"reason,omitempty"`
	FailedAttempts int       `json:"failed_attempts"`
	IsLocked       bool      `json:"is_locked"`
	LockExpiresAt  time.Time `json:"lock_expires_at,omitempty"`
	AnomalyScore   float64         `json:"anomaly_score"`
	RiskLevel      types.RiskLevel `json:"risk_level"`
}

type loginEventHandler struct {
	logger   *logrus.Logger
	analyzer *behavior.Analyzer
}

// NewLoginEventHandler ingests authentication outcomes reported by the
// application behind the gateway and answers with the lockout verdict.
func NewLoginEventHandler(logger *logrus.Logger, analyzer *behavior.Analyzer) Handler {
	return &loginEventHandler{logger: logger, analyzer: analyzer}
}

func (h *loginEventHandler) Handle(c *fiber.Ctx) error {
	var dto loginEventRequest
	if err := c.BodyParser(&dto); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed login event",
		})
	}
	if dto.Identity == "" || dto.IP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "identity and ip are required",
		})
	}

	result := h.analyzer.TrackLoginAttempt(behavior.Attempt{
		Identity:  dto.Identity,
		TenantID:  middleware.TenantID(c),
		IP:        dto.IP,
		UserAgent: dto.UserAgent,
		Country:   dto.Country,
		Success:   dto.Success,
		Timestamp: dto.Timestamp,
	})

	response := loginEventResponse{
		Allowed: result.Allowed,
		Reason:  result.Reason,
	}
	if result.Profile != nil {
		response.FailedAttempts = result.Profile.FailedAttempts
		response.IsLocked = result.Profile.IsLocked
		response.LockExpiresAt = result.Profile.LockExpiresAt
		response.AnomalyScore = result.Profile.AnomalyScore
		response.RiskLevel = result.Profile.RiskLevel
	}

	status := fiber.StatusOK
	if !result.Allowed {
		status = fiber.StatusForbidden
		if response.IsLocked {
			status = fiber.StatusTooManyRequests
			if remaining := time.Until(response.LockExpiresAt); remaining > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(remaining.Seconds())+1))
			}
		}
	}
	return c.Status(status).JSON(response)
}
