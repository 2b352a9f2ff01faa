package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/vigilguard/vigil/pkg/app/policy"
	"github.com/vigilguard/vigil/pkg/config"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/behavior"
)

func newAPIApp(t *testing.T) (*fiber.App, *behavior.Analyzer, *policy.Provider) {
	t.Helper()
	logger := discardLogger()
	cfg := &config.Config{Upstream: config.UpstreamConfig{TenantID: "acme"}}

	pipeline := newTestPipeline(t)
	analyzer := pipeline.Behavior()
	policies := policy.NewProvider(config.PolicyConfig{
		BlockThreshold:     80,
		ChallengeThreshold: 60,
		MonitorThreshold:   40,
		EnforcementMode:    "block",
	}, config.RateLimitConfig{MaxRequests: 100, Window: time.Minute})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(middleware.NewContextMiddleware(logger, cfg).Middleware())

	api := app.Group("/api/v1")
	api.Post("/analyze", NewAnalyzeHandler(logger, pipeline).Handle)
	api.Post("/login-events", NewLoginEventHandler(logger, analyzer).Handle)
	api.Get("/identities/:identity/stuffing", NewStuffingReportHandler(logger, analyzer).Handle)
	api.Get("/tenants/:tenant_id/policy", NewGetPolicyHandler(logger, policies).Handle)
	api.Put("/tenants/:tenant_id/policy", NewUpdatePolicyHandler(logger, policies).Handle)
	api.Delete("/tenants/:tenant_id/policy", NewDeletePolicyHandler(logger, policies).Handle)

	return app, analyzer, policies
}

func postJSON(target string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(fiber.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAnalyzeEndpointScoresHostileRequest(t *testing.T) {
	app, _, _ := newAPIApp(t)

	req := postJSON("http://gateway.local/api/v1/analyze", analyzeRequest{
		Method: "GET",
		Path:   "/wp-admin/users.php",
		Query:  map[string][]string{"id": {"1' OR '1'='1 UNION SELECT username,password FROM users--"}},
		Headers: map[string][]string{
			"User-Agent": {"sqlmap/1.7.2#stable (https://sqlmap.org)"},
		},
		ClientIP: "198.51.100.7",
		TenantID: "acme",
	})

	resp, err := app.Test(req, 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result types.ScoringResult
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Greater(t, result.PatternScore, 50.0)
	assert.NotEmpty(t, result.Matches)
	assert.NotEqual(t, types.ActionAllow, result.Action)
}

func TestAnalyzeEndpointRejectsMalformedBody(t *testing.T) {
	app, _, _ := newAPIApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "http://gateway.local/api/v1/analyze", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeEndpointRequiresMethodAndPath(t *testing.T) {
	app, _, _ := newAPIApp(t)

	resp, err := app.Test(postJSON("http://gateway.local/api/v1/analyze", analyzeRequest{Method: "GET"}), 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginEventsLockIdentity(t *testing.T) {
	app, _, _ := newAPIApp(t)

	for i := 0; i < 5; i++ {
		resp, err := app.Test(postJSON("http://gateway.local/api/v1/login-events", loginEventRequest{
			Identity:  "victim@example.com",
			IP:        fmt.Sprintf("203.0.113.%d", i+1),
			UserAgent: "Mozilla/5.0",
			Success:   false,
		}), 5000)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := app.Test(postJSON("http://gateway.local/api/v1/login-events", loginEventRequest{
		Identity:  "victim@example.com",
		IP:        "203.0.113.10",
		UserAgent: "Mozilla/5.0",
		Success:   true,
	}), 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var verdict loginEventResponse
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&verdict))
	assert.False(t, verdict.Allowed)
	assert.True(t, verdict.IsLocked)
	assert.Contains(t, verdict.Reason, "locked")
}

func TestLoginEventsRequireIdentityAndIP(t *testing.T) {
	app, _, _ := newAPIApp(t)

	resp, err := app.Test(postJSON("http://gateway.local/api/v1/login-events", loginEventRequest{Identity: "x"}), 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStuffingReportForActiveAttack(t *testing.T) {
	app, analyzer, _ := newAPIApp(t)

	now := time.Now()
	for i := 0; i < 12; i++ {
		analyzer.TrackLoginAttempt(behavior.Attempt{
			Identity:  "target@example.com",
			IP:        fmt.Sprintf("198.51.100.%d", i%6+1),
			UserAgent: fmt.Sprintf("client-%d", i%9),
			Success:   false,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	req := httptest.NewRequest(fiber.MethodGet, "http://gateway.local/api/v1/identities/target@example.com/stuffing", nil)
	resp, err := app.Test(req, 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		IsStuffing   bool     `json:"is_stuffing"`
		Confidence   float64  `json:"confidence"`
		Indicators   []string `json:"indicators"`
		AnomalyScore float64  `json:"anomaly_score"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.IsStuffing)
	assert.GreaterOrEqual(t, report.Confidence, 60.0)
	assert.NotEmpty(t, report.Indicators)
}

func TestPolicyOverrideLifecycle(t *testing.T) {
	app, _, _ := newAPIApp(t)

	put := httptest.NewRequest(fiber.MethodPut, "http://gateway.local/api/v1/tenants/acme/policy",
		bytes.NewReader([]byte(`{"block_threshold":90,"enforcement_mode":"monitor"}`)))
	put.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(put, 5000)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var updated types.Policy
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Equal(t, 90.0, updated.BlockThreshold)
	assert.Equal(t, types.ModeMonitor, updated.EnforcementMode)
	assert.Equal(t, 60.0, updated.ChallengeThreshold, "unset fields inherit defaults")

	del := httptest.NewRequest(fiber.MethodDelete, "http://gateway.local/api/v1/tenants/acme/policy", nil)
	resp, err = app.Test(del, 5000)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	get := httptest.NewRequest(fiber.MethodGet, "http://gateway.local/api/v1/tenants/acme/policy", nil)
	resp, err = app.Test(get, 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var restored types.Policy
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&restored))
	assert.Equal(t, 80.0, restored.BlockThreshold)
}

func TestPolicyRejectsUnknownEnforcementMode(t *testing.T) {
	app, _, _ := newAPIApp(t)

	put := httptest.NewRequest(fiber.MethodPut, "http://gateway.local/api/v1/tenants/acme/policy",
		bytes.NewReader([]byte(`{"enforcement_mode":"shadow"}`)))
	put.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(put, 5000)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
