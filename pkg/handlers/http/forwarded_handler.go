package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/vigilguard/vigil/pkg/app/analysis"
	"github.com/vigilguard/vigil/pkg/common"
	"github.com/vigilguard/vigil/pkg/config"
	"github.com/vigilguard/vigil/pkg/infra/httpx"
	"github.com/vigilguard/vigil/pkg/infra/prometheus"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/types"
)

// hop-by-hop headers are scoped to one connection and must not cross the
// proxy in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type forwardedHandler struct {
	logger   *logrus.Logger
	pipeline *analysis.Pipeline
	client   *fasthttp.Client
	breaker  httpx.CircuitBreaker
	baseURL  string
	timeout  time.Duration
}

func NewForwardedHandler(
	logger *logrus.Logger,
	pipeline *analysis.Pipeline,
	cfg *config.Config,
) Handler {
	client := &fasthttp.Client{
		ReadTimeout:                   60 * time.Second,
		WriteTimeout:                  60 * time.Second,
		MaxConnsPerHost:               16384,
		MaxIdleConnDuration:           120 * time.Second,
		ReadBufferSize:                32768,
		WriteBufferSize:               32768,
		NoDefaultUserAgentHeader:      true,
		DisableHeaderNamesNormalizing: true,
		DisablePathNormalizing:        true,
	}

	return &forwardedHandler{
		logger:   logger,
		pipeline: pipeline,
		client:   client,
		breaker: httpx.NewCircuitBreaker(httpx.BreakerSettings{
			Name:        "upstream",
			Cooldown:    30 * time.Second,
			MaxFailures: 5,
		}),
		baseURL: strings.TrimSuffix(cfg.Upstream.BaseURL, "/"),
		timeout: cfg.Upstream.Timeout,
	}
}

func (h *forwardedHandler) Handle(c *fiber.Ctx) error {
	reqCtx := buildRequestContext(c)
	result := h.pipeline.Analyze(c.Context(), reqCtx)

	switch result.Action {
	case types.ActionBlock:
		return h.deny(c, fiber.StatusForbidden, "request blocked", result)
	case types.ActionChallenge:
		return h.deny(c, fiber.StatusTooManyRequests, "challenge required", result)
	}

	return h.forward(c, reqCtx)
}

// deny answers for blocked and challenged requests. The body carries the
// combined score and rule matches so operators can triage the decision
// without consulting the gateway logs.
func (h *forwardedHandler) deny(c *fiber.Ctx, status int, message string, result *types.ScoringResult) error {
	matches := result.Matches
	if matches == nil {
		matches = []types.RuleMatch{}
	}
	return c.Status(status).JSON(fiber.Map{
		"error":      message,
		"request_id": middleware.RequestID(c),
		"risk_level": result.RiskLevel,
		"score":      result.CombinedScore,
		"matches":    matches,
	})
}

func (h *forwardedHandler) forward(c *fiber.Ctx, reqCtx *types.RequestContext) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	h.buildUpstreamRequest(c, req, reqCtx)

	start := time.Now()
	err := h.breaker.Execute(func() error {
		return h.client.DoTimeout(req, resp, h.timeout)
	})
	if err != nil {
		if httpx.IsOpen(err) {
			h.logger.WithField("request_id", middleware.RequestID(c)).Warn("upstream breaker open")
		} else {
			h.logger.WithError(err).WithField("request_id", middleware.RequestID(c)).Error("upstream request failed")
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":      types.ErrUpstream.Error(),
			"request_id": middleware.RequestID(c),
		})
	}

	if prometheus.Config.EnableUpstreamLatency {
		pathLabel := ""
		if prometheus.Config.EnablePerPath {
			pathLabel = reqCtx.Path
		}
		prometheus.UpstreamLatency.
			WithLabelValues(reqCtx.TenantID, pathLabel).
			Observe(float64(time.Since(start).Milliseconds()))
	}

	return h.relayResponse(c, resp)
}

func (h *forwardedHandler) buildUpstreamRequest(c *fiber.Ctx, req *fasthttp.Request, reqCtx *types.RequestContext) {
	target := h.baseURL + reqCtx.Path
	if encoded := reqCtx.Query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req.SetRequestURI(target)
	req.Header.SetMethod(reqCtx.Method)
	if len(reqCtx.Body) > 0 {
		req.SetBodyRaw(reqCtx.Body)
	}

	for key, values := range reqCtx.Headers {
		if strings.EqualFold(key, "Host") || isHopByHop(key) {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if prior := reqCtx.Header(common.ForwardedForHeader); prior != "" {
		req.Header.Set(common.ForwardedForHeader, prior+", "+reqCtx.ClientIP)
	} else {
		req.Header.Set(common.ForwardedForHeader, reqCtx.ClientIP)
	}
	req.Header.Set(common.ForwardedProtoHeader, c.Protocol())
	req.Header.Set(common.RequestIDHeader, middleware.RequestID(c))
}

func (h *forwardedHandler) relayResponse(c *fiber.Ctx, resp *fasthttp.Response) error {
	resp.Header.CopyTo(&c.Context().Response.Header)
	for _, header := range hopByHopHeaders {
		c.Context().Response.Header.Del(header)
	}
	c.Status(resp.StatusCode())

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return c.Send(body)
}

func isHopByHop(key string) bool {
	for _, header := range hopByHopHeaders {
		if strings.EqualFold(key, header) {
			return true
		}
	}
	return false
}
