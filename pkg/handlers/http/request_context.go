package http

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/types"
)

// buildRequestContext snapshots the inbound fiber request into the immutable
// descriptor the pipeline consumes. Body and header bytes are copied because
// fasthttp reuses its buffers once the handler returns.
func buildRequestContext(c *fiber.Ctx) *types.RequestContext {
	query := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		query.Add(string(key), string(value))
	})

	headers := make(map[string][]string, len(c.GetReqHeaders()))
	for key, values := range c.GetReqHeaders() {
		copied := make([]string, len(values))
		copy(copied, values)
		headers[key] = copied
	}

	var body []byte
	if len(c.Body()) > 0 {
		body = make([]byte, len(c.Body()))
		copy(body, c.Body())
	}

	return &types.RequestContext{
		Method:    c.Method(),
		Path:      c.Path(),
		Query:     query,
		Headers:   headers,
		Body:      body,
		ClientIP:  middleware.ClientIP(c),
		TenantID:  middleware.TenantID(c),
		Timestamp: time.Now(),
	}
}
