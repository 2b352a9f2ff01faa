package router

import (
	"net/http"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	handlers "github.com/vigilguard/vigil/pkg/handlers/http"
	"github.com/vigilguard/vigil/pkg/infra/events"
	"github.com/vigilguard/vigil/pkg/server/middleware"
	"github.com/vigilguard/vigil/pkg/version"
)

const (
	HealthPath    = "/health"
	PingPath      = "/__/ping"
	DecisionsPath = "/__/decisions"
)

type proxyRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
	hub                 *events.Hub
}

// NewProxyRouter wires the enforcement chain: system routes first, then the
// inspection middlewares, then the catch-all forwarder.
func NewProxyRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
	hub *events.Hub,
) ServerRouter {
	return &proxyRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
		hub:                 hub,
	}
}

func (r *proxyRouter) BuildRoutes(router *fiber.App) error {
	router.Get(HealthPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"version": version.GetInfo(),
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	router.Get(PingPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"message": "pong",
		})
	})

	// live decision feed for dashboards, attached before the inspection
	// chain so subscribers are never rate limited or scored
	if r.hub != nil {
		router.Get(DecisionsPath, websocket.New(
			r.hub.Handle,
			websocket.Config{
				HandshakeTimeout: 15 * time.Second,
				ReadBufferSize:   1024,
				WriteBufferSize:  1024,
			},
		))
	}

	router.Use(r.middlewareTransport.GetMiddlewares()...)

	router.Use(r.handlerTransport.ForwardedHandler.Handle)

	return nil
}
