package router

import (
	"github.com/gofiber/fiber/v2"
	handlers "github.com/vigilguard/vigil/pkg/handlers/http"
	"github.com/vigilguard/vigil/pkg/server/middleware"
)

type apiRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
}

// NewAPIRouter exposes the out-of-band API: request scoring, login event
// ingestion and per-tenant policy management.
func NewAPIRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
) ServerRouter {
	return &apiRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
}

func (r *apiRouter) BuildRoutes(router *fiber.App) error {
	router.Use(r.middlewareTransport.GetMiddlewares()...)

	api := router.Group("/api/v1")

	api.Post("/analyze", r.handlerTransport.AnalyzeHandler.Handle)

	api.Post("/login-events", r.handlerTransport.LoginEventHandler.Handle)
	api.Get("/identities/:identity/stuffing", r.handlerTransport.StuffingReportHandler.Handle)

	api.Get("/tenants/:tenant_id/policy", r.handlerTransport.GetPolicyHandler.Handle)
	api.Put("/tenants/:tenant_id/policy", r.handlerTransport.UpdatePolicyHandler.Handle)
	api.Delete("/tenants/:tenant_id/policy", r.handlerTransport.DeletePolicyHandler.Handle)

	return nil
}
