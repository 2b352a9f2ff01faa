package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	// Proxy
	ForwardedHandler Handler

	// Analysis
	AnalyzeHandler Handler

	// Behavior
	LoginEventHandler     Handler
	StuffingReportHandler Handler

	// Policy
	GetPolicyHandler    Handler
	UpdatePolicyHandler Handler
	DeletePolicyHandler Handler
}
