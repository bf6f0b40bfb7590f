package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-warden/internal/api/http/handlers"
	"github.com/spec-kit/ticket-warden/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Metrics)

	authn := cfg.AuthMiddleware.Handle
	app.Get("/tickets", authn, auth.RequireScope(auth.ScopeTicketsRead), cfg.Tickets.ListTickets)
	app.Delete("/tickets/:channel_id", authn, auth.RequireScope(auth.ScopeTicketsWrite), cfg.Tickets.RetireTicket)
	app.Post("/sweeps", authn, auth.RequireScope(auth.ScopeTicketsWrite), cfg.Tickets.RunSweep)
}
