package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/locate-service/internal/api/http/handlers"
	"github.com/spec-kit/locate-service/internal/auth"
	"github.com/spec-kit/locate-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Alerts         *handlers.AlertsHandler
	Subscriptions  *handlers.SubscriptionsHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/responses", cfg.Tickets.RecordResponse)
	tickets.Post("/:id/transition", auth.RequireRole(domain.RoleOffice, domain.RoleSupervisor, domain.RoleAdmin), cfg.Tickets.Transition)
	tickets.Post("/:id/cancel", cfg.Tickets.CancelTicket)
	tickets.Post("/:id/renew", cfg.Tickets.RenewTicket)
	tickets.Post("/:id/conflicts/resolve", auth.RequireRole(domain.RoleSupervisor, domain.RoleAdmin), cfg.Tickets.ResolveConflict)
	tickets.Get("/:id/alerts", cfg.Alerts.TicketHistory)
	tickets.Get("/:id/acknowledgements", cfg.Alerts.TicketAcks)
	tickets.Post("/:id/audit-packs", auth.RequireRole(domain.RoleOffice, domain.RoleSupervisor, domain.RoleAdmin), cfg.Audit.Generate)
	tickets.Get("/:id/audit-packs", cfg.Audit.List)

	api.Get("/dig-status", cfg.Tickets.DigStatus)

	alerts := api.Group("/alerts")
	alerts.Get("", cfg.Alerts.Feed)
	alerts.Post("/:id/delivered", cfg.Alerts.Delivered)
	alerts.Post("/:id/opened", cfg.Alerts.Opened)
	alerts.Post("/:id/ack", cfg.Alerts.Acknowledge)

	subscriptions := api.Group("/subscriptions")
	subscriptions.Put("", cfg.Subscriptions.Save)
	subscriptions.Get("", cfg.Subscriptions.List)
	subscriptions.Delete("/:id", cfg.Subscriptions.Delete)

	audit := api.Group("/audit-packs")
	audit.Get("/:id", cfg.Audit.Get)
	audit.Get("/:id/payload", cfg.Audit.Download)
}
