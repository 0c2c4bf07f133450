package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modcenter/internal/api/http/handlers"
	"github.com/spec-kit/modcenter/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Moderators     *handlers.ModeratorsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.Token)

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleBot))
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	v1.Get("/channels/:channelID/ticket", cfg.Tickets.GetByChannel)

	tickets := v1.Group("/tickets/:id")
	tickets.Get("", cfg.Tickets.GetTicket)
	tickets.Get("/events", cfg.Tickets.ListEvents)
	tickets.Post("/claim", cfg.Tickets.Claim)
	tickets.Post("/close", cfg.Tickets.Close)
	tickets.Post("/transfer", cfg.Tickets.Transfer)
	tickets.Post("/archive", cfg.Tickets.Archive)
	tickets.Post("/auto-assign", cfg.Tickets.AutoAssign)

	guild := v1.Group("/guilds/:guildID")
	guild.Get("/ticket-config", cfg.Tickets.GetConfig)
	guild.Put("/ticket-config", adminOnly, cfg.Tickets.PutConfig)
	guild.Post("/tickets", cfg.Tickets.CreateTicket)
	guild.Get("/tickets/open", cfg.Tickets.GetOpenTicket)
	guild.Get("/tickets", cfg.Tickets.ListActive)
	guild.Post("/tickets/:id/assign", cfg.Tickets.Assign)
	guild.Get("/assignment/suggest", cfg.Tickets.Suggest)

	guild.Get("/moderators", cfg.Moderators.List)
	guild.Post("/moderators", adminOnly, cfg.Moderators.Add)
	guild.Delete("/moderators/:userID", adminOnly, cfg.Moderators.Remove)
	guild.Patch("/moderators/:userID/status", adminOnly, cfg.Moderators.SetStatus)
	guild.Patch("/moderators/:userID/opt-out", adminOnly, cfg.Moderators.SetOptOut)
	guild.Get("/moderators/:userID/stats", cfg.Moderators.Stats)
	guild.Get("/moderators/:userID/reputation", cfg.Moderators.Reputation)
	guild.Post("/moderators/:userID/burnout-check", cfg.Moderators.CheckBurnout)
	guild.Post("/moderators/:userID/reopens", cfg.Moderators.RecordReopen)
	guild.Post("/moderators/:userID/resolutions", cfg.Moderators.RecordResolution)

	guild.Get("/leaderboard", cfg.Moderators.Leaderboard)
	guild.Get("/dashboard", cfg.Moderators.Dashboard)
	guild.Get("/audit-logs", cfg.Moderators.AuditLogs)
}
