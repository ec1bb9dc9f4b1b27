package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/subscription-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Subscriptions *handlers.SubscriptionsHandler
	Groups        *handlers.SubscriptionGroupsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	// Public link-authenticated endpoints; the hash in the query string is
	// the only credential.
	app.Get("/subscriptions", cfg.Subscriptions.List)
	app.Post("/subscriptions", cfg.Subscriptions.Update)

	workspaces := app.Group("/workspaces/:workspaceId")
	workspaces.Put("/subscription-groups", cfg.Groups.Upsert)
	workspaces.Get("/users/:userId/subscription-link", cfg.Groups.ChangeURL)
}
