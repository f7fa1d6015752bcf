package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-tracker/internal/api/http/handlers"
)

// EditIssuePath is the issue form endpoint; the action query parameter selects the operation.
const EditIssuePath = "/issue_tracker/ajax/EditIssue"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Issues         *handlers.IssuesHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	// The .php path keeps links in previously sent notification emails working.
	for _, path := range []string{EditIssuePath, EditIssuePath + ".php"} {
		app.Get(path, cfg.AuthMiddleware, cfg.Issues.Get)
		app.Post(path, cfg.AuthMiddleware, cfg.Issues.Post)
	}
}
