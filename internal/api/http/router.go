package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/blog-service/internal/api/http/handlers"
	"github.com/spec-kit/blog-service/internal/auth"
	"github.com/spec-kit/blog-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/login", cfg.Auth.UserLogin)
	authGroup.Post("/admins/login", cfg.Auth.AdminLogin)

	// logout stays outside the auth middleware: revoking a malformed or
	// expired token is an idempotent no-op, not an authentication failure
	authGroup.Post("/logout", cfg.Auth.Logout)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/me", cfg.Auth.Me)

	adminOnly := protected.Group("",
		auth.RequireNamespace(domain.NamespaceAdmin),
		auth.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))
	adminOnly.Post("/admins/revoke", cfg.Auth.Revoke)
}
