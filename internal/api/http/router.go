package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/storefront-identity/internal/api/http/handlers"
	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Invitations    *handlers.InvitationHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *RateLimiter
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	throttle := cfg.RateLimiter.Handler()

	authGroup := app.Group("/auth")
	authGroup.Post("/register", throttle, cfg.Auth.Register)
	authGroup.Post("/login", throttle, cfg.Auth.Login)
	authGroup.Post("/business/login", throttle, cfg.Auth.BusinessLogin)
	authGroup.Post("/admin/login", throttle, cfg.Auth.AdminLogin)
	authGroup.Post("/password/reset/request", throttle, cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", throttle, cfg.Auth.ConfirmPasswordReset)
	authGroup.Get("/invitations/:token", throttle, cfg.Invitations.Get)
	authGroup.Post("/invitations/:token/accept", throttle, cfg.Invitations.Accept)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Get("/me", cfg.Auth.Me)
	protected.Post("/password/change", throttle, cfg.Auth.ChangePassword)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/invitations",
		auth.RequirePermission(domain.ResourceAdminManagement, domain.ActionRead), cfg.Invitations.List)
	admin.Post("/invitations",
		auth.RequirePermission(domain.ResourceAdminManagement, domain.ActionCreate), cfg.Invitations.Create)
	admin.Delete("/invitations/:id",
		auth.RequirePermission(domain.ResourceAdminManagement, domain.ActionDelete), cfg.Invitations.Cancel)

	admin.Get("/identities",
		auth.RequirePermission(domain.ResourceUsers, domain.ActionRead), cfg.Admin.ListIdentities)
	admin.Get("/identities/:id",
		auth.RequirePermission(domain.ResourceUsers, domain.ActionRead), cfg.Admin.GetIdentity)
	admin.Post("/identities/:id/promote",
		auth.RequirePermission(domain.ResourceAdminManagement, domain.ActionUpdate), cfg.Admin.Promote)
	admin.Post("/identities/:id/demote",
		auth.RequirePermission(domain.ResourceAdminManagement, domain.ActionUpdate), cfg.Admin.Demote)
	admin.Put("/identities/:id/permissions",
		auth.RequirePermission(domain.ResourceAdminManagement, domain.ActionUpdate), cfg.Admin.UpdatePermissions)
	admin.Delete("/identities/:id",
		auth.RequirePermission(domain.ResourceUsers, domain.ActionDelete), cfg.Admin.DeleteIdentity)
}
