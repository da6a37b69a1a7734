package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-identity/internal/domain"
	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

// RequirePermission ensures the caller holds resource:action, or is a super admin.
func RequirePermission(resource domain.Resource, action domain.Action) fiber.Handler {
	required := domain.Grant{Resource: resource, Action: action}.String()
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !principal.Capabilities.HasPermission(resource, action) {
			return apperrors.NewForbidden("access denied", map[string]any{"required": required})
		}
		return c.Next()
	}
}

// RequireAdmin admits super admins, admin-kind identities and holders of
// admin_management:read.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !principal.Capabilities.AdminAccess {
			return apperrors.NewForbidden("access denied", map[string]any{
				"required": domain.Grant{Resource: domain.ResourceAdminManagement, Action: domain.ActionRead}.String(),
			})
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
