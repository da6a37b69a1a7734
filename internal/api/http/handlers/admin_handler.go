package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-identity/internal/api/dto"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/service"
	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

// AdminHandler serves identity administration for the admin portal.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: adminService}
}

// ListIdentities handles GET /admin/identities. An email query parameter
// switches to a single admin-first lookup.
func (h *AdminHandler) ListIdentities(c *fiber.Ctx) error {
	if email := c.Query("email"); email != "" {
		identity, err := h.admin.LookupByEmail(c.UserContext(), email)
		if err != nil {
			return serviceError(err, "identity")
		}
		return c.JSON(fiber.Map{"data": []dto.IdentityResponse{dto.NewIdentityResponse(identity)}})
	}

	filter, err := parseIdentityFilter(c)
	if err != nil {
		return err
	}
	identities, err := h.admin.ListIdentities(c.UserContext(), filter)
	if err != nil {
		return serviceError(err, "identity")
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityList(identities)})
}

// GetIdentity handles GET /admin/identities/:id.
func (h *AdminHandler) GetIdentity(c *fiber.Ctx) error {
	id, err := pathID(c, "identity")
	if err != nil {
		return err
	}
	identity, err := h.admin.GetIdentity(c.UserContext(), id)
	if err != nil {
		return serviceError(err, "identity")
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}

// Promote handles POST /admin/identities/:id/promote.
func (h *AdminHandler) Promote(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "identity")
	if err != nil {
		return err
	}

	var req dto.PromoteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	identity, err := h.admin.Promote(c.UserContext(), principal, id, service.PromoteInput{
		Kind:        domain.Kind(req.Kind),
		AdminLevel:  domain.AdminLevel(req.AdminLevel),
		Department:  domain.Department(req.Department),
		Level:       domain.SupportLevel(req.Level),
		AccessLevel: domain.AccessLevel(req.AccessLevel),
		Permissions: dto.ToPermissions(req.Permissions),
	})
	if err != nil {
		return serviceError(err, "identity")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}

// Demote handles POST /admin/identities/:id/demote.
func (h *AdminHandler) Demote(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "identity")
	if err != nil {
		return err
	}
	identity, err := h.admin.Demote(c.UserContext(), principal, id)
	if err != nil {
		return serviceError(err, "identity")
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}

// UpdatePermissions handles PUT /admin/identities/:id/permissions.
func (h *AdminHandler) UpdatePermissions(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	id, err := pathID(c, "identity")
	if err != nil {
		return err
	}

	var req dto.UpdatePermissionsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	identity, err := h.admin.UpdatePermissions(c.UserContext(), principal, id, dto.ToPermissions(req.Permissions))
	if err != nil {
		return serviceError(err, "identity")
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}

// DeleteIdentity handles DELETE /admin/identities/:id.
func (h *AdminHandler) DeleteIdentity(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "identity")
	if err != nil {
		return err
	}
	if err := h.admin.DeleteIdentity(c.UserContext(), principal, id); err != nil {
		return serviceError(err, "identity")
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseIdentityFilter(c *fiber.Ctx) (domain.IdentityFilter, error) {
	var filter domain.IdentityFilter
	if raw := c.Query("kind"); raw != "" {
		kind := domain.Kind(raw)
		if !kind.Valid() {
			return filter, apperrors.NewValidationError("unknown kind", map[string]any{"kind": raw})
		}
		filter.Kind = &kind
	}
	filter.Active = parseBoolQuery(c, "active")
	filter.IsAdmin = parseBoolQuery(c, "is_admin")
	filter.Limit, filter.Offset = parsePaging(c)
	return filter, nil
}
