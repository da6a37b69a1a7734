package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-identity/internal/api/dto"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/service"
	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

// InvitationHandler serves the staff invitation lifecycle.
type InvitationHandler struct {
	invites *service.InvitationService
}

// NewInvitationHandler constructs handler.
func NewInvitationHandler(invitationService *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invites: invitationService}
}

// Create handles POST /admin/invitations.
func (h *InvitationHandler) Create(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.CreateInviteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	invite, err := h.invites.CreateInvite(c.UserContext(), principal, service.CreateInviteInput{
		Email:       req.Email,
		Role:        domain.InviteRole(req.Role),
		Permissions: dto.ToPermissions(req.Permissions),
	})
	if err != nil {
		return serviceError(err, "invitation")
	}

	resp := dto.NewInvitationResponse(invite)
	resp.Token = invite.Token
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// List handles GET /admin/invitations.
func (h *InvitationHandler) List(c *fiber.Ctx) error {
	var status *domain.InviteStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.InviteStatus(raw)
		switch s {
		case domain.InviteStatusPending, domain.InviteStatusAccepted, domain.InviteStatusExpired, domain.InviteStatusCancelled:
			status = &s
		default:
			return apperrors.NewValidationError("unknown invitation status", map[string]any{"status": raw})
		}
	}

	limit, offset := parsePaging(c)
	invites, err := h.invites.ListInvites(c.UserContext(), status, limit, offset)
	if err != nil {
		return serviceError(err, "invitation")
	}

	items := make([]dto.InvitationResponse, 0, len(invites))
	for i := range invites {
		items = append(items, dto.NewInvitationResponse(&invites[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Cancel handles DELETE /admin/invitations/:id.
func (h *InvitationHandler) Cancel(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "invitation")
	if err != nil {
		return err
	}
	if err := h.invites.CancelInvite(c.UserContext(), principal, id); err != nil {
		return serviceError(err, "invitation")
	}
	return c.SendStatus(http.StatusNoContent)
}

// Get handles GET /auth/invitations/:token.
func (h *InvitationHandler) Get(c *fiber.Ctx) error {
	invite, err := h.invites.GetInvite(c.UserContext(), c.Params("token"))
	if err != nil {
		return serviceError(err, "invitation")
	}
	return c.JSON(fiber.Map{"data": dto.NewPublicInvitationResponse(invite)})
}

// Accept handles POST /auth/invitations/:token/accept.
func (h *InvitationHandler) Accept(c *fiber.Ctx) error {
	var req dto.AcceptInviteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	identity, err := h.invites.AcceptInvite(c.UserContext(), c.Params("token"), service.AcceptInviteInput{
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return serviceError(err, "invitation")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}
