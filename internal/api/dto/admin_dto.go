package dto

import (
	"time"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

// PermissionEntryRequest is one resource with its granted actions.
type PermissionEntryRequest struct {
	Resource string   `json:"resource" validate:"required"`
	Actions  []string `json:"actions" validate:"required,min=1,dive,required"`
}

// CreateInviteRequest invites a new staff member.
type CreateInviteRequest struct {
	Email       string                   `json:"email" validate:"required,email,max=254"`
	Role        string                   `json:"role" validate:"required,oneof=admin manager support viewer"`
	Permissions []PermissionEntryRequest `json:"permissions" validate:"omitempty,dive"`
}

// AcceptInviteRequest carries the credentials chosen by the invitee.
type AcceptInviteRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=64"`
	Name     string `json:"name" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// PromoteRequest moves an identity into another kind.
type PromoteRequest struct {
	Kind        string                   `json:"kind" validate:"required,oneof=customer business_owner manager support viewer admin"`
	AdminLevel  string                   `json:"admin_level" validate:"omitempty,oneof=super_admin admin moderator"`
	Department  string                   `json:"department" validate:"omitempty,oneof=general sales inventory customer_service marketing"`
	Level       string                   `json:"level" validate:"omitempty,oneof=tier1 tier2 tier3 supervisor"`
	AccessLevel string                   `json:"access_level" validate:"omitempty,oneof=basic advanced full"`
	Permissions []PermissionEntryRequest `json:"permissions" validate:"omitempty,dive"`
}

// UpdatePermissionsRequest replaces an identity's explicit grants.
type UpdatePermissionsRequest struct {
	Permissions []PermissionEntryRequest `json:"permissions" validate:"required,dive"`
}

// InvitationResponse is the admin view of an invitation.
type InvitationResponse struct {
	ID          string                   `json:"id"`
	Email       string                   `json:"email"`
	Role        domain.InviteRole        `json:"role"`
	Permissions []domain.PermissionEntry `json:"permissions"`
	Status      domain.InviteStatus      `json:"status"`
	InvitedBy   string                   `json:"invited_by"`
	ExpiresAt   time.Time                `json:"expires_at"`
	AcceptedAt  *time.Time               `json:"accepted_at,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	// Token is only returned to the inviting admin on creation.
	Token string `json:"token,omitempty"`
}

// PublicInvitationResponse is what an invitee sees before accepting.
type PublicInvitationResponse struct {
	Email     string              `json:"email"`
	Role      domain.InviteRole   `json:"role"`
	Status    domain.InviteStatus `json:"status"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// ToPermissions converts request entries into domain entries. Nil stays nil
// so callers can tell "not provided" from "empty".
func ToPermissions(entries []PermissionEntryRequest) []domain.PermissionEntry {
	if entries == nil {
		return nil
	}
	out := make([]domain.PermissionEntry, 0, len(entries))
	for _, e := range entries {
		actions := make([]domain.Action, 0, len(e.Actions))
		for _, a := range e.Actions {
			actions = append(actions, domain.Action(a))
		}
		out = append(out, domain.PermissionEntry{Resource: domain.Resource(e.Resource), Actions: actions})
	}
	return out
}

// NewInvitationResponse maps an invitation without its token.
func NewInvitationResponse(invite *domain.AdminInvitation) InvitationResponse {
	perms := invite.Permissions
	if perms == nil {
		perms = []domain.PermissionEntry{}
	}
	return InvitationResponse{
		ID:          invite.ID,
		Email:       invite.Email,
		Role:        invite.Role,
		Permissions: perms,
		Status:      invite.Status,
		InvitedBy:   invite.InvitedBy,
		ExpiresAt:   invite.ExpiresAt,
		AcceptedAt:  invite.AcceptedAt,
		CreatedAt:   invite.CreatedAt,
	}
}

// NewPublicInvitationResponse maps an invitation for the invitee.
func NewPublicInvitationResponse(invite *domain.AdminInvitation) PublicInvitationResponse {
	return PublicInvitationResponse{Email: invite.Email, Role: invite.Role, Status: invite.Status, ExpiresAt: invite.ExpiresAt}
}
