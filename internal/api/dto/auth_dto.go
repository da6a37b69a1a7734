package dto

import (
	"time"

	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/domain"
)

// RegisterRequest is the self-service signup payload.
type RegisterRequest struct {
	Kind         string `json:"kind" validate:"omitempty,oneof=customer business_owner"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Username     string `json:"username" validate:"omitempty,min=3,max=64"`
	Name         string `json:"name" validate:"required,max=128"`
	Password     string `json:"password" validate:"required,min=6,max=72"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	BusinessName string `json:"business_name" validate:"required_if=Kind business_owner,max=128"`
	BusinessType string `json:"business_type" validate:"omitempty,max=64"`
}

// LoginRequest accepts an email, a username, or both.
type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Username,omitempty,email"`
	Username string `json:"username" validate:"required_without=Email,omitempty,max=64"`
	Password string `json:"password" validate:"required"`
}

// PortalLoginRequest is used by the business and admin portals.
type PortalLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordChangeRequest is sent by an authenticated caller.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

// PasswordResetRequest starts the reset flow.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest redeems a reset token.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// AuthResponse carries the issued session.
type AuthResponse struct {
	Token     string              `json:"token"`
	Context   domain.TokenContext `json:"context"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// IdentityResponse is the public view of an identity. Credential state is
// never exposed.
type IdentityResponse struct {
	ID          string                   `json:"id"`
	Kind        domain.Kind              `json:"kind"`
	Email       string                   `json:"email"`
	Username    string                   `json:"username,omitempty"`
	Name        string                   `json:"name"`
	Role        string                   `json:"role"`
	IsAdmin     bool                     `json:"is_admin"`
	IsActive    bool                     `json:"is_active"`
	Permissions []domain.PermissionEntry `json:"permissions"`
	Profile     domain.Extension         `json:"profile"`
	LastLogin   *time.Time               `json:"last_login,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
}

// CapabilitiesResponse describes what the caller may do right now.
type CapabilitiesResponse struct {
	SuperAdmin  bool     `json:"super_admin"`
	AdminAccess bool     `json:"admin_access"`
	Grants      []string `json:"grants"`
}

// NewAuthResponse maps a session.
func NewAuthResponse(session *domain.Session) AuthResponse {
	return AuthResponse{Token: session.Token, Context: session.Context, ExpiresAt: session.ExpiresAt}
}

// NewIdentityResponse maps a stored identity.
func NewIdentityResponse(identity *domain.Identity) IdentityResponse {
	perms := identity.Permissions
	if perms == nil {
		perms = []domain.PermissionEntry{}
	}
	return IdentityResponse{
		ID:          identity.ID,
		Kind:        identity.Kind,
		Email:       identity.Email,
		Username:    identity.Username,
		Name:        identity.Name,
		Role:        identity.Role,
		IsAdmin:     identity.IsAdmin,
		IsActive:    identity.IsActive,
		Permissions: perms,
		Profile:     identity.Extension,
		LastLogin:   identity.LastLogin,
		CreatedAt:   identity.CreatedAt,
	}
}

// NewIdentityList maps a slice of identities.
func NewIdentityList(identities []domain.Identity) []IdentityResponse {
	out := make([]IdentityResponse, 0, len(identities))
	for i := range identities {
		out = append(out, NewIdentityResponse(&identities[i]))
	}
	return out
}

// NewCapabilitiesResponse flattens evaluated capabilities.
func NewCapabilitiesResponse(caps auth.Capabilities) CapabilitiesResponse {
	grants := make([]string, 0, len(caps.Grants))
	for _, g := range caps.Grants {
		grants = append(grants, g.String())
	}
	return CapabilitiesResponse{SuperAdmin: caps.SuperAdmin, AdminAccess: caps.AdminAccess, Grants: grants}
}
