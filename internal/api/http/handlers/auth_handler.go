package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-identity/internal/api/dto"
	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/service"
	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

const resetRequestedMessage = "if the account exists, a reset link has been sent"

// AuthHandler exposes signup, login and password endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: authService, logger: logger}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Kind:         domain.Kind(req.Kind),
		Email:        req.Email,
		Username:     req.Username,
		Name:         req.Name,
		Password:     req.Password,
		Phone:        req.Phone,
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
	})
	if err != nil {
		return serviceError(err, "identity")
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authPayload(result)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), domain.Identifier{Email: req.Email, Username: req.Username}, req.Password)
	if err != nil {
		return credentialError(err)
	}
	return c.JSON(fiber.Map{"data": authPayload(result)})
}

// BusinessLogin handles POST /auth/business/login.
func (h *AuthHandler) BusinessLogin(c *fiber.Ctx) error {
	var req dto.PortalLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.BusinessLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return credentialError(err)
	}
	return c.JSON(fiber.Map{"data": authPayload(result)})
}

// AdminLogin handles POST /auth/admin/login.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req dto.PortalLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.AdminLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return credentialError(err)
	}

	payload := authPayload(&result.AuthResult)
	payload["admin_level"] = result.AdminLevel
	return c.JSON(fiber.Map{"data": payload})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	identity, caps, err := h.auth.Me(c.UserContext(), principal.Identity.ID)
	if err != nil {
		return serviceError(err, "identity")
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"identity":     dto.NewIdentityResponse(identity),
			"capabilities": dto.NewCapabilitiesResponse(caps),
		},
	})
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	var req dto.PasswordChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), principal.Identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return credentialError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "password updated"}})
}

// RequestPasswordReset handles POST /auth/password/reset/request. The
// response does not depend on whether the address is registered.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.RequestPasswordReset(c.UserContext(), strings.TrimSpace(req.Email)); err != nil {
		h.logger.Warn("password reset request failed", zap.Error(err))
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"message": resetRequestedMessage}})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return serviceError(err, "reset token")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "password updated"}})
}

func authPayload(result *service.AuthResult) fiber.Map {
	return fiber.Map{
		"identity":     dto.NewIdentityResponse(result.Identity),
		"capabilities": dto.NewCapabilitiesResponse(result.Capabilities),
		"auth":         dto.NewAuthResponse(result.Session),
	}
}

func currentPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
