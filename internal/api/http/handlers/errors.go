package handlers

import (
	"errors"
	"net/http"

	"github.com/spec-kit/storefront-identity/internal/domain"
	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

var errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")

// credentialError collapses every authentication failure into one response
// so callers cannot tell unknown, inactive, locked and wrong-password apart.
func credentialError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInactive),
		errors.Is(err, domain.ErrLocked),
		errors.Is(err, domain.ErrNoCredential),
		errors.Is(err, domain.ErrInsufficientPermission):
		return errInvalidCredentials
	}
	return serviceError(err, "identity")
}

// serviceError maps domain sentinels onto HTTP errors.
func serviceError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, domain.ErrInsufficientPermission):
		return apperrors.NewForbidden("access denied", map[string]any{"reason": err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists):
		return apperrors.NewConflict(resource+" already exists", nil)
	case errors.Is(err, domain.ErrInviteExpired):
		return apperrors.NewGone("INVITE_EXPIRED", "invitation has expired")
	case errors.Is(err, domain.ErrInviteNotPending):
		return apperrors.NewDomainError("INVITE_NOT_PENDING", "invitation is no longer pending", http.StatusConflict, nil)
	case errors.Is(err, domain.ErrTokenExpired):
		return apperrors.NewGone("TOKEN_EXPIRED", "reset token has expired")
	case errors.Is(err, domain.ErrTokenInvalid):
		return apperrors.NewDomainError("TOKEN_INVALID", "reset token is invalid", http.StatusBadRequest, nil)
	case errors.Is(err, domain.ErrInactive):
		return apperrors.NewConflict(resource+" is inactive", nil)
	case errors.Is(err, domain.ErrPasswordUnchanged):
		return apperrors.NewValidationError(domain.ErrPasswordUnchanged.Error(), nil)
	case errors.Is(err, domain.ErrInvalidInput):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrLocked),
		errors.Is(err, domain.ErrNoCredential):
		return errInvalidCredentials
	}
	return apperrors.MapError(err)
}
