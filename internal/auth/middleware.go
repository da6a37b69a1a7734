package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-identity/internal/domain"
	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

const principalKey = "auth_principal"

// IdentityLoader fetches the authoritative identity record.
type IdentityLoader interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
}

// Principal represents the authenticated caller. Claims are what the token
// asserted; Identity and Capabilities come from the store on this request.
type Principal struct {
	Claims       *Claims
	Identity     *domain.Identity
	Capabilities Capabilities
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens     *TokenManager
	identities IdentityLoader
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, identities IdentityLoader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, identities: identities}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return apperrors.NewDomainError("TOKEN_EXPIRED", "token expired", fiber.StatusUnauthorized, nil)
		}
		return apperrors.NewUnauthorized("invalid token")
	}

	identity, err := m.identities.GetByID(c.UserContext(), claims.IdentityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apperrors.NewUnauthorized("invalid token")
		}
		return apperrors.MapError(err)
	}
	if !identity.IsActive {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{
		Claims:       claims,
		Identity:     identity,
		Capabilities: Evaluate(identity),
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
