package service

import (
	"context"
	"errors"

	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/repository"
)

// LoginPrecedence orders kinds for storefront and business logins.
var LoginPrecedence = []domain.Kind{
	domain.KindCustomer,
	domain.KindBusinessOwner,
	domain.KindManager,
	domain.KindSupport,
	domain.KindViewer,
	domain.KindAdmin,
}

// AdminPortalPrecedence checks the admin kind before everything else.
var AdminPortalPrecedence = []domain.Kind{
	domain.KindAdmin,
	domain.KindCustomer,
	domain.KindBusinessOwner,
	domain.KindManager,
	domain.KindSupport,
	domain.KindViewer,
}

// IdentityResolver finds the single identity an identifier refers to.
type IdentityResolver struct {
	identities repository.IdentityRepository
}

// NewIdentityResolver constructs the resolver.
func NewIdentityResolver(identities repository.IdentityRepository) *IdentityResolver {
	return &IdentityResolver{identities: identities}
}

// Resolve matches email OR username and returns the first hit in precedence
// order. A miss is reported as domain.ErrNotFound.
func (r *IdentityResolver) Resolve(ctx context.Context, identifier domain.Identifier, precedence []domain.Kind) (*domain.Identity, error) {
	identifier.Email = domain.NormalizeEmail(identifier.Email)
	if identifier.Empty() {
		return nil, domain.ErrNotFound
	}
	return r.identities.FindOne(ctx, identifier, precedence)
}

// Exists reports whether any identity of any kind, active or not, holds the
// email or username.
func (r *IdentityResolver) Exists(ctx context.Context, identifier domain.Identifier) (bool, error) {
	_, err := r.Resolve(ctx, identifier, domain.AllKinds)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
