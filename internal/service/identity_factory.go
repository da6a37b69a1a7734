package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/repository"
)

// opaqueTokenBytes is the entropy of invitation and reset tokens.
const opaqueTokenBytes = 32

// identityFactory is the single creation pipeline shared by signup,
// invitation acceptance and promotion.
type identityFactory struct {
	identities repository.IdentityRepository
	resolver   *IdentityResolver
	bcryptCost int
}

type createOptions struct {
	password    string
	checkUnique bool
}

// create validates, hashes, assigns default permissions and persists.
func (f *identityFactory) create(ctx context.Context, identity *domain.Identity, opts createOptions) error {
	if !identity.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, identity.Kind)
	}
	identity.Email = domain.NormalizeEmail(identity.Email)
	identity.Username = strings.TrimSpace(identity.Username)
	if identity.Email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}

	if opts.checkUnique {
		exists, err := f.resolver.Exists(ctx, domain.Identifier{Email: identity.Email, Username: identity.Username})
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyExists
		}
	}

	if opts.password == "" && identity.PasswordHash == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if opts.password != "" {
		hash, err := auth.HashPassword(opts.password, f.bcryptCost)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		identity.PasswordHash = hash
	}
	if identity.Role == "" {
		identity.Role = identity.Kind.DefaultRole()
	}
	if err := auth.ValidatePermissions(identity.Permissions); err != nil {
		return err
	}
	auth.AssignDefaultPermissions(identity)

	return f.identities.Create(ctx, identity)
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
