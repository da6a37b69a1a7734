package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-identity/internal/domain"
)

func testIdentity() *domain.Identity {
	return &domain.Identity{
		ID:       "0b6c2f0e-1111-4c1e-9f00-000000000001",
		Kind:     domain.KindManager,
		Email:    "m@example.com",
		Username: "mgr",
		Role:     "manager",
		Permissions: []domain.PermissionEntry{
			{Resource: domain.ResourceProducts, Actions: []domain.Action{domain.ActionRead}},
		},
		IsActive: true,
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", "storefront", nil).WithClock(func() time.Time { return now })
	identity := testIdentity()

	session, err := tm.GenerateToken(identity, Evaluate(identity), domain.TokenContextStandard)
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), session.ExpiresAt)

	claims, err := tm.ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, claims.IdentityID)
	assert.Equal(t, identity.ID, claims.Subject)
	assert.Equal(t, domain.KindManager, claims.Kind)
	assert.Equal(t, "manager", claims.Role)
	assert.Equal(t, domain.TokenContextStandard, claims.Context)
	assert.Equal(t, identity.Permissions, claims.Permissions)
}

func TestTokenLifetimeByContext(t *testing.T) {
	tm := NewTokenManager("secret", "", nil)

	assert.Equal(t, 24*time.Hour, tm.TTL(domain.TokenContextStandard))
	assert.Equal(t, 7*24*time.Hour, tm.TTL(domain.TokenContextBusiness))
	assert.Equal(t, 7*24*time.Hour, tm.TTL(domain.TokenContextAdminPortal))
	assert.Equal(t, 24*time.Hour, tm.TTL("unknown"))

	custom := NewTokenManager("secret", "", TokenTTLs{domain.TokenContextStandard: time.Hour})
	assert.Equal(t, time.Hour, custom.TTL(domain.TokenContextStandard))
	assert.Equal(t, 7*24*time.Hour, custom.TTL(domain.TokenContextBusiness))
}

func TestParseTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", "storefront", nil).WithClock(func() time.Time { return now })
	identity := testIdentity()

	session, err := tm.GenerateToken(identity, Evaluate(identity), domain.TokenContextStandard)
	require.NoError(t, err)

	tm.WithClock(func() time.Time { return now.Add(25 * time.Hour) })
	_, err = tm.ParseToken(session.Token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestParseTokenInvalid(t *testing.T) {
	tm := NewTokenManager("secret", "storefront", nil)
	other := NewTokenManager("other-secret", "storefront", nil)
	identity := testIdentity()

	session, err := other.GenerateToken(identity, Evaluate(identity), domain.TokenContextStandard)
	require.NoError(t, err)

	_, err = tm.ParseToken(session.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = tm.ParseToken("not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	wrongIssuer := NewTokenManager("secret", "elsewhere", nil)
	session, err = wrongIssuer.GenerateToken(identity, Evaluate(identity), domain.TokenContextStandard)
	require.NoError(t, err)
	_, err = tm.ParseToken(session.Token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestSuperAdminTokenCarriesFullMatrix(t *testing.T) {
	tm := NewTokenManager("secret", "", nil)
	flagged := testIdentity()
	flagged.Role = "admin"
	flagged.IsAdmin = true
	record := &domain.Identity{
		ID:        "admin-1",
		Kind:      domain.KindAdmin,
		Email:     "root@shop.test",
		Extension: domain.Extension{Admin: &domain.AdminProfile{SuperAdmin: true}},
	}

	for _, identity := range []*domain.Identity{flagged, record} {
		session, err := tm.GenerateToken(identity, Evaluate(identity), domain.TokenContextAdminPortal)
		require.NoError(t, err)

		claims, err := tm.ParseToken(session.Token)
		require.NoError(t, err)
		assert.True(t, claims.SuperAdmin)
		assert.Len(t, claims.Permissions, len(domain.AllResources))
		for _, entry := range claims.Permissions {
			assert.ElementsMatch(t, domain.AllActions, entry.Actions, string(entry.Resource))
		}
		assert.Equal(t, domain.TokenContextAdminPortal, claims.Context)
	}
}

func TestGenerateTokenRequiresIdentity(t *testing.T) {
	tm := NewTokenManager("secret", "", nil)
	_, err := tm.GenerateToken(&domain.Identity{}, Capabilities{}, domain.TokenContextStandard)
	assert.Error(t, err)
}
