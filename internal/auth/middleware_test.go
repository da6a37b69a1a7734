package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-identity/internal/domain"
	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

type stubLoader struct {
	identities map[string]*domain.Identity
	calls      int
}

func (s *stubLoader) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	s.calls++
	identity, ok := s.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func newTestApp(tm *TokenManager, loader IdentityLoader, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).SendString(fe.Message)
			}
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm, loader)
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Identity.Role)
	})
	app.Get("/protected", handlers...)
	return app
}

func bearer(t *testing.T, tm *TokenManager, identity *domain.Identity) string {
	t.Helper()
	session, err := tm.GenerateToken(identity, Evaluate(identity), domain.TokenContextStandard)
	require.NoError(t, err)
	return "Bearer " + session.Token
}

func doGet(t *testing.T, app *fiber.App, header string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestMiddlewareRefetchesIdentity(t *testing.T) {
	tm := NewTokenManager("secret", "", nil)
	identity := testIdentity()
	loader := &stubLoader{identities: map[string]*domain.Identity{identity.ID: identity}}
	app := newTestApp(tm, loader)

	header := bearer(t, tm, identity)

	// role changes after issuance must be visible on the next request
	loader.identities[identity.ID].Role = "viewer"

	resp := doGet(t, app, header)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, loader.calls)
}

func TestMiddlewareRejects(t *testing.T) {
	tm := NewTokenManager("secret", "", nil)
	identity := testIdentity()
	inactive := testIdentity()
	inactive.ID = "inactive-id"
	inactive.IsActive = false
	loader := &stubLoader{identities: map[string]*domain.Identity{identity.ID: identity, inactive.ID: inactive}}
	app := newTestApp(tm, loader)

	deleted := testIdentity()
	deleted.ID = "deleted-id"

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer abc"},
		{"deleted identity", bearer(t, tm, deleted)},
		{"inactive identity", bearer(t, tm, inactive)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGet(t, app, tt.header)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestMiddlewareExpiredToken(t *testing.T) {
	now := time.Now()
	issuer := NewTokenManager("secret", "", nil).WithClock(func() time.Time { return now.Add(-48 * time.Hour) })
	identity := testIdentity()
	loader := &stubLoader{identities: map[string]*domain.Identity{identity.ID: identity}}
	app := newTestApp(NewTokenManager("secret", "", nil), loader)

	resp := doGet(t, app, bearer(t, issuer, identity))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, loader.calls)
}

func TestRequirePermissionUsesStoreRecord(t *testing.T) {
	tm := NewTokenManager("secret", "", nil)
	identity := testIdentity()
	loader := &stubLoader{identities: map[string]*domain.Identity{identity.ID: identity}}
	app := newTestApp(tm, loader, RequirePermission(domain.ResourceProducts, domain.ActionRead))

	header := bearer(t, tm, identity)
	assert.Equal(t, http.StatusOK, doGet(t, app, header).StatusCode)

	// revoke in the store; the still-valid token must not keep the grant
	loader.identities[identity.ID].Permissions = nil
	assert.Equal(t, http.StatusForbidden, doGet(t, app, header).StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	tm := NewTokenManager("secret", "", nil)

	admin := testIdentity()
	admin.ID = "admin-id"
	admin.Kind = domain.KindAdmin
	admin.Role = "moderator"

	delegated := testIdentity()
	delegated.ID = "delegated-id"
	delegated.Kind = domain.KindCustomer
	delegated.Permissions = []domain.PermissionEntry{{Resource: domain.ResourceAdminManagement, Actions: []domain.Action{domain.ActionRead}}}

	super := testIdentity()
	super.ID = "super-id"
	super.Role = "admin"
	super.IsAdmin = true

	plain := testIdentity()

	loader := &stubLoader{identities: map[string]*domain.Identity{
		admin.ID: admin, delegated.ID: delegated, super.ID: super, plain.ID: plain,
	}}
	app := newTestApp(tm, loader, RequireAdmin())

	assert.Equal(t, http.StatusOK, doGet(t, app, bearer(t, tm, admin)).StatusCode)
	assert.Equal(t, http.StatusOK, doGet(t, app, bearer(t, tm, delegated)).StatusCode)
	assert.Equal(t, http.StatusOK, doGet(t, app, bearer(t, tm, super)).StatusCode)
	assert.Equal(t, http.StatusForbidden, doGet(t, app, bearer(t, tm, plain)).StatusCode)
}
