package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/storefront-identity/internal/api/http/handlers"
	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/config"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/events"
	"github.com/spec-kit/storefront-identity/internal/observability"
	"github.com/spec-kit/storefront-identity/internal/repository/memory"
	"github.com/spec-kit/storefront-identity/internal/service"
)

const rootPassword = "root-password-1"

type testServer struct {
	app        *fiber.App
	identities *memory.IdentityRepository
}

type serverOptions struct {
	production bool
	limiter    *RateLimiter
	health     []handlers.Dependency
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{Name: "storefront-identity", Env: "test", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			Issuer:                  "storefront-identity",
			BcryptCost:              bcrypt.MinCost,
			StandardTokenTTLHours:   24,
			BusinessTokenTTLHours:   24 * 7,
			AdminTokenTTLHours:      24 * 7,
			LockoutThreshold:        5,
			LockoutMinutes:          120,
			PasswordResetTTLMinutes: 60,
			InviteTTLHours:          24 * 7,
		},
	}
	if opts.production {
		cfg.App.Env = "production"
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	identities := memory.NewIdentityRepository()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		IdentityRepo:      identities,
		PasswordResetRepo: memory.NewPasswordResetRepository(),
		Dispatcher:        dispatcher,
		Logger:            logger,
		Metrics:           metrics,
		Background:        func(fn func()) { fn() },
	})
	invitationService := service.NewInvitationService(cfg, service.InvitationDependencies{
		InvitationRepo: memory.NewInvitationRepository(),
		IdentityRepo:   identities,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
	})
	adminService := service.NewAdminService(cfg, service.AdminDependencies{
		IdentityRepo: identities,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	limiter := opts.limiter
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{Production: cfg.App.IsProduction()})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, opts.health...),
		Auth:           handlers.NewAuthHandler(authService, logger),
		Invitations:    handlers.NewInvitationHandler(invitationService),
		Admin:          handlers.NewAdminHandler(adminService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), identities),
		RateLimiter:    limiter,
		Metrics:        metrics,
	})

	return &testServer{app: app, identities: identities}
}

func (s *testServer) seedSuperAdmin(t *testing.T) *domain.Identity {
	t.Helper()
	hash, err := auth.HashPassword(rootPassword, bcrypt.MinCost)
	require.NoError(t, err)
	root := &domain.Identity{
		Kind:         domain.KindAdmin,
		Email:        "root@shop.test",
		Name:         "Root",
		PasswordHash: hash,
		Role:         "admin",
		IsAdmin:      true,
		IsActive:     true,
		Extension:    domain.Extension{Admin: &domain.AdminProfile{AdminLevel: domain.AdminLevelSuperAdmin, SuperAdmin: true}},
	}
	require.NoError(t, s.identities.Create(context.Background(), root))
	return root
}

type response struct {
	status int
	header map[string]string
	body   map[string]any
}

func (r response) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (r response) errorBody() map[string]any {
	body, _ := r.body["error"].(map[string]any)
	return body
}

func (s *testServer) do(t *testing.T, method, path string, payload any, token string) response {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, header: map[string]string{}}
	for _, key := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", fiber.HeaderRetryAfter} {
		out.header[key] = resp.Header.Get(key)
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func (s *testServer) login(t *testing.T, path string, payload map[string]any) string {
	t.Helper()
	resp := s.do(t, fiber.MethodPost, path, payload, "")
	require.Equal(t, fiber.StatusOK, resp.status, "%v", resp.body)
	authBody := resp.data()["auth"].(map[string]any)
	return authBody["token"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, serverOptions{health: []handlers.Dependency{
		{Name: "postgres", Check: pingerFunc(func(context.Context) error { return nil })},
		{Name: "redis", Check: pingerFunc(func(context.Context) error { return errors.New("down") }), Optional: true},
	}})

	live := srv.do(t, fiber.MethodGet, "/health/live", nil, "")
	assert.Equal(t, fiber.StatusOK, live.status)
	assert.Equal(t, "alive", live.body["status"])

	ready := srv.do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusOK, ready.status)
	deps := ready.body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Equal(t, "down", deps["redis"])
}

func TestReadyFailsOnRequiredDependency(t *testing.T) {
	srv := newTestServer(t, serverOptions{health: []handlers.Dependency{
		{Name: "postgres", Check: pingerFunc(func(context.Context) error { return errors.New("refused") })},
	}})

	ready := srv.do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, ready.status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", ready.errorBody()["code"])
}

func TestRegisterLoginAndMe(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	created := srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"email":    "Ada@Shop.test",
		"name":     "Ada",
		"password": "correct-horse",
	}, "")
	require.Equal(t, fiber.StatusCreated, created.status, "%v", created.body)
	identity := created.data()["identity"].(map[string]any)
	assert.Equal(t, "ada@shop.test", identity["email"])
	assert.Equal(t, "customer", identity["kind"])
	assert.NotContains(t, identity, "password_hash")
	assert.Equal(t, "standard", created.data()["auth"].(map[string]any)["context"])

	token := srv.login(t, "/auth/login", map[string]any{"email": "ada@shop.test", "password": "correct-horse"})

	me := srv.do(t, fiber.MethodGet, "/auth/me", nil, token)
	require.Equal(t, fiber.StatusOK, me.status)
	assert.Equal(t, identity["id"], me.data()["identity"].(map[string]any)["id"])
	caps := me.data()["capabilities"].(map[string]any)
	assert.Equal(t, false, caps["super_admin"])
	assert.NotEmpty(t, caps["grants"])

	dup := srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"email": "ada@shop.test", "name": "Ada", "password": "correct-horse",
	}, "")
	assert.Equal(t, fiber.StatusConflict, dup.status)
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	resp := srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"kind":     "business_owner",
		"name":     "Shop",
		"password": "short",
	}, "")
	require.Equal(t, fiber.StatusBadRequest, resp.status)
	errBody := resp.errorBody()
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Equal(t, "required", details["email"])
	assert.Equal(t, "min", details["password"])
	assert.Equal(t, "required_if", details["business_name"])

	admin := srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"kind": "admin", "email": "x@shop.test", "name": "X", "password": "long-enough",
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, admin.status)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.seedSuperAdmin(t)
	srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"email": "bob@shop.test", "name": "Bob", "password": "bob-password",
	}, "")

	cases := []struct {
		name    string
		path    string
		payload map[string]any
	}{
		{"wrong password", "/auth/login", map[string]any{"email": "bob@shop.test", "password": "nope-nope"}},
		{"unknown email", "/auth/login", map[string]any{"email": "ghost@shop.test", "password": "nope-nope"}},
		{"unknown username", "/auth/login", map[string]any{"username": "ghost", "password": "nope-nope"}},
		{"customer at admin portal", "/auth/admin/login", map[string]any{"email": "bob@shop.test", "password": "bob-password"}},
		{"customer at business portal", "/auth/business/login", map[string]any{"email": "bob@shop.test", "password": "bob-password"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := srv.do(t, fiber.MethodPost, tc.path, tc.payload, "")
			assert.Equal(t, fiber.StatusUnauthorized, resp.status)
			assert.Equal(t, map[string]any{"code": "UNAUTHORIZED", "message": "invalid credentials"}, resp.errorBody())
		})
	}
}

func TestAdminLoginReportsLevel(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.seedSuperAdmin(t)

	resp := srv.do(t, fiber.MethodPost, "/auth/admin/login", map[string]any{"email": "root@shop.test", "password": rootPassword}, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "super_admin", resp.data()["admin_level"])
	assert.Equal(t, "admin_portal", resp.data()["auth"].(map[string]any)["context"])
}

func TestAdminRoutesEnforceAccess(t *testing.T) {
	for _, production := range []bool{false, true} {
		srv := newTestServer(t, serverOptions{production: production})
		srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
			"email": "carl@shop.test", "name": "Carl", "password": "carl-password",
		}, "")
		token := srv.login(t, "/auth/login", map[string]any{"email": "carl@shop.test", "password": "carl-password"})

		anonymous := srv.do(t, fiber.MethodGet, "/admin/identities", nil, "")
		assert.Equal(t, fiber.StatusUnauthorized, anonymous.status)

		denied := srv.do(t, fiber.MethodGet, "/admin/identities", nil, token)
		require.Equal(t, fiber.StatusForbidden, denied.status)
		assert.Equal(t, "access denied", denied.errorBody()["message"])
		if production {
			assert.NotContains(t, denied.errorBody(), "details")
		} else {
			assert.Equal(t, "admin_management:read", denied.errorBody()["details"].(map[string]any)["required"])
		}
	}
}

func TestInvitationLifecycle(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.seedSuperAdmin(t)
	rootToken := srv.login(t, "/auth/admin/login", map[string]any{"email": "root@shop.test", "password": rootPassword})

	created := srv.do(t, fiber.MethodPost, "/admin/invitations", map[string]any{
		"email": "mia@shop.test",
		"role":  "manager",
	}, rootToken)
	require.Equal(t, fiber.StatusCreated, created.status, "%v", created.body)
	inviteToken := created.data()["token"].(string)
	assert.Len(t, inviteToken, 64)
	assert.Equal(t, "pending", created.data()["status"])

	public := srv.do(t, fiber.MethodGet, "/auth/invitations/"+inviteToken, nil, "")
	require.Equal(t, fiber.StatusOK, public.status)
	assert.Equal(t, "mia@shop.test", public.data()["email"])
	assert.NotContains(t, public.data(), "token")

	listed := srv.do(t, fiber.MethodGet, "/admin/invitations?status=pending", nil, rootToken)
	require.Equal(t, fiber.StatusOK, listed.status)
	items := listed.body["data"].([]any)
	require.Len(t, items, 1)
	assert.NotContains(t, items[0].(map[string]any), "token")

	accepted := srv.do(t, fiber.MethodPost, "/auth/invitations/"+inviteToken+"/accept", map[string]any{
		"name":     "Mia",
		"password": "mia-password",
	}, "")
	require.Equal(t, fiber.StatusCreated, accepted.status, "%v", accepted.body)
	assert.Equal(t, "manager", accepted.data()["kind"])

	again := srv.do(t, fiber.MethodPost, "/auth/invitations/"+inviteToken+"/accept", map[string]any{
		"name":     "Mia",
		"password": "mia-password",
	}, "")
	assert.Equal(t, fiber.StatusConflict, again.status)
	assert.Equal(t, "INVITE_NOT_PENDING", again.errorBody()["code"])

	srv.login(t, "/auth/login", map[string]any{"email": "mia@shop.test", "password": "mia-password"})

	missing := srv.do(t, fiber.MethodGet, "/auth/invitations/does-not-exist", nil, "")
	assert.Equal(t, fiber.StatusNotFound, missing.status)
}

func TestIdentityAdministration(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	root := srv.seedSuperAdmin(t)
	rootToken := srv.login(t, "/auth/admin/login", map[string]any{"email": "root@shop.test", "password": rootPassword})

	created := srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"email": "dan@shop.test", "name": "Dan", "password": "dan-password",
	}, "")
	require.Equal(t, fiber.StatusCreated, created.status)
	danID := created.data()["identity"].(map[string]any)["id"].(string)

	list := srv.do(t, fiber.MethodGet, "/admin/identities?kind=customer", nil, rootToken)
	require.Equal(t, fiber.StatusOK, list.status)
	assert.Len(t, list.body["data"].([]any), 1)

	badKind := srv.do(t, fiber.MethodGet, "/admin/identities?kind=wizard", nil, rootToken)
	assert.Equal(t, fiber.StatusBadRequest, badKind.status)

	promoted := srv.do(t, fiber.MethodPost, "/admin/identities/"+danID+"/promote", map[string]any{
		"kind":       "manager",
		"department": "sales",
	}, rootToken)
	require.Equal(t, fiber.StatusCreated, promoted.status, "%v", promoted.body)
	managerID := promoted.data()["id"].(string)
	assert.NotEqual(t, danID, managerID)

	old := srv.do(t, fiber.MethodGet, "/admin/identities/"+danID, nil, rootToken)
	require.Equal(t, fiber.StatusOK, old.status)
	assert.Equal(t, false, old.data()["is_active"])

	srv.login(t, "/auth/login", map[string]any{"email": "dan@shop.test", "password": "dan-password"})

	perms := srv.do(t, fiber.MethodPut, "/admin/identities/"+managerID+"/permissions", map[string]any{
		"permissions": []map[string]any{{"resource": "orders", "actions": []string{"read", "export"}}},
	}, rootToken)
	require.Equal(t, fiber.StatusOK, perms.status, "%v", perms.body)
	assert.Len(t, perms.data()["permissions"].([]any), 1)

	invalid := srv.do(t, fiber.MethodPut, "/admin/identities/"+managerID+"/permissions", map[string]any{
		"permissions": []map[string]any{{"resource": "spaceships", "actions": []string{"fly"}}},
	}, rootToken)
	assert.Equal(t, fiber.StatusBadRequest, invalid.status)

	self := srv.do(t, fiber.MethodDelete, "/admin/identities/"+root.ID, nil, rootToken)
	assert.Equal(t, fiber.StatusForbidden, self.status)

	deleted := srv.do(t, fiber.MethodDelete, "/admin/identities/"+managerID, nil, rootToken)
	assert.Equal(t, fiber.StatusNoContent, deleted.status)

	gone := srv.do(t, fiber.MethodGet, "/admin/identities/"+managerID, nil, rootToken)
	assert.Equal(t, fiber.StatusNotFound, gone.status)
}

func TestPasswordResetResponses(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"email": "eve@shop.test", "name": "Eve", "password": "eve-password",
	}, "")

	known := srv.do(t, fiber.MethodPost, "/auth/password/reset/request", map[string]any{"email": "eve@shop.test"}, "")
	unknown := srv.do(t, fiber.MethodPost, "/auth/password/reset/request", map[string]any{"email": "nobody@shop.test"}, "")
	assert.Equal(t, fiber.StatusAccepted, known.status)
	assert.Equal(t, known.status, unknown.status)
	assert.Equal(t, known.body, unknown.body)

	bogus := srv.do(t, fiber.MethodPost, "/auth/password/reset/confirm", map[string]any{
		"token": "bogus", "new_password": "brand-new-password",
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, bogus.status)
	assert.Equal(t, "TOKEN_INVALID", bogus.errorBody()["code"])
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.do(t, fiber.MethodPost, "/auth/register", map[string]any{
		"email": "fay@shop.test", "name": "Fay", "password": "fay-password",
	}, "")
	token := srv.login(t, "/auth/login", map[string]any{"email": "fay@shop.test", "password": "fay-password"})

	wrong := srv.do(t, fiber.MethodPost, "/auth/password/change", map[string]any{
		"current_password": "not-it", "new_password": "fay-password-2",
	}, token)
	assert.Equal(t, fiber.StatusUnauthorized, wrong.status)

	same := srv.do(t, fiber.MethodPost, "/auth/password/change", map[string]any{
		"current_password": "fay-password", "new_password": "fay-password",
	}, token)
	assert.Equal(t, fiber.StatusBadRequest, same.status)

	ok := srv.do(t, fiber.MethodPost, "/auth/password/change", map[string]any{
		"current_password": "fay-password", "new_password": "fay-password-2",
	}, token)
	require.Equal(t, fiber.StatusOK, ok.status)

	srv.login(t, "/auth/login", map[string]any{"email": "fay@shop.test", "password": "fay-password-2"})
}

func TestLoginIsRateLimited(t *testing.T) {
	srv := newTestServer(t, serverOptions{limiter: NewRateLimiter(0.001, 2)})
	payload := map[string]any{"email": "nobody@shop.test", "password": "whatever1"}

	first := srv.do(t, fiber.MethodPost, "/auth/login", payload, "")
	assert.Equal(t, fiber.StatusUnauthorized, first.status)
	assert.Equal(t, "2", first.header["X-RateLimit-Limit"])

	srv.do(t, fiber.MethodPost, "/auth/login", payload, "")

	limited := srv.do(t, fiber.MethodPost, "/auth/login", payload, "")
	assert.Equal(t, fiber.StatusTooManyRequests, limited.status)
	assert.Equal(t, "RATE_LIMITED", limited.errorBody()["code"])
	assert.Equal(t, "0", limited.header["X-RateLimit-Remaining"])
	assert.Equal(t, "1", limited.header[fiber.HeaderRetryAfter])
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	missing := srv.do(t, fiber.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, fiber.StatusNotFound, missing.status)
	assert.Equal(t, "NOT_FOUND", missing.errorBody()["code"])

	srv.do(t, fiber.MethodPost, "/auth/login", map[string]any{"email": "x@shop.test", "password": "whatever1"}, "")

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestMalformedIDsAreNotFound(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	srv.seedSuperAdmin(t)
	rootToken := srv.login(t, "/auth/admin/login", map[string]any{"email": "root@shop.test", "password": rootPassword})

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{fiber.MethodGet, "/admin/identities/not-a-uuid", nil},
		{fiber.MethodPost, "/admin/identities/123/demote", nil},
		{fiber.MethodPost, "/admin/identities/123/promote", map[string]any{"kind": "manager"}},
		{fiber.MethodPut, "/admin/identities/123/permissions", map[string]any{"permissions": []any{}}},
		{fiber.MethodDelete, "/admin/identities/123", nil},
		{fiber.MethodDelete, "/admin/invitations/nope", nil},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			res := srv.do(t, tc.method, tc.path, tc.body, rootToken)
			assert.Equal(t, fiber.StatusNotFound, res.status)
			assert.Equal(t, "NOT_FOUND", res.errorBody()["code"])
		})
	}
}
