package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

func newMiddlewareApp(production bool) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, MiddlewareConfig{Production: production})
	app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })
	app.Get("/forbidden", func(c *fiber.Ctx) error {
		return apperrors.NewForbidden("access denied", map[string]any{"required": "users:read"})
	})
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.NewConflict("taken", map[string]any{"field": "email"})
	})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad input") })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("db exploded") })
	return app
}

func errorOf(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body.Error
}

func TestErrorHandlingMiddleware(t *testing.T) {
	app := newMiddlewareApp(false)

	status, body := errorOf(t, app, "/panic")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])

	status, body = errorOf(t, app, "/plain")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["message"])

	status, body = errorOf(t, app, "/fiber")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", body["code"])
	assert.Equal(t, "bad input", body["message"])

	status, body = errorOf(t, app, "/forbidden")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, map[string]any{"required": "users:read"}, body["details"])
}

func TestProductionHidesForbiddenDetailsOnly(t *testing.T) {
	app := newMiddlewareApp(true)

	_, body := errorOf(t, app, "/forbidden")
	assert.NotContains(t, body, "details")

	_, body = errorOf(t, app, "/conflict")
	assert.Equal(t, map[string]any{"field": "email"}, body["details"])
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func limiterCount(rl *RateLimiter) int {
	n := 0
	rl.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 5)
	rl.now = func() time.Time { return current }
	rl.WithIdleTTL(time.Minute)

	for i := 0; i < 50; i++ {
		rl.Allow(fmt.Sprintf("ip:10.0.0.%d", i))
	}
	assert.Equal(t, 50, limiterCount(rl))

	current = current.Add(30 * time.Second)
	rl.Allow("ip:10.0.0.1")
	assert.Equal(t, 50, limiterCount(rl))

	current = current.Add(45 * time.Second)
	rl.Allow("ip:10.0.0.99")
	assert.Equal(t, 2, limiterCount(rl))
}

func TestRateLimiterIdleTTLCoversRefill(t *testing.T) {
	rl := NewRateLimiter(0.001, 2).WithIdleTTL(time.Second)
	assert.InDelta(t, 2000, rl.idleTTL.Seconds(), 0.001)
}
