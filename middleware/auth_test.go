// middleware/auth_test.go
package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func testApp() *fiber.App {
	app := fiber.New()
	secured := app.Group("/s", UserContextMiddleware())
	secured.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	admin := app.Group("/s/admin", UserContextMiddleware(), RequireRole("admin"))
	admin.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestUserContextRequiredOnSecuredRoutes(t *testing.T) {
	app := testApp()

	req := httptest.NewRequest("GET", "/s/ping", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/s/ping", nil)
	req.Header.Set("X-User-ID", "user-1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	app := testApp()

	// Authenticated but unprivileged: forbidden.
	req := httptest.NewRequest("GET", "/s/admin/ping", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Roles", "member")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// No roles header at all: forbidden.
	req = httptest.NewRequest("GET", "/s/admin/ping", nil)
	req.Header.Set("X-User-ID", "user-1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Admin role among several: allowed.
	req = httptest.NewRequest("GET", "/s/admin/ping", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Roles", "member, admin")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
