package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newProtectedApp(key string) *fiber.App {
	app := fiber.New()
	app.Use(APIKeyMiddleware(key))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestAPIKeyMiddleware_MissingKey(t *testing.T) {
	app := newProtectedApp("secret")

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
}

func TestAPIKeyMiddleware_WrongKey(t *testing.T) {
	app := newProtectedApp("secret")

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-API-Key", "not-the-secret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
}

func TestAPIKeyMiddleware_ValidKey(t *testing.T) {
	app := newProtectedApp("secret")

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestAPIKeyMiddleware_DisabledWhenUnset(t *testing.T) {
	app := newProtectedApp("")

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}
