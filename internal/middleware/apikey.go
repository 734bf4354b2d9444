package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"
)

// APIKeyMiddleware validates the X-API-Key header against the configured
// key. An empty configured key disables the check (development mode); main
// warns about that at startup.
func APIKeyMiddleware(expectedKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expectedKey == "" {
			return c.Next()
		}

		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing API key. Include X-API-Key header.",
			})
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedKey)) != 1 {
			log.Printf("❌ [APIKEY-AUTH] Invalid key attempt from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		c.Locals("auth_type", "api_key")
		return c.Next()
	}
}
