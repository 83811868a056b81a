package server

import (
	"os"

	"github.com/gofiber/fiber/v2"
)

// APIKeyGuard protects the admin API. Requests must carry the key from
// POOL_API_KEY in X-API-Key. An empty configured key disables the guard
// for local development.
func APIKeyGuard() fiber.Handler {
	apiKey := os.Getenv("POOL_API_KEY")

	return func(c *fiber.Ctx) error {
		if apiKey != "" && c.Get("X-API-Key") != apiKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}
