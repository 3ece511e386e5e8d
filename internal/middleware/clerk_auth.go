package middleware

import (
	"context"
	"os"
	"strings"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/gofiber/fiber/v3"
)

// ClerkAuth middleware validates Clerk JWT tokens on the operator routes
// (manual reconciliation, run history)
func ClerkAuth() fiber.Handler {
	// Initialize Clerk with secret key
	clerk.SetKey(os.Getenv("CLERK_SECRET_KEY"))

	return func(c fiber.Ctx) error {
		// Get token from Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization token",
			})
		}

		// Remove "Bearer " prefix
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		// Verify token with Clerk
		claims, err := jwt.Verify(context.Background(), &jwt.VerifyParams{
			Token: token,
		})
		if err != nil {
			if os.Getenv("CLERK_SECRET_KEY") == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Server misconfiguration: CLERK_SECRET_KEY not set",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// Store operator id in context for audit logging in handlers
		c.Locals("operator_id", claims.Subject)

		return c.Next()
	}
}
