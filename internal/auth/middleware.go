package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"maintdesk/internal/apperr"
)

// Middleware returns a Fiber middleware that validates JWT bearer tokens and
// sets the UserContext on the request.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperr.Unauthorized("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperr.Unauthorized("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return apperr.Unauthorized("Invalid or expired token")
		}

		c.Locals("user", &UserContext{
			ID:    claims.Subject,
			Role:  claims.Role,
			Token: parts[1],
		})

		return c.Next()
	}
}

// GetUser extracts the UserContext from a Fiber context.
func GetUser(c *fiber.Ctx) *UserContext {
	user, _ := c.Locals("user").(*UserContext)
	return user
}

// RequireRole is a Fiber middleware gating a route on one exact role, used
// for the admin-only meta endpoints.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return apperr.Unauthorized("Missing auth token")
		}
		if user.Role != role {
			return apperr.Forbidden(role + " access required")
		}
		return c.Next()
	}
}
