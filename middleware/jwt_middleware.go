package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"outreach/models"
	"outreach/services"
	"outreach/utils"
)

const userLocalsKey = "user"

// Protected resolves the bearer token (or the access_token cookie) to an
// active user and stores it in the request locals
func Protected(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := requestToken(c)
		if err != nil {
			return err
		}

		user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(userLocalsKey, user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

// requestToken prefers the Authorization header. Browsers that cannot set
// it fall back to the access_token cookie.
func requestToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if cookie := c.Cookies("access_token"); cookie != "" {
			return cookie, nil
		}
		return "", utils.NewUnauthorizedError("Authorization required")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", utils.NewUnauthorizedError("Invalid authorization format")
	}
	return token, nil
}

// CurrentUser returns the user stored by Protected, nil on public routes
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalsKey).(*models.User)
	return user
}

// RoleAllowed reports whether role may access a route restricted to allowed.
// An empty allow list admits every known role.
func RoleAllowed(role models.Role, allowed ...models.Role) bool {
	if !role.Valid() {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	return role.In(allowed...)
}

// RequireRoles rejects authenticated users whose role is not listed
func RequireRoles(allowed ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return utils.NewUnauthorizedError("Authorization required")
		}
		if !RoleAllowed(user.Role, allowed...) {
			utils.LogEvent("access_denied", map[string]interface{}{
				"user_id": user.ID,
				"role":    user.Role,
				"path":    c.Path(),
			})
			return utils.NewForbiddenError("Insufficient permissions")
		}
		return c.Next()
	}
}
