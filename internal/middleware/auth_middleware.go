package middleware

import (
	"strings"

	"go-pos-admin/internal/service"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// RequireAuth validates the bearer token against the live session and sets
// user info in context for downstream handlers.
func RequireAuth(authService service.AuthService, log *logger.Logger) fiber.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperror.Unauthorized("missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return apperror.Unauthorized("invalid authorization format, use: Bearer <token>")
		}

		user, err := authService.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return err
		}

		c.Locals("user_id", user.ID.String())
		c.Locals("user_email", user.Email)
		c.Locals("user_name", user.FullName)
		c.Locals("user_privileges", user.GetPrivilegeCodes())
		c.SetUserContext(log.WithUserID(c.UserContext(), user.ID.String()))

		return c.Next()
	}
}

// RequirePrivilege checks if the authenticated user has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		privileges, ok := c.Locals("user_privileges").([]string)
		if !ok {
			return apperror.New(apperror.CodeForbidden, "no privileges found")
		}
		for _, p := range privileges {
			if p == requiredPrivilege {
				return c.Next()
			}
		}
		return apperror.New(apperror.CodeForbidden, "requires '"+requiredPrivilege+"' privilege")
	}
}

// RequireAnyPrivilege checks if the user has at least one of the specified privileges
func RequireAnyPrivilege(requiredPrivileges ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		privileges, ok := c.Locals("user_privileges").([]string)
		if !ok {
			return apperror.New(apperror.CodeForbidden, "no privileges found")
		}
		for _, userPriv := range privileges {
			for _, reqPriv := range requiredPrivileges {
				if userPriv == reqPriv {
					return c.Next()
				}
			}
		}
		return apperror.New(apperror.CodeForbidden, "requires one of "+strings.Join(requiredPrivileges, ", ")+" privileges")
	}
}
