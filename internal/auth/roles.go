package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-warden/pkg/util"
)

// RequireScope ensures the operator's token grants scope.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.HasScope(scope) {
			return apperrors.NewPermissionDenied("token lacks scope " + scope)
		}
		return c.Next()
	}
}
