package serverutils

import (
	"leadgen-sync/internal/entity"

	"github.com/gofiber/fiber/v2"
)

type SessionChecker interface {
	CurrentUser() *entity.User
}

// SessionRequired rejects requests while nobody is signed in and exposes the
// user id as the "user_id" local.
func SessionRequired(session SessionChecker) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user := session.CurrentUser()
		if user == nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Sign in required"))
		}
		ctx.Locals("user_id", user.Id)
		return ctx.Next()
	}
}
