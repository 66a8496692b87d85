package serverutils

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorMapping answers errors matching Target (errors.Is) with Status.
type ErrorMapping struct {
	Target error
	Status int
}

// ErrorHandlerMiddleware turns handler errors into the BaseResponse envelope.
// Unmapped errors become 500.
func ErrorHandlerMiddleware(mappings ...ErrorMapping) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		case errors.As(err, &validationErrs):
			code = fiber.StatusBadRequest
		default:
			for _, m := range mappings {
				if errors.Is(err, m.Target) {
					code = m.Status
					break
				}
			}
		}

		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}
