package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/nhle/tickflow/internal/model"
)

// errorResponse is the body of every error reply. Detail is either a
// message or a list of model.FieldError.
type errorResponse struct {
	Detail any `json:"detail"`
}

// errorHandler translates handler errors into status codes. Anything it does
// not recognise is logged and answered with a bare 500.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{Detail: verr.Fields})
		}

		if errors.Is(err, model.ErrInvalidTask) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{
				Detail: []model.FieldError{{
					Loc:  []string{"body"},
					Msg:  err.Error(),
					Type: "value_error",
				}},
			})
		}

		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return c.Status(ferr.Code).JSON(errorResponse{Detail: ferr.Message})
		}

		logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Detail: "Internal Server Error",
		})
	}
}
