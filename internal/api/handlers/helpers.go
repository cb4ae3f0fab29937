package handlers

import (
	"errors"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/contentflow/internal/gateway"
	"github.com/maheshrc27/contentflow/internal/lifecycle"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/service"
)

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

var errBadBody = errors.New("Unable to parse json")

// parseBody decodes the request body into v and runs its validation rules.
func parseBody(c *fiber.Ctx, v validation.Validatable) error {
	if err := c.BodyParser(v); err != nil {
		slog.Info(err.Error())
		return errBadBody
	}
	return v.Validate()
}

// errorResponse maps service errors onto HTTP statuses. When post is not nil
// it is returned alongside the error so callers see the recorded outcome.
func errorResponse(c *fiber.Ctx, err error, post *models.Post) error {
	status := fiber.StatusInternalServerError
	body := fiber.Map{"error": err.Error()}

	var (
		te   *lifecycle.TransitionError
		pe   *lifecycle.PreconditionError
		ve   validation.Errors
		ume  *service.UnsupportedMediaError
		gwe  *gateway.Error
		inte validation.InternalError
	)

	switch {
	case errors.Is(err, errBadBody):
		status = fiber.StatusBadRequest
	case errors.Is(err, lifecycle.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.As(err, &pe):
		status = fiber.StatusUnprocessableEntity
		body["issues"] = pe.Issues
	case errors.As(err, &te):
		status = fiber.StatusConflict
		body["current_status"] = te.From
		body["requested_status"] = te.To
	case errors.Is(err, lifecycle.ErrStateConflict):
		status = fiber.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidSchedule):
		status = fiber.StatusBadRequest
	case errors.As(err, &inte):
		slog.Error(err.Error())
		body["error"] = "Internal server error"
	case errors.As(err, &ve):
		status = fiber.StatusBadRequest
		body["error"] = "validation failed"
		body["fields"] = ve
	case errors.As(err, &ume):
		status = fiber.StatusUnsupportedMediaType
	case errors.As(err, &gwe):
		status = fiber.StatusBadGateway
	default:
		slog.Error(err.Error())
		body["error"] = "Internal server error"
	}

	if post != nil {
		body["post"] = post
	}
	return c.Status(status).JSON(body)
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
