package handler

import (
	"errors"

	"go-pos-admin/internal/service"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrorHandler renders every error returned by a handler as
// {"error", "code", "reason", "retryable"}.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error":     fe.Message,
				"code":      codeForStatus(fe.Code),
				"reason":    apperror.ReasonNone,
				"retryable": fe.Code >= fiber.StatusInternalServerError,
			})
		}

		typed := apperror.As(err)
		if typed == nil {
			typed = apperror.Wrap(apperror.CodeInternal, err, "unexpected error")
		}
		meta := apperror.MetadataFor(typed.Code())

		msg := meta.PublicMessage
		switch typed.Code() {
		case apperror.CodeInternal, apperror.CodeStoreUnavailable:
			log.Error(c.UserContext(), "request failed", err,
				logger.Field("method", c.Method()),
				logger.Field("path", c.Path()),
			)
		default:
			if m := typed.Message(); m != "" {
				msg = m
			}
		}

		body := fiber.Map{
			"error":     msg,
			"code":      typed.Code(),
			"reason":    typed.Reason(),
			"retryable": meta.Retryable,
		}
		if d := typed.Details(); d != nil {
			body["details"] = d
		}
		return c.Status(meta.HTTPStatus).JSON(body)
	}
}

func codeForStatus(status int) apperror.Code {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return apperror.CodeValidation
	case fiber.StatusUnauthorized:
		return apperror.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperror.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperror.CodeNotFound
	case fiber.StatusConflict:
		return apperror.CodeConflict
	}
	return apperror.CodeInternal
}

// Helper untuk ambil user info dari JWT context (set by auth middleware)
func actorFrom(c *fiber.Ctx) service.Actor {
	var actor service.Actor
	if raw, ok := c.Locals("user_id").(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			actor.ID = id
		}
	}
	actor.Name, _ = c.Locals("user_name").(string)
	actor.Email, _ = c.Locals("user_email").(string)
	if actor.Name == "" {
		actor.Name = "Unknown"
	}
	return actor
}

func hasPrivilege(c *fiber.Ctx, code string) bool {
	privileges, _ := c.Locals("user_privileges").([]string)
	for _, p := range privileges {
		if p == code {
			return true
		}
	}
	return false
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + name)
	}
	return id, nil
}

func queryID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("invalid " + name)
	}
	return &id, nil
}

func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperror.Validation("invalid JSON body")
	}
	return nil
}
