package middleware

import (
	"time"

	"go-pos-admin/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// RequestLogger attaches a request-scoped logger to the user context and
// writes one line per request once the handler chain has finished. It must
// run after the requestid middleware.
func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok && id != "" {
			ctx = log.WithRequestID(ctx, id)
		}
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		if err != nil {
			// Render now so the logged status is the one the client sees.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		attrs := []logger.Attr{
			logger.Field("method", c.Method()),
			logger.Field("route", route),
			logger.Field("status", c.Response().StatusCode()),
			logger.Field("duration_ms", time.Since(start).Milliseconds()),
		}
		status := c.Response().StatusCode()
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error(c.UserContext(), "request.complete", nil, attrs...)
		case status >= fiber.StatusBadRequest:
			log.Warn(c.UserContext(), "request.complete", attrs...)
		default:
			log.Info(c.UserContext(), "request.complete", attrs...)
		}
		return nil
	}
}
