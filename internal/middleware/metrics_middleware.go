package middleware

import (
	"errors"

	"twitapp/internal/metrics"

	"github.com/gofiber/fiber/v2"
)

// RequestMetrics counts every request by method, matched route and status.
// Requests that matched no handler are counted under the route "unmatched".
func RequestMetrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		// After Next, Route is the last route that ran; a middleware route
		// means no handler matched.
		route := c.Route().Path
		if route == "/" && c.Path() != "/" {
			route = "unmatched"
		}
		m.RecordRequest(c.Method(), route, status)
		return err
	}
}
