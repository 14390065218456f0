package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"outreach/metrics"
	"outreach/utils"
)

// Metrics records request latency labelled by the matched route pattern
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// the error handler has not written the status yet
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if appErr, ok := utils.AsAppError(err); ok {
				status = appErr.Code
			} else if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
		}

		metrics.RecordHTTPRequestDuration(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))
		return err
	}
}
