package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"outreach/config"
	"outreach/utils"
)

// ErrorHandler renders every error returned by a handler as the
// {success:false, error} envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	if appErr, ok := utils.AsAppError(err); ok {
		return utils.ErrorResponse(c, appErr.Code, appErr.Message, nil)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return utils.ErrorResponse(c, fiberErr.Code, fiberErr.Message, nil)
	}

	utils.LogError("unhandled_error", err, map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
		"ip":     c.IP(),
	})

	var debugInfo fiber.Map
	if !config.AppConfig.IsProduction() {
		debugInfo = fiber.Map{
			"details": err.Error(),
			"stack":   fmt.Sprintf("%s", debug.Stack()),
		}
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", debugInfo)
}

// NotFound is the fallback for unmatched routes
func NotFound(c *fiber.Ctx) error {
	return utils.NewNotFoundError("Route %s not found", c.Path())
}
