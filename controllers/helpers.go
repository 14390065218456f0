package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"outreach/middleware"
	"outreach/models"
	"outreach/utils"
)

// parseBody decodes the JSON body into dst and runs struct validation
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return utils.NewValidationError("Invalid request body")
	}
	return utils.ValidateStruct(dst)
}

func currentUser(c *fiber.Ctx) *models.User {
	return middleware.CurrentUser(c)
}

func currentUserID(c *fiber.Ctx) *uint {
	if user := currentUser(c); user != nil {
		return &user.ID
	}
	return nil
}

// queryBool reads an optional true/false query value
func queryBool(c *fiber.Ctx, key string) *bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return nil
	}
	return &v
}

func listResponse(c *fiber.Ctx, message string, data interface{}, total int64, p utils.Pagination) error {
	return utils.SuccessResponse(c, fiber.StatusOK, message, utils.NewPaginatedResponse(data, total, p))
}
