package controller

import (
	"github.com/gofiber/fiber/v2"

	"outreach/models"
	"outreach/services"
	"outreach/utils"
)

type UserController struct {
	Users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{Users: users}
}

func (uc *UserController) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	users, total, err := uc.Users.List(c.UserContext(), services.UserFilter{
		Pagination: p,
		Role:       models.Role(c.Query("role")),
		Active:     queryBool(c, "active"),
		Search:     c.Query("search"),
	})
	if err != nil {
		return err
	}
	return listResponse(c, "Users retrieved successfully", users, total, p)
}

func (uc *UserController) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	user, err := uc.Users.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "User retrieved successfully", user)
}

func (uc *UserController) Create(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := uc.Users.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "User created successfully", user)
}

func (uc *UserController) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateUserInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := uc.Users.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "User updated successfully", user)
}

// Delete deactivates the account
func (uc *UserController) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	if current := currentUser(c); current != nil && current.ID == id {
		return utils.NewValidationError("You cannot deactivate your own account")
	}
	if err := uc.Users.Deactivate(c.UserContext(), id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "User deactivated successfully", nil)
}

func (uc *UserController) Reactivate(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := uc.Users.Reactivate(c.UserContext(), id); err != nil {
		return err
	}
	user, err := uc.Users.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "User reactivated successfully", user)
}

func (uc *UserController) ResetPassword(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := uc.Users.ResetPassword(c.UserContext(), id, req.NewPassword); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Password reset successfully", nil)
}

func (uc *UserController) Stats(c *fiber.Ctx) error {
	stats, err := uc.Users.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "User statistics retrieved successfully", stats)
}
