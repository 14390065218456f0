package controller

import (
	"github.com/gofiber/fiber/v2"

	"outreach/services"
	"outreach/utils"
)

type AuthController struct {
	Auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{Auth: auth}
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := ac.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if appErr, ok := utils.AsAppError(err); ok {
			utils.LogEvent("login_failed", map[string]interface{}{
				"email":  utils.NormalizeEmail(req.Email),
				"ip":     c.IP(),
				"status": appErr.Code,
			})
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

func (ac *AuthController) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	accessToken, err := ac.Auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Token refreshed", fiber.Map{"accessToken": accessToken})
}

func (ac *AuthController) Me(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "Current user", currentUser(c))
}

func (ac *AuthController) Logout(c *fiber.Ctx) error {
	ac.Auth.Logout(c.UserContext(), currentUser(c).ID)
	c.ClearCookie("access_token")
	return utils.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	var req services.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := ac.Auth.ChangePassword(c.UserContext(), currentUser(c).ID, req); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Password changed successfully", nil)
}
