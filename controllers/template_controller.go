package controller

import (
	"github.com/gofiber/fiber/v2"

	"outreach/services"
	"outreach/utils"
)

type TemplateController struct {
	Templates *services.TemplateService
}

func NewTemplateController(templates *services.TemplateService) *TemplateController {
	return &TemplateController{Templates: templates}
}

func (tc *TemplateController) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	templates, total, err := tc.Templates.List(c.UserContext(), services.TemplateFilter{
		Pagination: p,
		Search:     c.Query("search"),
		SectorID:   utils.ParseOptionalUint(c, "sector_id"),
		Active:     queryBool(c, "active"),
		IsDefault:  queryBool(c, "is_default"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	})
	if err != nil {
		return err
	}
	return listResponse(c, "Templates retrieved successfully", templates, total, p)
}

func (tc *TemplateController) GetDefault(c *fiber.Ctx) error {
	tpl, err := tc.Templates.GetDefault(c.UserContext(), utils.ParseOptionalUint(c, "sector_id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Default template retrieved successfully", tpl)
}

func (tc *TemplateController) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	tpl, err := tc.Templates.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Template retrieved successfully", tpl)
}

func (tc *TemplateController) Create(c *fiber.Ctx) error {
	var req services.TemplateInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tpl, err := tc.Templates.Create(c.UserContext(), req, currentUser(c).ID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Template created successfully", tpl)
}

func (tc *TemplateController) Duplicate(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	tpl, err := tc.Templates.Duplicate(c.UserContext(), id, currentUser(c).ID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Template duplicated successfully", tpl)
}

func (tc *TemplateController) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateTemplateInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tpl, err := tc.Templates.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Template updated successfully", tpl)
}

func (tc *TemplateController) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := tc.Templates.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Template deleted successfully", nil)
}

type previewRequest struct {
	Variables map[string]any `json:"variables"`
	Format    string         `json:"format" validate:"omitempty,oneof=json eml"`
	From      string         `json:"from" validate:"omitempty,email"`
	To        string         `json:"to" validate:"omitempty,email"`
}

// Preview renders the template with the given variables. format=eml returns
// the raw MIME message instead of the JSON envelope.
func (tc *TemplateController) Preview(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req previewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.Format == "eml" {
		raw, _, err := tc.Templates.RenderEML(c.UserContext(), id, req.Variables, req.From, req.To)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "message/rfc822")
		return c.Status(fiber.StatusOK).Send(raw)
	}

	tpl, err := tc.Templates.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Template rendered successfully", tc.Templates.Render(tpl, req.Variables))
}
