package controller

import (
	"github.com/gofiber/fiber/v2"

	"outreach/models"
	"outreach/services"
	"outreach/utils"
)

type ProspectController struct {
	Prospects *services.ProspectService
}

func NewProspectController(prospects *services.ProspectService) *ProspectController {
	return &ProspectController{Prospects: prospects}
}

func (pc *ProspectController) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	prospects, total, err := pc.Prospects.List(c.UserContext(), services.ProspectFilter{
		Pagination:    p,
		Search:        c.Query("search"),
		SectorID:      utils.ParseOptionalUint(c, "sector_id"),
		Status:        models.ProspectStatus(c.Query("status")),
		ConsentStatus: models.ConsentStatus(c.Query("consent_status")),
		SortBy:        c.Query("sortBy"),
		SortOrder:     c.Query("sortOrder"),
	})
	if err != nil {
		return err
	}
	return listResponse(c, "Prospects retrieved successfully", prospects, total, p)
}

func (pc *ProspectController) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	prospect, err := pc.Prospects.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Prospect retrieved successfully", prospect)
}

func (pc *ProspectController) Create(c *fiber.Ctx) error {
	var req services.ProspectInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	prospect, err := pc.Prospects.Create(c.UserContext(), req, currentUserID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Prospect created successfully", prospect)
}

func (pc *ProspectController) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateProspectInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	prospect, err := pc.Prospects.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Prospect updated successfully", prospect)
}

func (pc *ProspectController) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := pc.Prospects.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Prospect deleted successfully", nil)
}

func (pc *ProspectController) Reactivate(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	prospect, err := pc.Prospects.Reactivate(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Prospect reactivated successfully", prospect)
}

// BulkImport validates each entry on its own; a bad entry never fails the batch
func (pc *ProspectController) BulkImport(c *fiber.Ctx) error {
	var req struct {
		Prospects []services.ProspectInput `json:"prospects"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.NewValidationError("Invalid request body")
	}
	if len(req.Prospects) == 0 {
		return utils.NewValidationError("prospects must be a non-empty array")
	}

	result := pc.Prospects.BulkImport(c.UserContext(), req.Prospects, currentUserID(c))
	return utils.SuccessResponse(c, fiber.StatusOK, "Bulk import completed", result)
}

func (pc *ProspectController) Unsubscribe(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	prospect, err := pc.Prospects.Unsubscribe(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Prospect unsubscribed successfully", prospect)
}

func (pc *ProspectController) GrantConsent(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	prospect, err := pc.Prospects.GrantConsent(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Consent recorded", prospect)
}
