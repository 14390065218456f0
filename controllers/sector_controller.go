package controller

import (
	"github.com/gofiber/fiber/v2"

	"outreach/services"
	"outreach/utils"
)

type SectorController struct {
	Sectors *services.SectorService
}

func NewSectorController(sectors *services.SectorService) *SectorController {
	return &SectorController{Sectors: sectors}
}

func (sc *SectorController) List(c *fiber.Ctx) error {
	sectors, err := sc.Sectors.List(c.UserContext(), c.QueryBool("active"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sectors retrieved successfully", sectors)
}

func (sc *SectorController) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	sector, err := sc.Sectors.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sector retrieved successfully", sector)
}

func (sc *SectorController) Stats(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	stats, err := sc.Sectors.Stats(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sector statistics retrieved successfully", stats)
}

func (sc *SectorController) Create(c *fiber.Ctx) error {
	var req services.SectorInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sector, err := sc.Sectors.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Sector created successfully", sector)
}

func (sc *SectorController) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateSectorInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sector, err := sc.Sectors.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sector updated successfully", sector)
}

func (sc *SectorController) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := sc.Sectors.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sector deleted successfully", nil)
}

func (sc *SectorController) BulkImport(c *fiber.Ctx) error {
	var req struct {
		Sectors []services.SectorInput `json:"sectors"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.NewValidationError("Invalid request body")
	}
	if len(req.Sectors) == 0 {
		return utils.NewValidationError("sectors must be a non-empty array")
	}

	result := sc.Sectors.BulkImport(c.UserContext(), req.Sectors)
	return utils.SuccessResponse(c, fiber.StatusOK, "Bulk import completed", result)
}
