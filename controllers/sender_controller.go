package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"outreach/services"
	"outreach/utils"
)

type SenderController struct {
	Senders  *services.SenderService
	Delivery *services.DeliveryService
	Logger   *logrus.Entry
}

func NewSenderController(senders *services.SenderService, delivery *services.DeliveryService) *SenderController {
	return &SenderController{
		Senders:  senders,
		Delivery: delivery,
		Logger:   utils.NewLogger("sender_controller"),
	}
}

func (sc *SenderController) List(c *fiber.Ctx) error {
	senders, err := sc.Senders.List(c.UserContext(), c.QueryBool("include_inactive"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Senders retrieved successfully", senders)
}

func (sc *SenderController) GetDefault(c *fiber.Ctx) error {
	sender, err := sc.Senders.GetDefault(c.UserContext())
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Default sender retrieved successfully", sender)
}

func (sc *SenderController) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	sender, err := sc.Senders.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sender retrieved successfully", sender)
}

func (sc *SenderController) DailyLimit(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	status, err := sc.Delivery.CheckDailyLimit(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Daily limit retrieved successfully", status)
}

func (sc *SenderController) Create(c *fiber.Ctx) error {
	var req services.CreateSenderInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sender, err := sc.Senders.Create(c.UserContext(), req, currentUserID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Sender created successfully", sender)
}

func (sc *SenderController) SetDefault(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	sender, err := sc.Senders.SetDefault(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Default sender updated successfully", sender)
}

func (sc *SenderController) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateSenderInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sender, err := sc.Senders.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sender updated successfully", sender)
}

func (sc *SenderController) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	deleted, err := sc.Senders.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sender deleted successfully", deleted)
}

// BulkCreate answers 201 when every sender was created, 207 on partial
// success and 400 when all of them failed
func (sc *SenderController) BulkCreate(c *fiber.Ctx) error {
	var req struct {
		Senders []services.CreateSenderInput `json:"senders"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.NewValidationError("Invalid request body")
	}
	if len(req.Senders) == 0 {
		return utils.NewValidationError("senders must be a non-empty array")
	}

	result := sc.Senders.BulkCreate(c.UserContext(), req.Senders, currentUserID(c))
	sc.logBulk("create", result.Summary)
	return utils.SuccessResponse(c, utils.BulkStatus(result.Summary, fiber.StatusCreated), "Bulk create completed", result)
}

func (sc *SenderController) BulkUpdate(c *fiber.Ctx) error {
	var req struct {
		Senders []services.UpdateSenderInput `json:"senders"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.NewValidationError("Invalid request body")
	}
	if len(req.Senders) == 0 {
		return utils.NewValidationError("senders must be a non-empty array")
	}

	result := sc.Senders.BulkUpdate(c.UserContext(), req.Senders)
	sc.logBulk("update", result.Summary)
	return utils.SuccessResponse(c, utils.BulkStatus(result.Summary, fiber.StatusOK), "Bulk update completed", result)
}

func (sc *SenderController) BulkDelete(c *fiber.Ctx) error {
	var req struct {
		IDs []uint `json:"ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.NewValidationError("Invalid request body")
	}
	if len(req.IDs) == 0 {
		return utils.NewValidationError("ids must be a non-empty array")
	}

	result := sc.Senders.BulkDelete(c.UserContext(), req.IDs)
	sc.logBulk("delete", result.Summary)
	return utils.SuccessResponse(c, utils.BulkStatus(result.Summary, fiber.StatusOK), "Bulk delete completed", result)
}

func (sc *SenderController) logBulk(op string, summary utils.BulkSummary) {
	if summary.Failed == 0 {
		return
	}
	sc.Logger.WithFields(logrus.Fields{
		"op":         op,
		"total":      summary.Total,
		"successful": summary.Successful,
		"failed":     summary.Failed,
	}).Warn("Bulk sender operation had failures")
}

func (sc *SenderController) Reactivate(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	sender, err := sc.Senders.Reactivate(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Sender reactivated successfully", sender)
}
