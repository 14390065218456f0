package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"outreach/models"
	"outreach/services"
	"outreach/utils"
)

type CampaignController struct {
	Campaigns *services.CampaignService
	Delivery  *services.DeliveryService
	Logger    *logrus.Entry
}

func NewCampaignController(campaigns *services.CampaignService, delivery *services.DeliveryService) *CampaignController {
	return &CampaignController{
		Campaigns: campaigns,
		Delivery:  delivery,
		Logger:    utils.NewLogger("campaign_controller"),
	}
}

func (cc *CampaignController) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	campaigns, total, err := cc.Campaigns.List(c.UserContext(), services.CampaignFilter{
		Pagination: p,
		Type:       models.CampaignType(c.Query("type")),
		SectorID:   utils.ParseOptionalUint(c, "sector_id"),
		CreatedBy:  utils.ParseOptionalUint(c, "created_by"),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	})
	if err != nil {
		return err
	}
	return listResponse(c, "Campaigns retrieved successfully", campaigns, total, p)
}

func (cc *CampaignController) Get(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	campaign, err := cc.Campaigns.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", campaign)
}

func (cc *CampaignController) Create(c *fiber.Ctx) error {
	var req services.CreateCampaignInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	campaign, err := cc.Campaigns.Create(c.UserContext(), req, currentUser(c).ID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", campaign)
}

func (cc *CampaignController) Update(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateCampaignInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	campaign, err := cc.Campaigns.Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", campaign)
}

func (cc *CampaignController) Delete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	if err := cc.Campaigns.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Campaign deleted successfully", nil)
}

func (cc *CampaignController) ListRecipients(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	p := utils.ParsePagination(c)
	recipients, total, err := cc.Campaigns.ListRecipients(c.UserContext(), id, p)
	if err != nil {
		return err
	}
	return listResponse(c, "Recipients retrieved successfully", recipients, total, p)
}

func (cc *CampaignController) AddRecipients(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Recipients []services.RecipientInput `json:"recipients" validate:"required,min=1,dive"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := cc.Campaigns.AddRecipients(c.UserContext(), id, req.Recipients)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Recipients added successfully", result)
}

func (cc *CampaignController) Stats(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	stats, err := cc.Campaigns.Stats(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Campaign statistics retrieved successfully", stats)
}

func (cc *CampaignController) Schedule(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	campaign, err := cc.Campaigns.Schedule(c.UserContext(), id, req.ScheduledAt)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Campaign scheduled successfully", campaign)
}

// Start and Complete are called by the sending worker

func (cc *CampaignController) Start(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	campaign, err := cc.Campaigns.MarkStarted(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Campaign started", campaign)
}

func (cc *CampaignController) Complete(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	campaign, err := cc.Campaigns.MarkCompleted(c.UserContext(), id)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Campaign completed", campaign)
}

func (cc *CampaignController) ListSends(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	p := utils.ParsePagination(c)
	sends, total, err := cc.Delivery.ListSends(c.UserContext(), id, services.SendFilter{
		Pagination: p,
		Status:     models.SendStatus(c.Query("status")),
	})
	if err != nil {
		return err
	}
	return listResponse(c, "Sends retrieved successfully", sends, total, p)
}

// RecordSend stores one delivery attempt for the campaign in the path
func (cc *CampaignController) RecordSend(c *fiber.Ctx) error {
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	var req services.RecordSendInput
	if err := c.BodyParser(&req); err != nil {
		return utils.NewValidationError("Invalid request body")
	}
	req.CampaignID = id
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	send, err := cc.Delivery.RecordSend(c.UserContext(), req)
	if err != nil {
		return err
	}
	cc.Logger.WithFields(logrus.Fields{
		"campaign_id": id,
		"send_id":     send.ID,
		"status":      send.Status,
	}).Debug("Send recorded")
	return utils.SuccessResponse(c, fiber.StatusCreated, "Send recorded successfully", send)
}

func (cc *CampaignController) AttachCredential(c *fiber.Ctx) error {
	sendID, err := utils.ParseID(c, "sendId")
	if err != nil {
		return err
	}
	var req services.CredentialInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	credential, err := cc.Delivery.AttachCredential(c.UserContext(), sendID, req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Credential attached successfully", credential)
}
