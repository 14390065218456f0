package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"outreach/events"
	"outreach/metrics"
	"outreach/models"
	"outreach/utils"
)

var campaignSortColumns = []string{"created_at", "updated_at", "name", "type", "scheduled_at", "total_recipients"}

type CampaignService struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events events.Publisher
}

func NewCampaignService(db *gorm.DB, publisher events.Publisher) *CampaignService {
	return &CampaignService{
		DB:     db,
		Logger: utils.NewLogger("campaign"),
		Events: orNop(publisher),
	}
}

type RecipientInput struct {
	ProspectID       uint           `json:"prospect_id" validate:"required"`
	PersonalizedData models.JSONMap `json:"personalized_data"`
}

type CreateCampaignInput struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description"`
	TemplateID  uint                `json:"template_id" validate:"required"`
	SenderID    uint                `json:"sender_id" validate:"required"`
	SectorID    *uint               `json:"sector_id"`
	Type        models.CampaignType `json:"type" validate:"omitempty,oneof=individual massive scheduled"`
	ScheduledAt *time.Time          `json:"scheduled_at"`
	Recipients  []RecipientInput    `json:"recipients" validate:"dive"`
}

type UpdateCampaignInput struct {
	Name        *string              `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string              `json:"description"`
	TemplateID  *uint                `json:"template_id" validate:"omitempty,gte=1"`
	SenderID    *uint                `json:"sender_id" validate:"omitempty,gte=1"`
	SectorID    *uint                `json:"sector_id"`
	Type        *models.CampaignType `json:"type" validate:"omitempty,oneof=individual massive scheduled"`
	ScheduledAt *time.Time           `json:"scheduled_at"`
}

type CampaignFilter struct {
	utils.Pagination
	Type      models.CampaignType
	SectorID  *uint
	CreatedBy *uint
	SortBy    string
	SortOrder string
}

// AddRecipientsResult reports how many recipients were stored by one call.
// Skipped covers unknown prospects and pairs already attached.
type AddRecipientsResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

type CampaignStats struct {
	CampaignID      uint                        `json:"campaign_id"`
	CampaignName    string                      `json:"campaign_name"`
	State           models.CampaignState        `json:"state"`
	TotalRecipients int                         `json:"total_recipients"`
	Stats           map[models.SendStatus]int64 `json:"stats"`
	StartedAt       *time.Time                  `json:"started_at"`
	CompletedAt     *time.Time                  `json:"completed_at"`
}

func errCampaignStarted() error {
	return utils.NewConflictError("Campaign has already started")
}

func (s *CampaignService) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, int64, error) {
	if f.Type != "" && !models.ValidCampaignType(f.Type) {
		return nil, 0, utils.NewValidationError("Invalid campaign type: %s", f.Type)
	}

	query := s.DB.WithContext(ctx).Model(&models.Campaign{})
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.SectorID != nil {
		query = query.Where("sector_id = ?", *f.SectorID)
	}
	if f.CreatedBy != nil {
		query = query.Where("created_by = ?", *f.CreatedBy)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	sort := utils.ParseSort(f.SortBy, f.SortOrder, campaignSortColumns, "created_at")
	var campaigns []models.Campaign
	err := query.
		Preload("Template").
		Preload("Sender").
		Preload("Sector").
		Preload("Creator").
		Order(sort.Clause()).
		Offset(f.Offset()).
		Limit(f.Limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	for i := range campaigns {
		if campaigns[i].Sender != nil {
			campaigns[i].Sender.Sanitize()
		}
	}
	return campaigns, total, nil
}

func (s *CampaignService) Get(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.DB.WithContext(ctx).
		Preload("Template").
		Preload("Sender").
		Preload("Sector").
		Preload("Creator").
		First(&campaign, id).Error
	if err != nil {
		return nil, utils.TranslateDBError(err, "Campaign")
	}
	if campaign.Sender != nil {
		campaign.Sender.Sanitize()
	}
	return &campaign, nil
}

func (s *CampaignService) load(ctx context.Context, db *gorm.DB, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := db.WithContext(ctx).First(&campaign, id).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Campaign")
	}
	return &campaign, nil
}

func (s *CampaignService) checkReferences(ctx context.Context, templateID, senderID, sectorID *uint) error {
	if templateID != nil {
		if err := ensureExists(ctx, s.DB, &models.EmailTemplate{}, *templateID, "Template"); err != nil {
			return err
		}
	}
	if senderID != nil {
		if err := ensureExists(ctx, s.DB, &models.Sender{}, *senderID, "Sender"); err != nil {
			return err
		}
	}
	if sectorID != nil {
		if err := ensureExists(ctx, s.DB, &models.Sector{}, *sectorID, "Sector"); err != nil {
			return err
		}
	}
	return nil
}

// Create stores a campaign bound to an existing template and sender and
// attaches the given recipients
func (s *CampaignService) Create(ctx context.Context, in CreateCampaignInput, actorID uint) (*models.Campaign, error) {
	if err := s.checkReferences(ctx, &in.TemplateID, &in.SenderID, in.SectorID); err != nil {
		return nil, err
	}

	campaignType := in.Type
	if campaignType == "" {
		campaignType = models.CampaignMassive
	}

	campaign := models.Campaign{
		Name:            in.Name,
		Description:     in.Description,
		TemplateID:      in.TemplateID,
		SenderID:        in.SenderID,
		SectorID:        in.SectorID,
		Type:            campaignType,
		ScheduledAt:     in.ScheduledAt,
		TotalRecipients: len(in.Recipients),
		CreatedBy:       actorID,
	}
	if err := s.DB.WithContext(ctx).Create(&campaign).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Campaign")
	}

	metrics.CampaignsCreated.Inc()
	s.Logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"created_by":  actorID,
	}).Info("Campaign created")
	publish(ctx, s.Events, s.Logger, events.CampaignCreated, map[string]any{
		"campaign_id": campaign.ID,
		"template_id": campaign.TemplateID,
		"sender_id":   campaign.SenderID,
		"created_by":  actorID,
	})

	if len(in.Recipients) > 0 {
		if _, err := s.AddRecipients(ctx, campaign.ID, in.Recipients); err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, campaign.ID)
}

// AddRecipients attaches prospects to the campaign. Unknown prospects are
// skipped without error and pairs already attached are ignored.
// total_recipients is set to the number of rows inserted by this call.
func (s *CampaignService) AddRecipients(ctx context.Context, campaignID uint, recipients []RecipientInput) (*AddRecipientsResult, error) {
	campaign, err := s.load(ctx, s.DB, campaignID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.ProspectID)
	}

	var existing []uint
	if len(ids) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.Prospect{}).
			Where("id IN ?", ids).
			Pluck("id", &existing).Error; err != nil {
			return nil, fmt.Errorf("resolve prospects: %w", err)
		}
	}
	known := make(map[uint]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	rows := make([]models.CampaignRecipient, 0, len(recipients))
	seen := make(map[uint]bool, len(recipients))
	for _, r := range recipients {
		if !known[r.ProspectID] || seen[r.ProspectID] {
			continue
		}
		seen[r.ProspectID] = true
		rows = append(rows, models.CampaignRecipient{
			CampaignID:       campaign.ID,
			ProspectID:       r.ProspectID,
			PersonalizedData: r.PersonalizedData,
		})
	}

	var inserted int64
	if len(rows) > 0 {
		res := s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "prospect_id"}},
				DoNothing: true,
			}).
			Create(&rows)
		if res.Error != nil {
			return nil, utils.TranslateDBError(res.Error, "Campaign recipient")
		}
		inserted = res.RowsAffected
	}

	if err := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", campaign.ID).
		Update("total_recipients", inserted).Error; err != nil {
		return nil, fmt.Errorf("update total recipients: %w", err)
	}

	result := &AddRecipientsResult{Added: int(inserted), Skipped: len(recipients) - int(inserted)}
	metrics.CampaignRecipientsAdded.Add(float64(inserted))
	s.Logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"added":       result.Added,
		"skipped":     result.Skipped,
	}).Info("Recipients added")
	publish(ctx, s.Events, s.Logger, events.CampaignRecipientsAdded, map[string]any{
		"campaign_id": campaign.ID,
		"added":       result.Added,
	})
	return result, nil
}

func (s *CampaignService) ListRecipients(ctx context.Context, campaignID uint, p utils.Pagination) ([]models.CampaignRecipient, int64, error) {
	if err := ensureExists(ctx, s.DB, &models.Campaign{}, campaignID, "Campaign"); err != nil {
		return nil, 0, err
	}

	query := s.DB.WithContext(ctx).Model(&models.CampaignRecipient{}).Where("campaign_id = ?", campaignID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count recipients: %w", err)
	}

	var recipients []models.CampaignRecipient
	err := query.
		Preload("Prospect", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("id ASC").
		Offset(p.Offset()).
		Limit(p.Limit).
		Find(&recipients).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, total, nil
}

// Update edits a campaign that has not started
func (s *CampaignService) Update(ctx context.Context, id uint, in UpdateCampaignInput) (*models.Campaign, error) {
	campaign, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if campaign.Started() {
		return nil, errCampaignStarted()
	}
	if err := s.checkReferences(ctx, in.TemplateID, in.SenderID, in.SectorID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.TemplateID != nil {
		updates["template_id"] = *in.TemplateID
	}
	if in.SenderID != nil {
		updates["sender_id"] = *in.SenderID
	}
	if in.SectorID != nil {
		updates["sector_id"] = *in.SectorID
	}
	if in.Type != nil {
		updates["type"] = *in.Type
	}
	if in.ScheduledAt != nil {
		updates["scheduled_at"] = *in.ScheduledAt
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	// the started_at guard is repeated in the statement so a campaign started
	// between the read and the write is not modified
	res := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND started_at IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return nil, utils.TranslateDBError(res.Error, "Campaign")
	}
	if res.RowsAffected == 0 {
		return nil, errCampaignStarted()
	}
	return s.Get(ctx, id)
}

// Delete removes a campaign that has not started together with its
// recipients, sends and credentials
func (s *CampaignService) Delete(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if campaign.Started() {
			return errCampaignStarted()
		}

		sends := tx.Model(&models.EmailSend{}).Select("id").Where("campaign_id = ?", id)
		if err := tx.Where("email_send_id IN (?)", sends).Delete(&models.Credential{}).Error; err != nil {
			return fmt.Errorf("delete credentials: %w", err)
		}
		if err := tx.Where("campaign_id = ?", id).Delete(&models.EmailSend{}).Error; err != nil {
			return fmt.Errorf("delete sends: %w", err)
		}
		if err := tx.Where("campaign_id = ?", id).Delete(&models.CampaignRecipient{}).Error; err != nil {
			return fmt.Errorf("delete recipients: %w", err)
		}

		res := tx.Where("started_at IS NULL").Delete(&models.Campaign{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errCampaignStarted()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.WithField("campaign_id", id).Info("Campaign deleted")
	publish(ctx, s.Events, s.Logger, events.CampaignDeleted, map[string]any{"campaign_id": id})
	return nil
}

// Schedule moves a campaign that has not started to the scheduled type
func (s *CampaignService) Schedule(ctx context.Context, id uint, at time.Time) (*models.Campaign, error) {
	if at.IsZero() {
		return nil, utils.NewValidationError("scheduled_at is required")
	}

	campaign, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if campaign.Started() {
		return nil, errCampaignStarted()
	}

	res := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND started_at IS NULL", id).
		Updates(map[string]any{
			"type":         models.CampaignScheduled,
			"scheduled_at": at,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("schedule campaign: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errCampaignStarted()
	}

	publish(ctx, s.Events, s.Logger, events.CampaignScheduled, map[string]any{
		"campaign_id":  id,
		"scheduled_at": at,
	})
	return s.Get(ctx, id)
}

// Stats aggregates the campaign's sends by status
func (s *CampaignService) Stats(ctx context.Context, id uint) (*CampaignStats, error) {
	campaign, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status models.SendStatus
		Count  int64
	}
	err = s.DB.WithContext(ctx).Model(&models.EmailSend{}).
		Select("status, COUNT(id) AS count").
		Where("campaign_id = ?", id).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate sends: %w", err)
	}

	counts := make(map[models.SendStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	return &CampaignStats{
		CampaignID:      campaign.ID,
		CampaignName:    campaign.Name,
		State:           campaign.State(),
		TotalRecipients: campaign.TotalRecipients,
		Stats:           counts,
		StartedAt:       campaign.StartedAt,
		CompletedAt:     campaign.CompletedAt,
	}, nil
}

// MarkStarted is called by the sending worker when delivery begins
func (s *CampaignService) MarkStarted(ctx context.Context, id uint) (*models.Campaign, error) {
	if _, err := s.load(ctx, s.DB, id); err != nil {
		return nil, err
	}

	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND started_at IS NULL", id).
		Update("started_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("start campaign: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errCampaignStarted()
	}

	publish(ctx, s.Events, s.Logger, events.CampaignStarted, map[string]any{"campaign_id": id, "started_at": now})
	return s.Get(ctx, id)
}

// MarkCompleted is called by the sending worker once every recipient was processed
func (s *CampaignService) MarkCompleted(ctx context.Context, id uint) (*models.Campaign, error) {
	campaign, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if !campaign.Started() {
		return nil, utils.NewConflictError("Campaign has not started")
	}

	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND completed_at IS NULL", id).
		Update("completed_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("complete campaign: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("Campaign has already completed")
	}

	publish(ctx, s.Events, s.Logger, events.CampaignCompleted, map[string]any{"campaign_id": id, "completed_at": now})
	return s.Get(ctx, id)
}
