package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/events"
	"outreach/models"
	"outreach/utils"
)

// DeliveryService accounts for EmailSend rows and sender quotas. Status
// transitions belong to the sending worker.
type DeliveryService struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events events.Publisher

	// Now is overridable in tests
	Now func() time.Time
}

func NewDeliveryService(db *gorm.DB, publisher events.Publisher) *DeliveryService {
	return &DeliveryService{
		DB:     db,
		Logger: utils.NewLogger("delivery"),
		Events: orNop(publisher),
		Now:    time.Now,
	}
}

// DailyLimitStatus is the quota view for one sender. Remaining goes negative
// once the sender exceeded its limit.
type DailyLimitStatus struct {
	SenderID   uint  `json:"sender_id"`
	DailyLimit int   `json:"daily_limit"`
	SentToday  int64 `json:"sent_today"`
	Remaining  int64 `json:"remaining"`
	CanSend    bool  `json:"can_send"`
}

type RecordSendInput struct {
	CampaignID       uint              `json:"campaign_id" validate:"required"`
	ProspectID       uint              `json:"prospect_id" validate:"required"`
	SenderID         uint              `json:"sender_id" validate:"required"`
	TrackingID       string            `json:"tracking_id" validate:"omitempty,max=100"`
	MessageID        string            `json:"message_id" validate:"omitempty,max=255"`
	ProviderResponse models.JSONMap    `json:"provider_response"`
	Status           models.SendStatus `json:"status" validate:"omitempty,oneof=queued sent delivered bounced failed spam_reported"`
	RetryCount       int               `json:"retry_count" validate:"gte=0"`
	LastRetryAt      *time.Time        `json:"last_retry_at"`
	SentAt           *time.Time        `json:"sent_at"`
	DeliveredAt      *time.Time        `json:"delivered_at"`
	ErrorMessage     string            `json:"error_message"`
}

type CredentialInput struct {
	Username       string         `json:"username" validate:"omitempty,max=255"`
	CredentialType string         `json:"credential_type" validate:"omitempty,max=100"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	Metadata       models.JSONMap `json:"metadata"`
}

type SendFilter struct {
	utils.Pagination
	Status models.SendStatus
}

// IsValidSendStatus reports whether status is one of the tracked delivery states
func IsValidSendStatus(status string) bool {
	return models.ValidSendStatus(models.SendStatus(status))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CheckDailyLimit counts the sender's sends since local midnight
func (s *DeliveryService) CheckDailyLimit(ctx context.Context, senderID uint) (*DailyLimitStatus, error) {
	var sender models.Sender
	err := s.DB.WithContext(ctx).Where("id = ? AND active = ?", senderID, true).First(&sender).Error
	if err != nil {
		return nil, utils.TranslateDBError(err, "Sender")
	}

	sentToday, err := countWhere(ctx, s.DB, &models.EmailSend{},
		"sender_id = ? AND sent_at >= ?", senderID, startOfDay(s.Now()))
	if err != nil {
		return nil, fmt.Errorf("count sends: %w", err)
	}

	return &DailyLimitStatus{
		SenderID:   sender.ID,
		DailyLimit: sender.DailyLimit,
		SentToday:  sentToday,
		Remaining:  int64(sender.DailyLimit) - sentToday,
		CanSend:    sentToday < int64(sender.DailyLimit),
	}, nil
}

// RecordSend stores one delivery attempt. A tracking id is generated when
// the caller does not provide one.
func (s *DeliveryService) RecordSend(ctx context.Context, in RecordSendInput) (*models.EmailSend, error) {
	if err := ensureExists(ctx, s.DB, &models.Campaign{}, in.CampaignID, "Campaign"); err != nil {
		return nil, err
	}
	if err := ensureExists(ctx, s.DB, &models.Prospect{}, in.ProspectID, "Prospect"); err != nil {
		return nil, err
	}
	if err := ensureExists(ctx, s.DB, &models.Sender{}, in.SenderID, "Sender"); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.SendQueued
	}
	if !models.ValidSendStatus(status) {
		return nil, utils.NewValidationError("Invalid send status: %s", status)
	}

	trackingID := in.TrackingID
	if trackingID == "" {
		trackingID = uuid.NewString()
	}

	send := models.EmailSend{
		CampaignID:       in.CampaignID,
		ProspectID:       in.ProspectID,
		SenderID:         in.SenderID,
		TrackingID:       trackingID,
		MessageID:        in.MessageID,
		ProviderResponse: in.ProviderResponse,
		Status:           status,
		RetryCount:       in.RetryCount,
		LastRetryAt:      in.LastRetryAt,
		SentAt:           in.SentAt,
		DeliveredAt:      in.DeliveredAt,
		ErrorMessage:     in.ErrorMessage,
	}
	if err := s.DB.WithContext(ctx).Create(&send).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Email send")
	}

	publish(ctx, s.Events, s.Logger, events.EmailSendRecorded, map[string]any{
		"email_send_id": send.ID,
		"campaign_id":   send.CampaignID,
		"tracking_id":   send.TrackingID,
		"status":        send.Status,
	})
	return &send, nil
}

// AttachCredential stores the single credential payload of an EmailSend
func (s *DeliveryService) AttachCredential(ctx context.Context, emailSendID uint, in CredentialInput) (*models.Credential, error) {
	if err := ensureExists(ctx, s.DB, &models.EmailSend{}, emailSendID, "Email send"); err != nil {
		return nil, err
	}

	credential := models.Credential{
		EmailSendID:    emailSendID,
		Username:       in.Username,
		CredentialType: in.CredentialType,
		ExpiresAt:      in.ExpiresAt,
		Metadata:       in.Metadata,
	}
	if err := s.DB.WithContext(ctx).Create(&credential).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Credential")
	}
	return &credential, nil
}

func (s *DeliveryService) ListSends(ctx context.Context, campaignID uint, f SendFilter) ([]models.EmailSend, int64, error) {
	if err := ensureExists(ctx, s.DB, &models.Campaign{}, campaignID, "Campaign"); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !IsValidSendStatus(string(f.Status)) {
		return nil, 0, utils.NewValidationError("Invalid send status: %s", f.Status)
	}

	query := s.DB.WithContext(ctx).Model(&models.EmailSend{}).Where("campaign_id = ?", campaignID)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count sends: %w", err)
	}

	var sends []models.EmailSend
	err := query.
		Preload("Credential").
		Order("created_at DESC").
		Offset(f.Offset()).
		Limit(f.Limit).
		Find(&sends).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list sends: %w", err)
	}
	return sends, total, nil
}
