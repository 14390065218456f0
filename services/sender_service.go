package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/events"
	"outreach/metrics"
	"outreach/models"
	"outreach/utils"
)

const defaultDailyLimit = 500

type SenderService struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events events.Publisher
}

func NewSenderService(db *gorm.DB, publisher events.Publisher) *SenderService {
	return &SenderService{
		DB:     db,
		Logger: utils.NewLogger("sender"),
		Events: orNop(publisher),
	}
}

type CreateSenderInput struct {
	Name       string         `json:"name" validate:"required,max=255"`
	Email      string         `json:"email" validate:"required,email,max=255"`
	ReplyTo    string         `json:"reply_to" validate:"omitempty,email,max=255"`
	Signature  string         `json:"signature"`
	SMTPConfig models.JSONMap `json:"smtp_config"`
	IsDefault  bool           `json:"is_default"`
	DailyLimit int            `json:"daily_limit" validate:"omitempty,gte=1"`
	Active     *bool          `json:"active"`
}

type UpdateSenderInput struct {
	ID         uint           `json:"id"`
	Name       *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Email      *string        `json:"email" validate:"omitempty,email,max=255"`
	ReplyTo    *string        `json:"reply_to" validate:"omitempty,email,max=255"`
	Signature  *string        `json:"signature"`
	SMTPConfig models.JSONMap `json:"smtp_config"`
	IsDefault  *bool          `json:"is_default"`
	DailyLimit *int           `json:"daily_limit" validate:"omitempty,gte=1"`
	Active     *bool          `json:"active"`
}

type DeletedSender struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BulkCreateSendersResult struct {
	Created []models.Sender       `json:"created"`
	Errors  []utils.BulkItemError `json:"errors"`
	Summary utils.BulkSummary     `json:"summary"`
}

type BulkUpdateSendersResult struct {
	Updated []models.Sender       `json:"updated"`
	Errors  []utils.BulkItemError `json:"errors"`
	Summary utils.BulkSummary     `json:"summary"`
}

type BulkDeleteSendersResult struct {
	Deleted []DeletedSender       `json:"deleted"`
	Errors  []utils.BulkItemError `json:"errors"`
	Summary utils.BulkSummary     `json:"summary"`
}

func (s *SenderService) List(ctx context.Context, includeInactive bool) ([]models.Sender, error) {
	query := s.DB.WithContext(ctx).Order("created_at DESC")
	if !includeInactive {
		query = query.Where("active = ?", true)
	}

	var senders []models.Sender
	if err := query.Find(&senders).Error; err != nil {
		return nil, fmt.Errorf("list senders: %w", err)
	}
	for i := range senders {
		senders[i].Sanitize()
	}
	return senders, nil
}

func (s *SenderService) Get(ctx context.Context, id uint) (*models.Sender, error) {
	sender, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	sender.Sanitize()
	return sender, nil
}

func (s *SenderService) load(ctx context.Context, db *gorm.DB, id uint) (*models.Sender, error) {
	var sender models.Sender
	if err := db.WithContext(ctx).First(&sender, id).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Sender")
	}
	return &sender, nil
}

func (s *SenderService) emailTaken(ctx context.Context, db *gorm.DB, email string, exceptID uint) (bool, error) {
	count, err := countWhere(ctx, db, &models.Sender{}, "email = ? AND id <> ?", email, exceptID)
	return count > 0, err
}

// clearDefault unsets the flag on every sender except keepID
func clearDefault(ctx context.Context, tx *gorm.DB, keepID uint) error {
	return tx.WithContext(ctx).Model(&models.Sender{}).
		Where("is_default = ? AND id <> ?", true, keepID).
		Update("is_default", false).Error
}

func (s *SenderService) Create(ctx context.Context, in CreateSenderInput, actorID *uint) (*models.Sender, error) {
	email := utils.NormalizeEmail(in.Email)
	taken, err := s.emailTaken(ctx, s.DB, email, 0)
	if err != nil {
		return nil, fmt.Errorf("check sender email: %w", err)
	}
	if taken {
		return nil, utils.NewConflictError("Sender with this email already exists")
	}

	smtpConfig, err := utils.EncryptConfigSecrets(in.SMTPConfig)
	if err != nil {
		return nil, fmt.Errorf("encrypt smtp config: %w", err)
	}

	dailyLimit := in.DailyLimit
	if dailyLimit == 0 {
		dailyLimit = defaultDailyLimit
	}
	active := in.Active == nil || *in.Active
	if in.IsDefault && !active {
		return nil, utils.NewValidationError("An inactive sender cannot be the default")
	}

	sender := models.Sender{
		Name:       in.Name,
		Email:      email,
		ReplyTo:    in.ReplyTo,
		Signature:  in.Signature,
		SMTPConfig: smtpConfig,
		IsDefault:  in.IsDefault,
		DailyLimit: dailyLimit,
		Active:     active,
		CreatedBy:  actorID,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sender.IsDefault {
			if err := clearDefault(ctx, tx, 0); err != nil {
				return err
			}
		}
		return tx.Create(&sender).Error
	})
	if err != nil {
		return nil, utils.TranslateDBError(err, "Sender")
	}

	s.Logger.WithFields(logrus.Fields{"sender_id": sender.ID, "email": sender.Email}).Info("Sender created")
	if sender.IsDefault {
		s.publishDefault(ctx, sender.ID)
	}
	sender.Sanitize()
	return &sender, nil
}

func (s *SenderService) Update(ctx context.Context, id uint, in UpdateSenderInput) (*models.Sender, error) {
	var updated *models.Sender
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if in.Email != nil {
			email := utils.NormalizeEmail(*in.Email)
			if email != sender.Email {
				taken, err := s.emailTaken(ctx, tx, email, id)
				if err != nil {
					return err
				}
				if taken {
					return utils.NewConflictError("Email already in use")
				}
				updates["email"] = email
			}
		}
		if in.Name != nil {
			updates["name"] = *in.Name
		}
		if in.ReplyTo != nil {
			updates["reply_to"] = *in.ReplyTo
		}
		if in.Signature != nil {
			updates["signature"] = *in.Signature
		}
		if in.DailyLimit != nil {
			updates["daily_limit"] = *in.DailyLimit
		}

		active := sender.Active
		if in.Active != nil {
			active = *in.Active
			updates["active"] = active
			if !active {
				// a deactivated sender cannot stay the default
				updates["is_default"] = false
			}
		}
		if in.IsDefault != nil {
			if *in.IsDefault {
				if !active {
					return utils.NewValidationError("An inactive sender cannot be the default")
				}
				if err := clearDefault(ctx, tx, id); err != nil {
					return err
				}
			}
			updates["is_default"] = *in.IsDefault
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Sender{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		// serializer columns only go through the struct path
		if in.SMTPConfig != nil {
			smtpConfig, err := utils.EncryptConfigSecrets(in.SMTPConfig)
			if err != nil {
				return fmt.Errorf("encrypt smtp config: %w", err)
			}
			if err := tx.Model(&models.Sender{ID: id}).Select("smtp_config").
				Updates(&models.Sender{SMTPConfig: smtpConfig}).Error; err != nil {
				return err
			}
		}

		updated, err = s.load(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, utils.TranslateDBError(err, "Sender")
	}

	if in.IsDefault != nil && *in.IsDefault {
		s.publishDefault(ctx, id)
	}
	updated.Sanitize()
	return updated, nil
}

// Delete hard-deletes a sender no campaign or send refers to
func (s *SenderService) Delete(ctx context.Context, id uint) (*DeletedSender, error) {
	var deleted *DeletedSender
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		campaigns, err := countWhere(ctx, tx, &models.Campaign{}, "sender_id = ?", id)
		if err != nil {
			return err
		}
		sends, err := countWhere(ctx, tx, &models.EmailSend{}, "sender_id = ?", id)
		if err != nil {
			return err
		}
		if campaigns > 0 || sends > 0 {
			return utils.NewConflictError("Sender is referenced by %d campaign(s) and %d send(s) and cannot be deleted", campaigns, sends)
		}

		if err := tx.Delete(&models.Sender{}, id).Error; err != nil {
			return err
		}
		deleted = &DeletedSender{ID: sender.ID, Email: sender.Email, Name: sender.Name}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, utils.NewConflictError("Sender is referenced and cannot be deleted")
		}
		return nil, utils.TranslateDBError(err, "Sender")
	}

	s.Logger.WithField("sender_id", id).Info("Sender deleted")
	return deleted, nil
}

func (s *SenderService) Reactivate(ctx context.Context, id uint) (*models.Sender, error) {
	sender, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if sender.Active {
		return nil, utils.NewValidationError("Sender is already active")
	}
	if err := s.DB.WithContext(ctx).Model(sender).Update("active", true).Error; err != nil {
		return nil, fmt.Errorf("reactivate sender: %w", err)
	}
	sender.Sanitize()
	return sender, nil
}

// GetDefault returns the active sender holding the default flag
func (s *SenderService) GetDefault(ctx context.Context) (*models.Sender, error) {
	var sender models.Sender
	err := s.DB.WithContext(ctx).Where("is_default = ? AND active = ?", true, true).First(&sender).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("No default sender configured")
	}
	if err != nil {
		return nil, fmt.Errorf("get default sender: %w", err)
	}
	sender.Sanitize()
	return &sender, nil
}

// SetDefault clears the flag on every other sender and sets it on id in one
// transaction. The partial unique index on is_default rejects a racing
// writer, which is reported as Conflict.
func (s *SenderService) SetDefault(ctx context.Context, id uint) (*models.Sender, error) {
	var sender *models.Sender
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sender, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !sender.Active {
			return utils.NewValidationError("An inactive sender cannot be the default")
		}
		if err := clearDefault(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Sender{}).Where("id = ?", id).Update("is_default", true).Error; err != nil {
			return err
		}
		sender.IsDefault = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewConflictError("Default sender changed concurrently, retry")
		}
		return nil, utils.TranslateDBError(err, "Sender")
	}

	s.Logger.WithField("sender_id", id).Info("Default sender changed")
	s.publishDefault(ctx, id)
	sender.Sanitize()
	return sender, nil
}

func (s *SenderService) publishDefault(ctx context.Context, id uint) {
	publish(ctx, s.Events, s.Logger, events.SenderDefaultChanged, map[string]any{"sender_id": id})
}

// BulkCreate creates each sender independently; failures are collected per item
func (s *SenderService) BulkCreate(ctx context.Context, items []CreateSenderInput, actorID *uint) *BulkCreateSendersResult {
	result := &BulkCreateSendersResult{
		Created: []models.Sender{},
		Errors:  []utils.BulkItemError{},
		Summary: utils.BulkSummary{Total: len(items)},
	}

	for i, item := range items {
		sender, err := s.bulkCreateOne(ctx, item, actorID)
		if err != nil {
			result.Errors = append(result.Errors, utils.BulkItemError{Index: i, Email: item.Email, Error: itemMessage(err)})
			result.Summary.Failed++
			continue
		}
		result.Created = append(result.Created, *sender)
		result.Summary.Successful++
	}

	s.recordBulk("create", result.Summary)
	return result
}

func (s *SenderService) bulkCreateOne(ctx context.Context, item CreateSenderInput, actorID *uint) (*models.Sender, error) {
	if err := utils.ValidateEmail(item.Email); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(item); err != nil {
		return nil, err
	}
	sender, err := s.Create(ctx, item, actorID)
	if utils.IsConflict(err) {
		return nil, utils.NewConflictError("Email already exists")
	}
	return sender, err
}

// BulkUpdate applies each update independently; failures are collected per item
func (s *SenderService) BulkUpdate(ctx context.Context, items []UpdateSenderInput) *BulkUpdateSendersResult {
	result := &BulkUpdateSendersResult{
		Updated: []models.Sender{},
		Errors:  []utils.BulkItemError{},
		Summary: utils.BulkSummary{Total: len(items)},
	}

	for i, item := range items {
		sender, err := s.bulkUpdateOne(ctx, item)
		if err != nil {
			result.Errors = append(result.Errors, utils.BulkItemError{Index: i, ID: item.ID, Error: itemMessage(err)})
			result.Summary.Failed++
			continue
		}
		result.Updated = append(result.Updated, *sender)
		result.Summary.Successful++
	}

	s.recordBulk("update", result.Summary)
	return result
}

func (s *SenderService) bulkUpdateOne(ctx context.Context, item UpdateSenderInput) (*models.Sender, error) {
	if item.ID == 0 {
		return nil, utils.NewValidationError("id is required")
	}
	if err := utils.ValidateStruct(item); err != nil {
		return nil, err
	}
	return s.Update(ctx, item.ID, item)
}

// BulkDelete deletes each sender independently; failures are collected per item
func (s *SenderService) BulkDelete(ctx context.Context, ids []uint) *BulkDeleteSendersResult {
	result := &BulkDeleteSendersResult{
		Deleted: []DeletedSender{},
		Errors:  []utils.BulkItemError{},
		Summary: utils.BulkSummary{Total: len(ids)},
	}

	for i, id := range ids {
		deleted, err := s.Delete(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, utils.BulkItemError{Index: i, ID: id, Error: itemMessage(err)})
			result.Summary.Failed++
			continue
		}
		result.Deleted = append(result.Deleted, *deleted)
		result.Summary.Successful++
	}

	s.recordBulk("delete", result.Summary)
	return result
}

func (s *SenderService) recordBulk(op string, summary utils.BulkSummary) {
	metrics.IncrementSenderBulk(op, "successful", summary.Successful)
	metrics.IncrementSenderBulk(op, "failed", summary.Failed)
	s.Logger.WithFields(logrus.Fields{
		"op":         op,
		"total":      summary.Total,
		"successful": summary.Successful,
		"failed":     summary.Failed,
	}).Info("Bulk sender operation finished")
}

// itemMessage hides storage details from per-item bulk errors
func itemMessage(err error) string {
	if appErr, ok := utils.AsAppError(err); ok {
		return appErr.Message
	}
	return "Internal error"
}
