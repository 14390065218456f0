package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/events"
	"outreach/metrics"
	"outreach/models"
	"outreach/utils"
)

var prospectSortColumns = []string{"created_at", "updated_at", "name", "email", "company", "status"}

type ProspectService struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events events.Publisher

	Now func() time.Time
}

func NewProspectService(db *gorm.DB, publisher events.Publisher) *ProspectService {
	return &ProspectService{
		DB:     db,
		Logger: utils.NewLogger("prospect"),
		Events: orNop(publisher),
		Now:    time.Now,
	}
}

type ProspectInput struct {
	Email         string                `json:"email" validate:"required,email,max=255"`
	Name          string                `json:"name" validate:"required,max=255"`
	Company       string                `json:"company" validate:"omitempty,max=255"`
	Position      string                `json:"position" validate:"omitempty,max=255"`
	Phone         string                `json:"phone" validate:"omitempty,phone"`
	Website       string                `json:"website" validate:"omitempty,url,max=255"`
	Notes         string                `json:"notes"`
	SectorID      *uint                 `json:"sector_id"`
	Status        models.ProspectStatus `json:"status" validate:"omitempty,oneof=active inactive bounced spam_reported unsubscribed"`
	ConsentStatus models.ConsentStatus  `json:"consent_status" validate:"omitempty,oneof=unknown granted revoked"`
}

type UpdateProspectInput struct {
	Email         *string                `json:"email" validate:"omitempty,email,max=255"`
	Name          *string                `json:"name" validate:"omitempty,min=1,max=255"`
	Company       *string                `json:"company" validate:"omitempty,max=255"`
	Position      *string                `json:"position" validate:"omitempty,max=255"`
	Phone         *string                `json:"phone" validate:"omitempty,phone"`
	Website       *string                `json:"website" validate:"omitempty,url,max=255"`
	Notes         *string                `json:"notes"`
	SectorID      *uint                  `json:"sector_id"`
	Status        *models.ProspectStatus `json:"status" validate:"omitempty,oneof=active inactive bounced spam_reported unsubscribed"`
	ConsentStatus *models.ConsentStatus  `json:"consent_status" validate:"omitempty,oneof=unknown granted revoked"`
}

type ProspectFilter struct {
	utils.Pagination
	Search        string
	SectorID      *uint
	Status        models.ProspectStatus
	ConsentStatus models.ConsentStatus
	SortBy        string
	SortOrder     string
}

type BulkImportResult struct {
	Created int                   `json:"created"`
	Updated int                   `json:"updated"`
	Errors  []utils.BulkItemError `json:"errors"`
}

func (s *ProspectService) List(ctx context.Context, f ProspectFilter) ([]models.Prospect, int64, error) {
	if f.Status != "" && !models.ValidProspectStatus(f.Status) {
		return nil, 0, utils.NewValidationError("Invalid prospect status: %s", f.Status)
	}

	query := s.DB.WithContext(ctx).Model(&models.Prospect{})
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", like, like, like)
	}
	if f.SectorID != nil {
		query = query.Where("sector_id = ?", *f.SectorID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ConsentStatus != "" {
		query = query.Where("consent_status = ?", f.ConsentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count prospects: %w", err)
	}

	sort := utils.ParseSort(f.SortBy, f.SortOrder, prospectSortColumns, "created_at")
	var prospects []models.Prospect
	err := query.Preload("Sector").
		Order(sort.Clause()).
		Offset(f.Offset()).
		Limit(f.Limit).
		Find(&prospects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list prospects: %w", err)
	}
	return prospects, total, nil
}

func (s *ProspectService) Get(ctx context.Context, id uint) (*models.Prospect, error) {
	var prospect models.Prospect
	if err := s.DB.WithContext(ctx).Preload("Sector").First(&prospect, id).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Prospect")
	}
	return &prospect, nil
}

func (s *ProspectService) liveEmailTaken(ctx context.Context, db *gorm.DB, email string, exceptID uint) (bool, error) {
	count, err := countWhere(ctx, db, &models.Prospect{}, "email = ? AND id <> ?", email, exceptID)
	return count > 0, err
}

func (s *ProspectService) checkSector(ctx context.Context, sectorID *uint) error {
	if sectorID == nil {
		return nil
	}
	return ensureExists(ctx, s.DB, &models.Sector{}, *sectorID, "Sector")
}

func (s *ProspectService) Create(ctx context.Context, in ProspectInput, actorID *uint) (*models.Prospect, error) {
	email := utils.NormalizeEmail(in.Email)
	taken, err := s.liveEmailTaken(ctx, s.DB, email, 0)
	if err != nil {
		return nil, fmt.Errorf("check prospect email: %w", err)
	}
	if taken {
		return nil, utils.NewConflictError("Prospect with this email already exists")
	}
	if err := s.checkSector(ctx, in.SectorID); err != nil {
		return nil, err
	}

	prospect := newProspect(in, email, actorID)
	if err := s.DB.WithContext(ctx).Create(&prospect).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Prospect")
	}
	return &prospect, nil
}

func newProspect(in ProspectInput, email string, actorID *uint) models.Prospect {
	p := models.Prospect{
		Email:         email,
		Name:          in.Name,
		Company:       in.Company,
		Position:      in.Position,
		Phone:         in.Phone,
		Website:       in.Website,
		Notes:         in.Notes,
		SectorID:      in.SectorID,
		Status:        in.Status,
		ConsentStatus: in.ConsentStatus,
		CreatedBy:     actorID,
	}
	if p.Status == "" {
		p.Status = models.ProspectActive
	}
	if p.ConsentStatus == "" {
		p.ConsentStatus = models.ConsentUnknown
	}
	return p
}

func (s *ProspectService) Update(ctx context.Context, id uint, in UpdateProspectInput) (*models.Prospect, error) {
	prospect, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Email != nil {
		email := utils.NormalizeEmail(*in.Email)
		if email != prospect.Email {
			taken, err := s.liveEmailTaken(ctx, s.DB, email, id)
			if err != nil {
				return nil, fmt.Errorf("check prospect email: %w", err)
			}
			if taken {
				return nil, utils.NewConflictError("Email already in use")
			}
			updates["email"] = email
		}
	}
	if in.SectorID != nil {
		if err := s.checkSector(ctx, in.SectorID); err != nil {
			return nil, err
		}
		updates["sector_id"] = *in.SectorID
	}
	setString(updates, "name", in.Name)
	setString(updates, "company", in.Company)
	setString(updates, "position", in.Position)
	setString(updates, "phone", in.Phone)
	setString(updates, "website", in.Website)
	setString(updates, "notes", in.Notes)
	if in.Status != nil {
		updates["status"] = *in.Status
		if *in.Status == models.ProspectUnsubscribed && prospect.UnsubscribedAt == nil {
			updates["unsubscribed_at"] = s.Now()
		}
	}
	if in.ConsentStatus != nil {
		updates["consent_status"] = *in.ConsentStatus
		if *in.ConsentStatus == models.ConsentGranted {
			updates["consented_at"] = s.Now()
		}
	}

	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.Prospect{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, utils.TranslateDBError(err, "Prospect")
		}
	}
	return s.Get(ctx, id)
}

func setString(updates map[string]any, column string, v *string) {
	if v != nil {
		updates[column] = *v
	}
}

// Delete soft-deletes the prospect; history rows keep pointing at it
func (s *ProspectService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.Prospect{}, id).Error; err != nil {
		return fmt.Errorf("delete prospect: %w", err)
	}
	s.Logger.WithField("prospect_id", id).Info("Prospect deleted")
	return nil
}

// Reactivate restores a soft-deleted prospect
func (s *ProspectService) Reactivate(ctx context.Context, id uint) (*models.Prospect, error) {
	var prospect models.Prospect
	if err := s.DB.WithContext(ctx).Unscoped().First(&prospect, id).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Prospect")
	}
	if !prospect.DeletedAt.Valid {
		return nil, utils.NewValidationError("Prospect is already active")
	}

	taken, err := s.liveEmailTaken(ctx, s.DB, prospect.Email, id)
	if err != nil {
		return nil, fmt.Errorf("check prospect email: %w", err)
	}
	if taken {
		return nil, utils.NewConflictError("Another prospect already uses %s", prospect.Email)
	}

	err = s.DB.WithContext(ctx).Unscoped().Model(&models.Prospect{}).
		Where("id = ?", id).
		Update("deleted_at", nil).Error
	if err != nil {
		return nil, utils.TranslateDBError(err, "Prospect")
	}
	return s.Get(ctx, id)
}

// findByEmail prefers the live row and falls back to the newest deleted one
func (s *ProspectService) findByEmail(ctx context.Context, db *gorm.DB, email string) (*models.Prospect, error) {
	var prospect models.Prospect
	err := db.WithContext(ctx).Unscoped().
		Where("email = ?", email).
		Order("CASE WHEN deleted_at IS NULL THEN 0 ELSE 1 END, id DESC").
		First(&prospect).Error
	if err != nil {
		return nil, err
	}
	return &prospect, nil
}

// BulkImport upserts every entry by email. A soft-deleted match is
// restored. Entry failures are collected and never stop the batch.
func (s *ProspectService) BulkImport(ctx context.Context, items []ProspectInput, actorID *uint) *BulkImportResult {
	result := &BulkImportResult{Errors: []utils.BulkItemError{}}

	for i, item := range items {
		created, err := s.importOne(ctx, item, actorID)
		if err != nil {
			result.Errors = append(result.Errors, utils.BulkItemError{Index: i, Email: item.Email, Error: itemMessage(err)})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	metrics.IncrementProspectsImported("created", result.Created)
	metrics.IncrementProspectsImported("updated", result.Updated)
	metrics.IncrementProspectsImported("failed", len(result.Errors))
	s.Logger.WithFields(logrus.Fields{
		"created": result.Created,
		"updated": result.Updated,
		"failed":  len(result.Errors),
	}).Info("Prospect import finished")
	return result
}

func (s *ProspectService) importOne(ctx context.Context, item ProspectInput, actorID *uint) (bool, error) {
	if err := utils.ValidateEmail(item.Email); err != nil {
		return false, err
	}
	if err := utils.ValidateStruct(item); err != nil {
		return false, err
	}
	email := utils.NormalizeEmail(item.Email)

	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findByEmail(ctx, tx, email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p := newProspect(item, email, actorID)
			created = true
			return tx.Create(&p).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"name":       item.Name,
			"company":    item.Company,
			"position":   item.Position,
			"phone":      item.Phone,
			"website":    item.Website,
			"notes":      item.Notes,
			"sector_id":  item.SectorID,
			"deleted_at": nil,
		}
		if item.Status != "" {
			updates["status"] = item.Status
		}
		if item.ConsentStatus != "" {
			updates["consent_status"] = item.ConsentStatus
		}
		return tx.Unscoped().Model(&models.Prospect{}).Where("id = ?", existing.ID).Updates(updates).Error
	})
	if err != nil {
		return false, utils.TranslateDBError(err, "Prospect")
	}
	return created, nil
}

// Unsubscribe opts the prospect out. Applying it again leaves the same state.
func (s *ProspectService) Unsubscribe(ctx context.Context, email string) (*models.Prospect, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}

	prospect, err := s.findByEmail(ctx, s.DB, email)
	if err != nil {
		return nil, utils.TranslateDBError(err, "Prospect")
	}

	prospect.Unsubscribe(s.Now())
	err = s.DB.WithContext(ctx).Unscoped().Model(&models.Prospect{}).
		Where("id = ?", prospect.ID).
		Updates(map[string]any{
			"status":          prospect.Status,
			"consent_status":  prospect.ConsentStatus,
			"unsubscribed_at": prospect.UnsubscribedAt,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("unsubscribe prospect: %w", err)
	}

	s.Logger.WithField("prospect_id", prospect.ID).Info("Prospect unsubscribed")
	publish(ctx, s.Events, s.Logger, events.ProspectUnsubscribed, map[string]any{
		"prospect_id": prospect.ID,
		"email":       prospect.Email,
	})
	return prospect, nil
}

// GrantConsent records an explicit opt-in. An unsubscribed prospect becomes active again.
func (s *ProspectService) GrantConsent(ctx context.Context, id uint) (*models.Prospect, error) {
	prospect, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"consent_status": models.ConsentGranted,
		"consented_at":   s.Now(),
	}
	if prospect.Status == models.ProspectUnsubscribed {
		updates["status"] = models.ProspectActive
	}
	if err := s.DB.WithContext(ctx).Model(&models.Prospect{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("grant consent: %w", err)
	}
	return s.Get(ctx, id)
}
