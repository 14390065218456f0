package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/events"
	"outreach/models"
	"outreach/utils"
)

type SectorService struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events events.Publisher
}

func NewSectorService(db *gorm.DB, publisher events.Publisher) *SectorService {
	return &SectorService{
		DB:     db,
		Logger: utils.NewLogger("sector"),
		Events: orNop(publisher),
	}
}

type SectorInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

type UpdateSectorInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

type SectorStats struct {
	Sector *models.Sector `json:"sector"`
	Stats  struct {
		TotalProspects  int64 `json:"total_prospects"`
		ActiveProspects int64 `json:"active_prospects"`
		Templates       int64 `json:"templates"`
		Campaigns       int64 `json:"campaigns"`
	} `json:"stats"`
}

type SectorImportResult struct {
	Created int                   `json:"created"`
	Updated int                   `json:"updated"`
	Errors  []utils.BulkItemError `json:"errors"`
}

func (s *SectorService) List(ctx context.Context, activeOnly bool) ([]models.Sector, error) {
	query := s.DB.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var sectors []models.Sector
	if err := query.Find(&sectors).Error; err != nil {
		return nil, fmt.Errorf("list sectors: %w", err)
	}
	return sectors, nil
}

func (s *SectorService) Get(ctx context.Context, id uint) (*models.Sector, error) {
	var sector models.Sector
	if err := s.DB.WithContext(ctx).First(&sector, id).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Sector")
	}
	return &sector, nil
}

func (s *SectorService) Create(ctx context.Context, in SectorInput) (*models.Sector, error) {
	name, err := requiredName(in.Name)
	if err != nil {
		return nil, err
	}
	sector := models.Sector{
		Name:        name,
		Description: in.Description,
		Active:      in.Active == nil || *in.Active,
	}
	if err := s.DB.WithContext(ctx).Create(&sector).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Sector")
	}
	return &sector, nil
}

func (s *SectorService) Update(ctx context.Context, id uint, in UpdateSectorInput) (*models.Sector, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name, err := requiredName(*in.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.Sector{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, utils.TranslateDBError(err, "Sector")
		}
	}
	return s.Get(ctx, id)
}

// Delete hard-deletes a sector nothing refers to. Soft-deleted prospects
// still count as references.
func (s *SectorService) Delete(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Sector{}, id).Error; err != nil {
			return err
		}

		var prospects int64
		if err := tx.Unscoped().Model(&models.Prospect{}).Where("sector_id = ?", id).Count(&prospects).Error; err != nil {
			return err
		}
		if prospects > 0 {
			return utils.NewConflictError("Cannot delete sector with associated prospects")
		}
		templates, err := countWhere(ctx, tx, &models.EmailTemplate{}, "sector_id = ?", id)
		if err != nil {
			return err
		}
		campaigns, err := countWhere(ctx, tx, &models.Campaign{}, "sector_id = ?", id)
		if err != nil {
			return err
		}
		if templates > 0 || campaigns > 0 {
			return utils.NewConflictError("Cannot delete sector used by templates or campaigns")
		}

		return tx.Delete(&models.Sector{}, id).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return utils.NewConflictError("Cannot delete sector while it is referenced")
	}
	return utils.TranslateDBError(err, "Sector")
}

func (s *SectorService) Stats(ctx context.Context, id uint) (*SectorStats, error) {
	sector, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &SectorStats{Sector: sector}
	counts := []struct {
		dst   *int64
		model any
		query string
		args  []any
	}{
		{&out.Stats.TotalProspects, &models.Prospect{}, "sector_id = ?", []any{id}},
		{&out.Stats.ActiveProspects, &models.Prospect{}, "sector_id = ? AND status = ?", []any{id, models.ProspectActive}},
		{&out.Stats.Templates, &models.EmailTemplate{}, "sector_id = ?", []any{id}},
		{&out.Stats.Campaigns, &models.Campaign{}, "sector_id = ?", []any{id}},
	}
	for _, c := range counts {
		n, err := countWhere(ctx, s.DB, c.model, c.query, c.args...)
		if err != nil {
			return nil, fmt.Errorf("sector stats: %w", err)
		}
		*c.dst = n
	}
	return out, nil
}

// BulkImport creates sectors by name, updating the description and active
// flag of names that already exist
func (s *SectorService) BulkImport(ctx context.Context, items []SectorInput) *SectorImportResult {
	result := &SectorImportResult{Errors: []utils.BulkItemError{}}

	for i, item := range items {
		created, err := s.importOne(ctx, item)
		if err != nil {
			result.Errors = append(result.Errors, utils.BulkItemError{Index: i, Error: itemMessage(err)})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.Logger.WithFields(logrus.Fields{
		"created": result.Created,
		"updated": result.Updated,
		"failed":  len(result.Errors),
	}).Info("Sector import finished")
	return result
}

func (s *SectorService) importOne(ctx context.Context, item SectorInput) (bool, error) {
	if err := utils.ValidateStruct(item); err != nil {
		return false, err
	}
	name, err := requiredName(item.Name)
	if err != nil {
		return false, err
	}

	var existing models.Sector
	err = s.DB.WithContext(ctx).Where("name = ?", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_, err := s.Create(ctx, item)
		return err == nil, err
	}
	if err != nil {
		return false, err
	}

	updates := map[string]any{"description": item.Description}
	if item.Active != nil {
		updates["active"] = *item.Active
	}
	if err := s.DB.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return false, utils.TranslateDBError(err, "Sector")
	}
	return false, nil
}
