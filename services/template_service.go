package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"outreach/events"
	"outreach/models"
	"outreach/utils"
)

var templateSortColumns = []string{"created_at", "updated_at", "name"}

type TemplateService struct {
	DB     *gorm.DB
	Logger *logrus.Entry
	Events events.Publisher
}

func NewTemplateService(db *gorm.DB, publisher events.Publisher) *TemplateService {
	return &TemplateService{
		DB:     db,
		Logger: utils.NewLogger("template"),
		Events: orNop(publisher),
	}
}

type TemplateInput struct {
	Name        string   `json:"name" validate:"required,max=255"`
	SectorID    *uint    `json:"sector_id"`
	Subject     string   `json:"subject" validate:"required,max=500"`
	HTMLContent string   `json:"html_content" validate:"required"`
	TextContent string   `json:"text_content"`
	Variables   []string `json:"variables"`
	IsDefault   bool     `json:"is_default"`
	Active      *bool    `json:"active"`
}

type UpdateTemplateInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=255"`
	SectorID    *uint    `json:"sector_id"`
	Subject     *string  `json:"subject" validate:"omitempty,min=1,max=500"`
	HTMLContent *string  `json:"html_content" validate:"omitempty,min=1"`
	TextContent *string  `json:"text_content"`
	Variables   []string `json:"variables"`
	IsDefault   *bool    `json:"is_default"`
	Active      *bool    `json:"active"`
}

type TemplateFilter struct {
	utils.Pagination
	Search    string
	SectorID  *uint
	Active    *bool
	IsDefault *bool
	SortBy    string
	SortOrder string
}

// RenderedTemplate is a template with placeholders substituted. Missing
// lists declared variables that had no value.
type RenderedTemplate struct {
	Subject     string   `json:"subject"`
	HTMLContent string   `json:"html_content"`
	TextContent string   `json:"text_content"`
	Missing     []string `json:"missing_variables"`
}

func (s *TemplateService) List(ctx context.Context, f TemplateFilter) ([]models.EmailTemplate, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.EmailTemplate{})
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(subject) LIKE ?", like, like)
	}
	if f.SectorID != nil {
		query = query.Where("sector_id = ?", *f.SectorID)
	}
	if f.Active != nil {
		query = query.Where("active = ?", *f.Active)
	}
	if f.IsDefault != nil {
		query = query.Where("is_default = ?", *f.IsDefault)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}

	sort := utils.ParseSort(f.SortBy, f.SortOrder, templateSortColumns, "created_at")
	var templates []models.EmailTemplate
	err := query.Preload("Sector").Preload("Creator").
		Order(sort.Clause()).
		Offset(f.Offset()).
		Limit(f.Limit).
		Find(&templates).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}
	return templates, total, nil
}

func (s *TemplateService) Get(ctx context.Context, id uint) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	if err := s.DB.WithContext(ctx).Preload("Sector").Preload("Creator").First(&tpl, id).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Template")
	}
	return &tpl, nil
}

func (s *TemplateService) Create(ctx context.Context, in TemplateInput, actorID uint) (*models.EmailTemplate, error) {
	if in.SectorID != nil {
		if err := ensureExists(ctx, s.DB, &models.Sector{}, *in.SectorID, "Sector"); err != nil {
			return nil, err
		}
	}

	variables := in.Variables
	if len(variables) == 0 {
		variables = utils.FindPlaceholders(in.Subject, in.HTMLContent, in.TextContent)
	}

	tpl := models.EmailTemplate{
		Name:        in.Name,
		SectorID:    in.SectorID,
		Subject:     in.Subject,
		HTMLContent: in.HTMLContent,
		TextContent: in.TextContent,
		Variables:   variables,
		IsDefault:   in.IsDefault,
		Active:      in.Active == nil || *in.Active,
		CreatedBy:   actorID,
	}
	if err := s.DB.WithContext(ctx).Create(&tpl).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Template")
	}
	return s.Get(ctx, tpl.ID)
}

func (s *TemplateService) Update(ctx context.Context, id uint, in UpdateTemplateInput) (*models.EmailTemplate, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if in.SectorID != nil {
		if err := ensureExists(ctx, s.DB, &models.Sector{}, *in.SectorID, "Sector"); err != nil {
			return nil, err
		}
	}

	updates := map[string]any{}
	setString(updates, "name", in.Name)
	setString(updates, "subject", in.Subject)
	setString(updates, "html_content", in.HTMLContent)
	setString(updates, "text_content", in.TextContent)
	if in.SectorID != nil {
		updates["sector_id"] = *in.SectorID
	}
	if in.IsDefault != nil {
		updates["is_default"] = *in.IsDefault
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.EmailTemplate{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		// serializer columns only go through the struct path
		if in.Variables != nil {
			return tx.Model(&models.EmailTemplate{ID: id}).Select("variables").
				Updates(&models.EmailTemplate{Variables: in.Variables}).Error
		}
		return nil
	})
	if err != nil {
		return nil, utils.TranslateDBError(err, "Template")
	}
	return s.Get(ctx, id)
}

// Delete hard-deletes a template no campaign uses
func (s *TemplateService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	campaigns, err := countWhere(ctx, s.DB, &models.Campaign{}, "template_id = ?", id)
	if err != nil {
		return fmt.Errorf("count template campaigns: %w", err)
	}
	if campaigns > 0 {
		return utils.NewConflictError("Template is used by %d campaign(s) and cannot be deleted", campaigns)
	}

	err = s.DB.WithContext(ctx).Delete(&models.EmailTemplate{}, id).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return utils.NewConflictError("Template is referenced and cannot be deleted")
	}
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	s.Logger.WithField("template_id", id).Info("Template deleted")
	return nil
}

// Duplicate copies a template's content under a new name owned by actorID.
// The copy is never the default.
func (s *TemplateService) Duplicate(ctx context.Context, id uint, actorID uint) (*models.EmailTemplate, error) {
	original, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	copied := models.EmailTemplate{
		Name:        original.Name + " (Copy)",
		SectorID:    original.SectorID,
		Subject:     original.Subject,
		HTMLContent: original.HTMLContent,
		TextContent: original.TextContent,
		Variables:   append([]string(nil), original.Variables...),
		IsDefault:   false,
		Active:      original.Active,
		CreatedBy:   actorID,
	}
	if err := s.DB.WithContext(ctx).Create(&copied).Error; err != nil {
		return nil, utils.TranslateDBError(err, "Template")
	}
	return s.Get(ctx, copied.ID)
}

// GetDefault returns the active default template, scoped to a sector when given
func (s *TemplateService) GetDefault(ctx context.Context, sectorID *uint) (*models.EmailTemplate, error) {
	query := s.DB.WithContext(ctx).Where("is_default = ? AND active = ?", true, true)
	if sectorID != nil {
		query = query.Where("sector_id = ?", *sectorID)
	}

	var tpl models.EmailTemplate
	err := query.Preload("Sector").Order("updated_at DESC").First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("No default template found")
	}
	if err != nil {
		return nil, fmt.Errorf("get default template: %w", err)
	}
	return &tpl, nil
}

// Render substitutes {{name}} placeholders in subject and bodies
func (s *TemplateService) Render(tpl *models.EmailTemplate, values map[string]any) *RenderedTemplate {
	declared := tpl.Variables
	if len(declared) == 0 {
		declared = utils.FindPlaceholders(tpl.Subject, tpl.HTMLContent, tpl.TextContent)
	}

	missing := []string{}
	for _, name := range declared {
		if v, ok := values[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}

	return &RenderedTemplate{
		Subject:     utils.RenderPlaceholders(tpl.Subject, values),
		HTMLContent: utils.RenderPlaceholders(tpl.HTMLContent, values),
		TextContent: utils.RenderPlaceholders(tpl.TextContent, values),
		Missing:     missing,
	}
}

// RenderEML builds the MIME message a sender would deliver. Nothing is sent.
func (s *TemplateService) RenderEML(ctx context.Context, id uint, values map[string]any, from, to string) ([]byte, *RenderedTemplate, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rendered := s.Render(tpl, values)

	m := gomail.NewMessage()
	if from != "" {
		m.SetHeader("From", from)
	}
	if to != "" {
		m.SetHeader("To", to)
	}
	m.SetHeader("Subject", rendered.Subject)
	if rendered.TextContent != "" {
		m.SetBody("text/plain", rendered.TextContent)
		m.AddAlternative("text/html", rendered.HTMLContent)
	} else {
		m.SetBody("text/html", rendered.HTMLContent)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("build message: %w", err)
	}
	return buf.Bytes(), rendered, nil
}
