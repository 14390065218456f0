package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/models"
	"outreach/utils"
)

type UserService struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		DB:     db,
		Logger: utils.NewLogger("user"),
	}
}

type CreateUserInput struct {
	Email    string      `json:"email" validate:"required,email,max=255"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Name     string      `json:"name" validate:"required,max=255"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=admin commercial viewer"`
}

type UpdateUserInput struct {
	Email  *string      `json:"email" validate:"omitempty,email,max=255"`
	Name   *string      `json:"name" validate:"omitempty,min=1,max=255"`
	Role   *models.Role `json:"role" validate:"omitempty,oneof=admin commercial viewer"`
	Active *bool        `json:"active"`
}

type UserFilter struct {
	utils.Pagination
	Role   models.Role
	Active *bool
	Search string
}

type UserStats struct {
	Total    int64                 `json:"total"`
	Active   int64                 `json:"active"`
	Inactive int64                 `json:"inactive"`
	ByRole   map[models.Role]int64 `json:"by_role"`
}

func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.User{})
	if f.Role != "" {
		if !f.Role.Valid() {
			return nil, 0, utils.NewValidationError("Invalid role: %s", f.Role)
		}
		query = query.Where("role = ?", f.Role)
	}
	if f.Active != nil {
		query = query.Where("active = ?", *f.Active)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	err := query.Order("created_at DESC").Offset(f.Offset()).Limit(f.Limit).Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, utils.TranslateDBError(err, "User")
	}
	return &user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, utils.TranslateDBError(err, "User")
	}
	return &user, nil
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	name, err := requiredName(in.Name)
	if err != nil {
		return nil, err
	}
	email := utils.NormalizeEmail(in.Email)
	if _, err := s.GetByEmail(ctx, email); err == nil {
		return nil, utils.NewConflictError("User with this email already exists")
	}

	role := in.Role
	if role == "" {
		role = models.RoleCommercial
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Active:       true,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, utils.TranslateDBError(err, "User")
	}

	s.Logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User created")
	return &user, nil
}

func (s *UserService) Update(ctx context.Context, id uint, in UpdateUserInput) (*models.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Email != nil {
		email := utils.NormalizeEmail(*in.Email)
		taken, err := countWhere(ctx, s.DB, &models.User{}, "email = ? AND id <> ?", email, id)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken > 0 {
			return nil, utils.NewConflictError("Email already in use")
		}
		updates["email"] = email
	}
	if in.Name != nil {
		name, err := requiredName(*in.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Role != nil {
		updates["role"] = *in.Role
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}

	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, utils.TranslateDBError(err, "User")
		}
	}
	return s.Get(ctx, id)
}

// Deactivate disables the account; the row is kept for attribution
func (s *UserService) Deactivate(ctx context.Context, id uint) error {
	return s.setActive(ctx, id, false)
}

func (s *UserService) Reactivate(ctx context.Context, id uint) error {
	return s.setActive(ctx, id, true)
}

func (s *UserService) setActive(ctx context.Context, id uint, active bool) error {
	updates := map[string]any{"active": active}
	if active {
		updates["failed_login_attempts"] = 0
	}
	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("User not found")
	}

	s.Logger.WithFields(logrus.Fields{"user_id": id, "active": active}).Info("User active flag changed")
	return nil
}

// ResetPassword sets a new password and unlocks the account
func (s *UserService) ResetPassword(ctx context.Context, id uint, password string) error {
	if len(password) < 8 {
		return utils.NewValidationError("Password must be at least 8 characters")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":         hash,
		"failed_login_attempts": 0,
	})
	if result.Error != nil {
		return fmt.Errorf("reset password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFoundError("User not found")
	}
	return nil
}

func (s *UserService) Stats(ctx context.Context) (*UserStats, error) {
	stats := &UserStats{ByRole: map[models.Role]int64{}}

	db := s.DB.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&models.User{}).Where("active = ?", true).Count(&stats.Active).Error; err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}
	stats.Inactive = stats.Total - stats.Active

	var rows []struct {
		Role  models.Role
		Count int64
	}
	if err := db.Model(&models.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	for _, r := range rows {
		stats.ByRole[r.Role] = r.Count
	}
	return stats, nil
}

// EnsureAdmin creates the bootstrap admin account when no user has the email
func (s *UserService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		return err
	}

	if name == "" {
		name = "Administrator"
	}
	_, err = s.Create(ctx, CreateUserInput{Email: email, Password: password, Name: name, Role: models.RoleAdmin})
	if err != nil && !utils.IsConflict(err) {
		return err
	}
	return nil
}
