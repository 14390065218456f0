package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outreach/metrics"
	"outreach/models"
	"outreach/utils"
)

// AuthService issues and verifies tokens for user accounts
type AuthService struct {
	DB          *gorm.DB
	Logger      *logrus.Entry
	MaxAttempts int
	Now         func() time.Time
}

func NewAuthService(db *gorm.DB, maxAttempts int) *AuthService {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &AuthService{
		DB:          db,
		Logger:      utils.NewLogger("auth"),
		MaxAttempts: maxAttempts,
		Now:         time.Now,
	}
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.IncrementLoginAttempt("invalid")
		return nil, utils.NewUnauthorizedError("Invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	log := s.Logger.WithField("user_id", user.ID)

	if !user.Active {
		metrics.IncrementLoginAttempt("inactive")
		return nil, utils.NewForbiddenError("Account is inactive")
	}
	if user.FailedLoginAttempts >= s.MaxAttempts {
		metrics.IncrementLoginAttempt("locked")
		log.Warn("Login refused for locked account")
		return nil, utils.NewLockedError("Account locked after too many failed login attempts")
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
			Update("failed_login_attempts", gorm.Expr("failed_login_attempts + 1")).Error
		if err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		metrics.IncrementLoginAttempt("invalid")
		log.WithField("failed_attempts", user.FailedLoginAttempts+1).Warn("Failed login")
		return nil, utils.NewUnauthorizedError("Invalid email or password")
	}

	now := s.Now()
	err = s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"failed_login_attempts": 0,
		"last_login_at":         now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.FailedLoginAttempts = 0
	user.LastLoginAt = &now

	accessToken, refreshToken, err := utils.GenerateJWTToken(&user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	metrics.IncrementLoginAttempt("success")
	log.Info("User logged in")
	return &LoginResult{User: &user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a refresh token for a new access token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := utils.ParseJWTToken(refreshToken)
	if err != nil || claims.Type != utils.TokenTypeRefresh {
		return "", utils.NewUnauthorizedError("Invalid refresh token")
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return "", err
	}

	accessToken, err := utils.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Authenticate resolves an access token to its live, active user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := utils.ParseJWTToken(token)
	if errors.Is(err, utils.ErrTokenExpired) {
		return nil, utils.NewUnauthorizedError("Token expired")
	}
	if err != nil || claims.Type != utils.TokenTypeAccess {
		return nil, utils.NewUnauthorizedError("Invalid token")
	}
	return s.activeUser(ctx, claims.UserID)
}

func (s *AuthService) activeUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewUnauthorizedError("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.Active {
		return nil, utils.NewForbiddenError("Account is inactive")
	}
	return &user, nil
}

// Logout is stateless; clients drop their tokens
func (s *AuthService) Logout(ctx context.Context, userID uint) {
	s.Logger.WithField("user_id", userID).Info("User logged out")
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, in ChangePasswordInput) error {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.PasswordHash, in.CurrentPassword) {
		return utils.NewUnauthorizedError("Current password is incorrect")
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}
