package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/types"
	"github.com/sustainareview/sustainareview-api/internal/utils"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

const ResetTokenTTL = 1 * time.Hour

type AuthService struct {
	db           *gorm.DB
	jwtSecret    string
	jwtTTL       time.Duration
	emailChecker EmailChecker
	mailer       Mailer
	baseURL      string
}

type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest accepts either the email or the username.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// emailChecker and mailer may be nil.
func NewAuthService(db *gorm.DB, cfg *config.Config, emailChecker EmailChecker, mailer Mailer) *AuthService {
	ttl := cfg.JWTTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		db:           db,
		jwtSecret:    cfg.JWTSecret,
		jwtTTL:       ttl,
		emailChecker: emailChecker,
		mailer:       mailer,
		baseURL:      cfg.BaseURL,
	}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*types.AuthResponse, error) {
	username := utils.SanitizeString(req.Username)
	email := utils.NormalizeEmail(req.Email)

	if !utils.IsValidUsername(username) {
		return nil, newKindError(ErrValidation, "username must be 3-50 letters, digits, dots, dashes or underscores")
	}
	if !utils.IsValidEmail(email) {
		return nil, newKindError(ErrValidation, "invalid email format")
	}
	if !utils.IsValidPassword(req.Password) {
		return nil, newKindError(ErrValidation, "password must be at least 8 characters")
	}

	if s.emailChecker != nil {
		deliverable, err := s.emailChecker.IsEmailValid(ctx, email)
		if err != nil {
			// The external check is advisory
			logWarn("email validation failed", err)
		} else if !deliverable {
			return nil, newKindError(ErrValidation, "email address is not valid or deliverable")
		}
	}

	if err := ensureUniqueUser(s.db.WithContext(ctx), "", username, email); err != nil {
		return nil, err
	}

	user := models.User{
		Username:  username,
		Email:     email,
		Password:  req.Password, // Will be hashed in BeforeCreate hook
		FirstName: utils.SanitizeString(req.FirstName),
		LastName:  utils.SanitizeString(req.LastName),
		Role:      models.RoleUser,
		IsActive:  true,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%w: failed to create user: %v", ErrDatabaseQuery, err)
	}

	logger.WithFields(logrus.Fields{"user_id": user.ID}).Info("user registered")

	return s.issueToken(&user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*types.AuthResponse, error) {
	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	switch {
	case strings.TrimSpace(req.Email) != "":
		query = query.Where("email = ?", utils.NormalizeEmail(req.Email))
	case strings.TrimSpace(req.Username) != "":
		query = query.Where("username = ?", utils.SanitizeString(req.Username))
	default:
		return nil, newKindError(ErrValidation, "email or username is required")
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: failed to load user: %v", ErrDatabaseQuery, err)
	}

	if !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(&user)
}

func (s *AuthService) issueToken(user *models.User) (*types.AuthResponse, error) {
	token, expiresAt, err := utils.GenerateAccessToken(user.ID, user.Email, user.Role, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &types.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		User:      *user,
	}, nil
}

// ForgotPassword never reveals whether the email has an account.
func (s *AuthService) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	email := utils.NormalizeEmail(req.Email)
	if !utils.IsValidEmail(email) {
		return newKindError(ErrValidation, "invalid email format")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logWarn("password reset lookup failed", err)
		}
		return nil
	}

	resetToken, err := utils.GenerateRandomString(32)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND is_used = ?", user.ID, false).
			Update("is_used", true).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    user.ID,
			Token:     resetToken,
			ExpiresAt: time.Now().Add(ResetTokenTTL),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create reset token: %v", ErrDatabaseQuery, err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetEmail(user.Email, resetToken, s.baseURL); err != nil {
			logger.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).
				Error("failed to send password reset email")
		}
	}

	return nil
}

// ValidateResetToken returns the account the token belongs to.
func (s *AuthService) ValidateResetToken(ctx context.Context, token string) (*models.User, error) {
	resetToken, err := s.findResetToken(s.db.WithContext(ctx), token)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", resetToken.UserID, true).First(&user).Error; err != nil {
		return nil, ErrInvalidResetToken
	}
	return &user, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if !utils.IsValidPassword(req.NewPassword) {
		return newKindError(ErrValidation, "password must be at least 8 characters")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resetToken, err := s.findResetToken(tx, req.Token)
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("id = ? AND is_active = ?", resetToken.UserID, true).First(&user).Error; err != nil {
			return ErrInvalidResetToken
		}

		if err := user.UpdatePassword(req.NewPassword); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := tx.Model(&user).Update("password", user.Password).Error; err != nil {
			return fmt.Errorf("%w: failed to save new password: %v", ErrDatabaseQuery, err)
		}

		// Single use; the conditional update guards against a concurrent reset
		result := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND is_used = ?", resetToken.ID, false).
			Update("is_used", true)
		if result.Error != nil {
			return fmt.Errorf("%w: failed to consume reset token: %v", ErrDatabaseQuery, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidResetToken
		}
		return nil
	})
}

func (s *AuthService) findResetToken(db *gorm.DB, token string) (*models.PasswordResetToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidResetToken
	}

	var resetToken models.PasswordResetToken
	if err := db.Where("token = ? AND is_used = ? AND expires_at > ?", token, false, time.Now()).
		First(&resetToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("%w: failed to load reset token: %v", ErrDatabaseQuery, err)
	}
	return &resetToken, nil
}

// ensureUniqueUser rejects a username or email held by a user other than excludeID.
func ensureUniqueUser(db *gorm.DB, excludeID, username, email string) error {
	query := db.Model(&models.User{}).Where("(username = ? OR email = ?)", username, email)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("%w: failed to check existing users: %v", ErrDatabaseQuery, err)
	}
	if count > 0 {
		return ErrUserExists
	}
	return nil
}
