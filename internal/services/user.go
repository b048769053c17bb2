package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/utils"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

type UserService struct {
	db      *gorm.DB
	storage PhotoStorage
	cache   CatalogCache
}

type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func NewUserService(db *gorm.DB, storage PhotoStorage, cache CatalogCache) *UserService {
	return &UserService{db: db, storage: storage, cache: cache}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return findActiveUser(s.db.WithContext(ctx), userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	db := s.db.WithContext(ctx)
	user, err := findActiveUser(db, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := utils.SanitizeString(*req.Username)
		if !utils.IsValidUsername(username) {
			return nil, newKindError(ErrValidation, "username must be 3-50 letters, digits, dots, dashes or underscores")
		}
		user.Username = username
	}
	if req.Email != nil {
		email := utils.NormalizeEmail(*req.Email)
		if !utils.IsValidEmail(email) {
			return nil, newKindError(ErrValidation, "invalid email format")
		}
		user.Email = email
	}
	if req.FirstName != nil {
		user.FirstName = utils.SanitizeString(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = utils.SanitizeString(*req.LastName)
	}

	if err := ensureUniqueUser(db, user.ID, user.Username, user.Email); err != nil {
		return nil, err
	}

	if err := db.Model(user).Updates(map[string]interface{}{
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("%w: failed to update profile: %v", ErrDatabaseQuery, err)
	}

	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if !utils.IsValidPassword(req.NewPassword) {
		return newKindError(ErrValidation, "password must be at least 8 characters")
	}

	db := s.db.WithContext(ctx)
	user, err := findActiveUser(db, userID)
	if err != nil {
		return err
	}

	if !user.CheckPassword(req.CurrentPassword) {
		return newKindError(ErrUnauthorized, "current password is incorrect")
	}

	if err := user.UpdatePassword(req.NewPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := db.Model(user).Update("password", user.Password).Error; err != nil {
		return fmt.Errorf("%w: failed to save new password: %v", ErrDatabaseQuery, err)
	}
	return nil
}

// DeleteAccount removes the user together with their reviews, votes, photos and bookmarks.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	var storageKeys []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findActiveUser(tx, userID)
		if err != nil {
			return err
		}

		var reviews []models.Review
		if err := tx.Where("user_id = ?", user.ID).Find(&reviews).Error; err != nil {
			return err
		}
		reviewIDs := make([]string, 0, len(reviews))
		productIDs := make(map[string]struct{})
		for _, review := range reviews {
			reviewIDs = append(reviewIDs, review.ID)
			if review.ModerationStatus == models.ModerationApproved {
				productIDs[review.ProductID] = struct{}{}
			}
		}

		// Reviews the user voted on need their helpful counts refreshed
		var votedReviewIDs []string
		if err := tx.Model(&models.ReviewVote{}).
			Where("user_id = ?", user.ID).
			Pluck("review_id", &votedReviewIDs).Error; err != nil {
			return err
		}

		photoQuery := tx.Model(&models.ReviewPhoto{}).Where("user_id = ?", user.ID)
		if len(reviewIDs) > 0 {
			photoQuery = photoQuery.Or("review_id IN ?", reviewIDs)
		}
		if err := photoQuery.Pluck("storage_key", &storageKeys).Error; err != nil {
			return err
		}

		voteQuery := tx.Where("user_id = ?", user.ID)
		if len(reviewIDs) > 0 {
			voteQuery = voteQuery.Or("review_id IN ?", reviewIDs)
		}
		if err := voteQuery.Delete(&models.ReviewVote{}).Error; err != nil {
			return err
		}

		photoDelete := tx.Where("user_id = ?", user.ID)
		if len(reviewIDs) > 0 {
			photoDelete = photoDelete.Or("review_id IN ?", reviewIDs)
		}
		if err := photoDelete.Delete(&models.ReviewPhoto{}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Bookmark{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(user).Error; err != nil {
			return err
		}

		for productID := range productIDs {
			if err := recomputeProductRating(tx, productID); err != nil {
				return err
			}
		}
		for _, reviewID := range votedReviewIDs {
			if err := recomputeHelpfulCount(tx, reviewID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: failed to delete account: %v", ErrDatabaseQuery, err)
	}

	if s.storage != nil {
		deleteStoredPhotos(ctx, s.storage, storageKeys)
	}
	invalidateCatalog(ctx, s.cache)

	logger.WithFields(logrus.Fields{"user_id": userID}).Info("account deleted")
	return nil
}

func findActiveUser(db *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: failed to load user: %v", ErrDatabaseQuery, err)
	}
	return &user, nil
}
