package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sustainareview/sustainareview-api/internal/models"
	"gorm.io/gorm"
)

type BookmarkService struct {
	db *gorm.DB
}

func NewBookmarkService(db *gorm.DB) *BookmarkService {
	return &BookmarkService{db: db}
}

func (s *BookmarkService) Add(ctx context.Context, userID, productID string) (*models.Bookmark, error) {
	db := s.db.WithContext(ctx)
	if err := ensureProductExists(db, productID); err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.Bookmark{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to check bookmark: %v", ErrDatabaseQuery, err)
	}
	if count > 0 {
		return nil, ErrAlreadyBookmarked
	}

	bookmark := models.Bookmark{UserID: userID, ProductID: productID}
	if err := db.Create(&bookmark).Error; err != nil {
		// Lost a race against a concurrent request
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyBookmarked
		}
		return nil, insertError(err, "bookmark")
	}
	return &bookmark, nil
}

func (s *BookmarkService) Remove(ctx context.Context, userID, productID string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Bookmark{})
	if result.Error != nil {
		return fmt.Errorf("%w: failed to delete bookmark: %v", ErrDatabaseQuery, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookmarkNotFound
	}
	return nil
}

// List returns the bookmarked products, newest bookmark first.
func (s *BookmarkService) List(ctx context.Context, userID string) ([]models.ProductSummary, error) {
	var bookmarks []models.Bookmark
	if err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Product.Attributes").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&bookmarks).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to fetch bookmarks: %v", ErrDatabaseQuery, err)
	}

	products := make([]models.ProductSummary, 0, len(bookmarks))
	for _, bookmark := range bookmarks {
		if bookmark.Product == nil {
			continue
		}
		products = append(products, bookmark.Product.Summary())
	}
	return products, nil
}

func ensureProductExists(db *gorm.DB, productID string) error {
	var count int64
	if err := db.Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
		return fmt.Errorf("%w: failed to check product: %v", ErrDatabaseQuery, err)
	}
	if count == 0 {
		return ErrProductNotFound
	}
	return nil
}
