// services/admin.go
package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/types"
	"github.com/sustainareview/sustainareview-api/internal/utils"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

type AdminService struct {
	db        *gorm.DB
	storage   PhotoStorage
	cache     CatalogCache
	publisher EventPublisher
}

type ModerationRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
	Note   string `json:"note" binding:"max=1000"`
}

func NewAdminService(db *gorm.DB, storage PhotoStorage, cache CatalogCache, publisher EventPublisher) *AdminService {
	return &AdminService{
		db:        db,
		storage:   storage,
		cache:     cache,
		publisher: publisher,
	}
}

func (s *AdminService) GetDashboardStats(ctx context.Context) (*types.DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &types.DashboardStats{}

	counts := []struct {
		model interface{}
		where string
		arg   interface{}
		dest  *int64
	}{
		{&models.User{}, "is_active = ?", true, &stats.TotalUsers},
		{&models.Product{}, "", nil, &stats.TotalProducts},
		{&models.Review{}, "", nil, &stats.TotalReviews},
		{&models.Review{}, "moderation_status = ?", models.ModerationPending, &stats.PendingReviews},
		{&models.Review{}, "moderation_status = ?", models.ModerationApproved, &stats.ApprovedReviews},
		{&models.Review{}, "moderation_status = ?", models.ModerationRejected, &stats.RejectedReviews},
		{&models.Bookmark{}, "", nil, &stats.TotalBookmarks},
		{&models.Category{}, "", nil, &stats.TotalCategories},
		{&models.Attribute{}, "", nil, &stats.TotalAttributes},
	}
	for _, c := range counts {
		query := db.Model(c.model)
		if c.where != "" {
			query = query.Where(c.where, c.arg)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("%w: failed to compute dashboard stats: %v", ErrDatabaseQuery, err)
		}
	}

	return stats, nil
}

// ListReviewsByStatus is the moderation queue, oldest first.
func (s *AdminService) ListReviewsByStatus(ctx context.Context, status string) ([]models.Review, error) {
	if status == "" {
		status = models.ModerationPending
	}
	if !models.IsValidModerationStatus(status) {
		return nil, newKindError(ErrValidation, fmt.Sprintf("unknown moderation status %q", status))
	}

	reviews := make([]models.Review, 0)
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Photos").
		Where("moderation_status = ?", status).
		Order("created_at ASC").
		Order("id ASC").
		Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to fetch reviews: %v", ErrDatabaseQuery, err)
	}
	setAuthorNames(reviews)
	return reviews, nil
}

// ModerateReview approves or rejects a review and refreshes the product aggregates.
func (s *AdminService) ModerateReview(ctx context.Context, reviewID string, req ModerationRequest) (*models.Review, error) {
	if req.Status != models.ModerationApproved && req.Status != models.ModerationRejected {
		return nil, newKindError(ErrValidation, "status must be approved or rejected")
	}

	var review models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", reviewID).First(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return fmt.Errorf("%w: failed to load review: %v", ErrDatabaseQuery, err)
		}

		if err := tx.Model(&review).Updates(map[string]interface{}{
			"moderation_status": req.Status,
			"moderation_note":   utils.SanitizeString(req.Note),
		}).Error; err != nil {
			return fmt.Errorf("%w: failed to moderate review: %v", ErrDatabaseQuery, err)
		}
		return recomputeProductRating(tx, review.ProductID)
	})
	if err != nil {
		return nil, err
	}

	invalidateCatalog(ctx, s.cache)
	publishEvent(s.publisher, EventReviewModerated, ReviewEvent{
		ReviewID:         review.ID,
		ProductID:        review.ProductID,
		UserID:           review.UserID,
		ModerationStatus: review.ModerationStatus,
		ModerationNote:   review.ModerationNote,
	})
	logger.WithFields(logrus.Fields{
		"review_id": review.ID,
		"status":    review.ModerationStatus,
	}).Info("review moderated")

	return &review, nil
}

func (s *AdminService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if req == nil {
		return nil, newKindError(ErrValidation, "product request cannot be nil")
	}
	if err := validateScores(&req.SustainabilityScore, &req.EthicalScore, &req.DurabilityScore); err != nil {
		return nil, err
	}
	name := utils.SanitizeString(req.Name)
	if name == "" {
		return nil, newKindError(ErrValidation, "product name cannot be empty")
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	categoryID, err := resolveCategoryID(tx, req.CategoryID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	attributes, err := loadAttributes(tx, req.AttributeIDs)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	product := &models.Product{
		Name:                name,
		Brand:               utils.SanitizeString(req.Brand),
		Description:         utils.SanitizeString(req.Description),
		ImageURL:            utils.SanitizeString(req.ImageURL),
		CategoryID:          categoryID,
		SustainabilityScore: req.SustainabilityScore,
		EthicalScore:        req.EthicalScore,
		DurabilityScore:     req.DurabilityScore,
		Attributes:          attributes,
	}

	if err := tx.Create(product).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: failed to create product: %v", ErrDatabaseQuery, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", ErrDatabaseQuery, err)
	}

	invalidateCatalog(ctx, s.cache)
	return s.reloadProduct(ctx, product.ID)
}

func (s *AdminService) UpdateProduct(ctx context.Context, productID string, req *models.UpdateProductRequest) (*models.Product, error) {
	if err := validateScores(req.SustainabilityScore, req.EthicalScore, req.DurabilityScore); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var product models.Product
	if err := tx.Where("id = ?", productID).First(&product).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: failed to load product: %v", ErrDatabaseQuery, err)
	}

	updateData := make(map[string]interface{})
	if req.Name != nil {
		name := utils.SanitizeString(*req.Name)
		if name == "" {
			tx.Rollback()
			return nil, newKindError(ErrValidation, "product name cannot be empty")
		}
		updateData["name"] = name
	}
	if req.Brand != nil {
		updateData["brand"] = utils.SanitizeString(*req.Brand)
	}
	if req.Description != nil {
		updateData["description"] = utils.SanitizeString(*req.Description)
	}
	if req.ImageURL != nil {
		updateData["image_url"] = utils.SanitizeString(*req.ImageURL)
	}
	if req.CategoryID != nil {
		categoryID, err := resolveCategoryID(tx, req.CategoryID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		updateData["category_id"] = categoryID
	}
	if req.SustainabilityScore != nil {
		updateData["sustainability_score"] = *req.SustainabilityScore
	}
	if req.EthicalScore != nil {
		updateData["ethical_score"] = *req.EthicalScore
	}
	if req.DurabilityScore != nil {
		updateData["durability_score"] = *req.DurabilityScore
	}

	if len(updateData) > 0 {
		if err := tx.Model(&product).Updates(updateData).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%w: failed to update product: %v", ErrDatabaseQuery, err)
		}
	}

	if req.AttributeIDs != nil {
		attributes, err := loadAttributes(tx, *req.AttributeIDs)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Model(&product).Association("Attributes").Replace(attributes); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%w: failed to update attributes: %v", ErrDatabaseQuery, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", ErrDatabaseQuery, err)
	}

	invalidateCatalog(ctx, s.cache)
	return s.reloadProduct(ctx, product.ID)
}

// DeleteProduct removes the product with its reviews, photos, votes and bookmarks.
func (s *AdminService) DeleteProduct(ctx context.Context, productID string) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var product models.Product
	if err := tx.Where("id = ?", productID).First(&product).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("%w: failed to load product: %v", ErrDatabaseQuery, err)
	}

	reviewIDs := tx.Model(&models.Review{}).Select("id").Where("product_id = ?", product.ID)

	var storageKeys []string
	if err := tx.Model(&models.ReviewPhoto{}).
		Where("review_id IN (?)", reviewIDs).
		Pluck("storage_key", &storageKeys).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: failed to collect photos: %v", ErrDatabaseQuery, err)
	}

	steps := []func() error{
		func() error { return tx.Where("review_id IN (?)", reviewIDs).Delete(&models.ReviewVote{}).Error },
		func() error { return tx.Where("review_id IN (?)", reviewIDs).Delete(&models.ReviewPhoto{}).Error },
		func() error { return tx.Where("product_id = ?", product.ID).Delete(&models.Review{}).Error },
		func() error { return tx.Where("product_id = ?", product.ID).Delete(&models.Bookmark{}).Error },
		func() error { return tx.Model(&product).Association("Attributes").Clear() },
		func() error { return tx.Delete(&product).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: failed to delete product: %v", ErrDatabaseQuery, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrDatabaseQuery, err)
	}

	deleteStoredPhotos(ctx, s.storage, storageKeys)
	invalidateCatalog(ctx, s.cache)
	return nil
}

func (s *AdminService) CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {
	name := utils.SanitizeString(req.Name)
	slug := utils.Slugify(req.Slug)
	if slug == "" {
		slug = utils.Slugify(name)
	}
	if name == "" || slug == "" {
		return nil, newKindError(ErrValidation, "category name cannot be empty")
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Category{}).Where("name = ? OR slug = ?", name, slug).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to check categories: %v", ErrDatabaseQuery, err)
	}
	if count > 0 {
		return nil, ErrCategoryExists
	}

	category := &models.Category{Name: name, Slug: slug, Description: utils.SanitizeString(req.Description)}
	if err := db.Create(category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("%w: failed to create category: %v", ErrDatabaseQuery, err)
	}
	return category, nil
}

func (s *AdminService) CreateAttribute(ctx context.Context, req *models.CreateAttributeRequest) (*models.Attribute, error) {
	name := utils.SanitizeString(req.Name)
	if name == "" {
		return nil, newKindError(ErrValidation, "attribute name cannot be empty")
	}
	if !models.IsValidAttributeType(req.Type) {
		return nil, newKindError(ErrValidation, "type must be sustainability, ethical or durability")
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Attribute{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to check attributes: %v", ErrDatabaseQuery, err)
	}
	if count > 0 {
		return nil, ErrAttributeExists
	}

	attribute := &models.Attribute{Name: name, Type: req.Type, Description: utils.SanitizeString(req.Description)}
	if err := db.Create(attribute).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAttributeExists
		}
		return nil, fmt.Errorf("%w: failed to create attribute: %v", ErrDatabaseQuery, err)
	}

	invalidateCatalog(ctx, s.cache)
	return attribute, nil
}

// ImportProductsCSV bulk-creates products. Expected columns:
// name,brand,description,image_url,category,sustainability_score,ethical_score,durability_score,attributes
// where category is a slug or name and attributes are attribute names separated by ';'.
func (s *AdminService) ImportProductsCSV(ctx context.Context, file *multipart.FileHeader) (*types.ProductImportResult, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer src.Close()

	return s.importProducts(ctx, src)
}

func (s *AdminService) importProducts(ctx context.Context, src io.Reader) (*types.ProductImportResult, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, newKindError(ErrValidation, "failed to parse CSV file")
	}
	if len(records) < 2 {
		return nil, newKindError(ErrValidation, "CSV file must have header and at least one data row")
	}

	db := s.db.WithContext(ctx)
	result := &types.ProductImportResult{FailedRows: []string{}}

	for i, record := range records[1:] { // Skip header
		row := i + 2
		if len(record) < 8 {
			result.FailedRows = append(result.FailedRows, fmt.Sprintf("Row %d: insufficient columns", row))
			continue
		}

		scores := make([]float64, 3)
		var scoreErr error
		for j := range scores {
			value := strings.TrimSpace(record[5+j])
			if value == "" {
				continue
			}
			if scores[j], scoreErr = strconv.ParseFloat(value, 64); scoreErr != nil || !utils.IsValidScore(scores[j]) {
				scoreErr = fmt.Errorf("invalid score %q", value)
				break
			}
		}
		if scoreErr != nil {
			result.FailedRows = append(result.FailedRows, fmt.Sprintf("Row %d: %s", row, scoreErr.Error()))
			continue
		}

		product := models.Product{
			Name:                strings.TrimSpace(record[0]),
			Brand:               strings.TrimSpace(record[1]),
			Description:         strings.TrimSpace(record[2]),
			ImageURL:            strings.TrimSpace(record[3]),
			SustainabilityScore: scores[0],
			EthicalScore:        scores[1],
			DurabilityScore:     scores[2],
		}
		if product.Name == "" {
			result.FailedRows = append(result.FailedRows, fmt.Sprintf("Row %d: name is required", row))
			continue
		}

		if category := strings.TrimSpace(record[4]); category != "" {
			var found models.Category
			if err := db.Where("slug = ? OR name = ?", utils.Slugify(category), category).First(&found).Error; err != nil {
				result.FailedRows = append(result.FailedRows, fmt.Sprintf("Row %d: unknown category %q", row, category))
				continue
			}
			product.CategoryID = &found.ID
		}

		if len(record) > 8 && strings.TrimSpace(record[8]) != "" {
			names := uniqueTrimmed(strings.Split(record[8], ";"))
			var attributes []models.Attribute
			if err := db.Where("name IN ?", names).Find(&attributes).Error; err != nil || len(attributes) != len(names) {
				result.FailedRows = append(result.FailedRows, fmt.Sprintf("Row %d: unknown attribute", row))
				continue
			}
			product.Attributes = attributes
		}

		if err := db.Create(&product).Error; err != nil {
			result.FailedRows = append(result.FailedRows, fmt.Sprintf("Row %d: %s", row, err.Error()))
			continue
		}
		result.ProcessedCount++
	}

	result.Message = fmt.Sprintf("CSV processed successfully. %d products added", result.ProcessedCount)
	if len(result.FailedRows) > 0 {
		result.Message += fmt.Sprintf(". %d rows failed", len(result.FailedRows))
	}

	if result.ProcessedCount > 0 {
		invalidateCatalog(ctx, s.cache)
	}
	return result, nil
}

func (s *AdminService) reloadProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Attributes").
		Where("id = ?", productID).
		First(&product).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load product: %v", ErrDatabaseQuery, err)
	}
	if product.Attributes == nil {
		product.Attributes = []models.Attribute{}
	}
	return &product, nil
}

func validateScores(scores ...*float64) error {
	for _, score := range scores {
		if score != nil && !utils.IsValidScore(*score) {
			return newKindError(ErrValidation, "scores must be between 0 and 5")
		}
	}
	return nil
}

// resolveCategoryID maps an empty id to no category.
func resolveCategoryID(tx *gorm.DB, categoryID *string) (*string, error) {
	if categoryID == nil || strings.TrimSpace(*categoryID) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*categoryID)

	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to check category: %v", ErrDatabaseQuery, err)
	}
	if count == 0 {
		return nil, ErrCategoryNotFound
	}
	return &id, nil
}

func loadAttributes(tx *gorm.DB, ids []string) ([]models.Attribute, error) {
	attributes := make([]models.Attribute, 0, len(ids))
	if len(ids) == 0 {
		return attributes, nil
	}

	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	if err := tx.Where("id IN ?", ids).Find(&attributes).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to load attributes: %v", ErrDatabaseQuery, err)
	}
	if len(attributes) != len(unique) {
		return nil, ErrAttributeNotFound
	}
	return attributes, nil
}
