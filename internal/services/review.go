package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/types"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

const DefaultReviewPageSize = 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ReviewInput is the body of a review submission or edit.
type ReviewInput struct {
	Title                string   `json:"title" validate:"required,max=200"`
	Body                 string   `json:"body" validate:"required,max=5000"`
	OverallRating        int      `json:"overall_rating" validate:"required,min=1,max=5"`
	SustainabilityRating *int     `json:"sustainability_rating" validate:"omitempty,min=1,max=5"`
	EthicalRating        *int     `json:"ethical_rating" validate:"omitempty,min=1,max=5"`
	DurabilityRating     *int     `json:"durability_rating" validate:"omitempty,min=1,max=5"`
	Confirmed            bool     `json:"confirmed"`
	PhotoIDs             []string `json:"photo_ids" validate:"max=5,dive,required"`
}

// Validate trims the text fields and checks every rule of a review.
func (in *ReviewInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if len(in.PhotoIDs) > 0 {
		in.PhotoIDs = uniqueTrimmed(in.PhotoIDs)
	}

	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	if !in.Confirmed {
		return newKindError(ErrValidation, "you must confirm that this review reflects your own experience")
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newKindError(ErrValidation, err.Error())
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		switch fe.Kind() {
		case reflect.String:
			msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		case reflect.Slice:
			msg = fmt.Sprintf("%s must have at most %s entries", fe.Field(), fe.Param())
		default:
			msg = fmt.Sprintf("%s must be between 1 and 5", fe.Field())
		}
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return newKindError(ErrValidation, msg)
}

type ReviewService struct {
	db        *gorm.DB
	storage   PhotoStorage
	cache     CatalogCache
	publisher EventPublisher
}

// cache and publisher may be nil.
func NewReviewService(db *gorm.DB, storage PhotoStorage, cache CatalogCache, publisher EventPublisher) *ReviewService {
	return &ReviewService{
		db:        db,
		storage:   storage,
		cache:     cache,
		publisher: publisher,
	}
}

// Submit stores the photos and saves the review as pending moderation.
func (s *ReviewService) Submit(ctx context.Context, userID, productID string, input ReviewInput, files []*multipart.FileHeader) (*models.Review, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if len(files)+len(input.PhotoIDs) > MaxPhotosPerReview {
		return nil, newKindError(ErrValidation, fmt.Sprintf("a review can have at most %d photos", MaxPhotosPerReview))
	}
	for _, file := range files {
		if _, err := ValidatePhoto(file); err != nil {
			return nil, err
		}
	}

	if err := ensureProductExists(s.db.WithContext(ctx), productID); err != nil {
		return nil, err
	}

	uploads, err := s.uploadAll(ctx, files)
	if err != nil {
		return nil, err
	}

	review := models.Review{
		ProductID:            productID,
		UserID:               userID,
		Title:                input.Title,
		Body:                 input.Body,
		OverallRating:        input.OverallRating,
		SustainabilityRating: input.SustainabilityRating,
		EthicalRating:        input.EthicalRating,
		DurabilityRating:     input.DurabilityRating,
		ModerationStatus:     models.ModerationPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&review).Error; err != nil {
			return insertError(err, "review")
		}
		if len(uploads) > 0 {
			photos := make([]models.ReviewPhoto, 0, len(uploads))
			for _, upload := range uploads {
				photos = append(photos, models.ReviewPhoto{
					ReviewID:    &review.ID,
					UserID:      userID,
					URL:         upload.URL,
					StorageKey:  upload.Key,
					FileName:    upload.FileName,
					ContentType: upload.ContentType,
					Size:        upload.Size,
				})
			}
			if err := tx.Create(&photos).Error; err != nil {
				return fmt.Errorf("%w: failed to save photos: %v", ErrDatabaseQuery, err)
			}
		}
		return attachPhotos(tx, review.ID, userID, input.PhotoIDs)
	})
	if err != nil {
		deleteStoredPhotos(ctx, s.storage, uploadKeys(uploads))
		return nil, err
	}

	publishEvent(s.publisher, EventReviewSubmitted, ReviewEvent{
		ReviewID:         review.ID,
		ProductID:        review.ProductID,
		UserID:           review.UserID,
		ModerationStatus: review.ModerationStatus,
	})
	logger.WithFields(logrus.Fields{
		"review_id":  review.ID,
		"product_id": productID,
		"photos":     len(uploads) + len(input.PhotoIDs),
	}).Info("review submitted")

	return s.load(s.db.WithContext(ctx), review.ID)
}

// Get hides reviews that are not approved from everyone but their author and admins.
func (s *ReviewService) Get(ctx context.Context, reviewID, viewerID string, viewerIsAdmin bool) (*models.Review, error) {
	review, err := s.load(s.db.WithContext(ctx), reviewID)
	if err != nil {
		return nil, err
	}
	if review.ModerationStatus != models.ModerationApproved && !viewerIsAdmin && review.UserID != viewerID {
		return nil, ErrReviewNotFound
	}
	return review, nil
}

// Update lets the author edit a review, which sends it back to moderation.
func (s *ReviewService) Update(ctx context.Context, userID, reviewID string, input ReviewInput) (*models.Review, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var review models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", reviewID).First(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return fmt.Errorf("%w: failed to load review: %v", ErrDatabaseQuery, err)
		}
		if review.UserID != userID {
			return ErrNotReviewAuthor
		}

		if len(input.PhotoIDs) > 0 {
			var existing int64
			if err := tx.Model(&models.ReviewPhoto{}).Where("review_id = ?", review.ID).Count(&existing).Error; err != nil {
				return err
			}
			if int(existing)+len(input.PhotoIDs) > MaxPhotosPerReview {
				return newKindError(ErrValidation, fmt.Sprintf("a review can have at most %d photos", MaxPhotosPerReview))
			}
		}

		wasApproved := review.ModerationStatus == models.ModerationApproved
		if err := tx.Model(&review).Updates(map[string]interface{}{
			"title":                 input.Title,
			"body":                  input.Body,
			"overall_rating":        input.OverallRating,
			"sustainability_rating": input.SustainabilityRating,
			"ethical_rating":        input.EthicalRating,
			"durability_rating":     input.DurabilityRating,
			"moderation_status":     models.ModerationPending,
			"moderation_note":       "",
		}).Error; err != nil {
			return fmt.Errorf("%w: failed to update review: %v", ErrDatabaseQuery, err)
		}

		if err := attachPhotos(tx, review.ID, userID, input.PhotoIDs); err != nil {
			return err
		}
		if wasApproved {
			return recomputeProductRating(tx, review.ProductID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateCatalog(ctx, s.cache)
	publishEvent(s.publisher, EventReviewSubmitted, ReviewEvent{
		ReviewID:         review.ID,
		ProductID:        review.ProductID,
		UserID:           review.UserID,
		ModerationStatus: models.ModerationPending,
	})

	return s.load(s.db.WithContext(ctx), review.ID)
}

// Delete removes a review; only its author or an admin may do so.
func (s *ReviewService) Delete(ctx context.Context, userID string, isAdmin bool, reviewID string) error {
	var (
		review      models.Review
		storageKeys []string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", reviewID).First(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return fmt.Errorf("%w: failed to load review: %v", ErrDatabaseQuery, err)
		}
		if review.UserID != userID && !isAdmin {
			return ErrNotReviewAuthor
		}

		if err := tx.Model(&models.ReviewPhoto{}).
			Where("review_id = ?", review.ID).
			Pluck("storage_key", &storageKeys).Error; err != nil {
			return err
		}
		if err := tx.Where("review_id = ?", review.ID).Delete(&models.ReviewPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Where("review_id = ?", review.ID).Delete(&models.ReviewVote{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&review).Error; err != nil {
			return err
		}

		if review.ModerationStatus == models.ModerationApproved {
			return recomputeProductRating(tx, review.ProductID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReviewNotFound) || errors.Is(err, ErrNotReviewAuthor) {
			return err
		}
		return fmt.Errorf("%w: failed to delete review: %v", ErrDatabaseQuery, err)
	}

	deleteStoredPhotos(ctx, s.storage, storageKeys)
	if review.ModerationStatus == models.ModerationApproved {
		invalidateCatalog(ctx, s.cache)
	}
	publishEvent(s.publisher, EventReviewDeleted, ReviewEvent{
		ReviewID:         review.ID,
		ProductID:        review.ProductID,
		UserID:           review.UserID,
		ModerationStatus: review.ModerationStatus,
	})
	return nil
}

// ListForProduct pages through the approved reviews of a product.
func (s *ReviewService) ListForProduct(ctx context.Context, productID string, page, pageSize int, sortBy string) (*types.ReviewPage, error) {
	db := s.db.WithContext(ctx)
	if err := ensureProductExists(db, productID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultReviewPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	base := db.Model(&models.Review{}).
		Where("product_id = ? AND moderation_status = ?", productID, models.ModerationApproved)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to count reviews: %v", ErrDatabaseQuery, err)
	}

	query := db.Preload("User").Preload("Photos").
		Where("product_id = ? AND moderation_status = ?", productID, models.ModerationApproved)
	switch sortBy {
	case "helpful":
		query = query.Order("helpful_count DESC").Order("created_at DESC")
	case "rating_high":
		query = query.Order("overall_rating DESC").Order("created_at DESC")
	case "rating_low":
		query = query.Order("overall_rating ASC").Order("created_at DESC")
	case "", "newest":
		query = query.Order("created_at DESC")
	default:
		return nil, newKindError(ErrValidation, fmt.Sprintf("unsupported sort %q", sortBy))
	}

	pages := totalPages(total, pageSize)
	reviews := make([]models.Review, 0)
	if page <= pages {
		if err := query.Order("id ASC").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&reviews).Error; err != nil {
			return nil, fmt.Errorf("%w: failed to fetch reviews: %v", ErrDatabaseQuery, err)
		}
		setAuthorNames(reviews)
	}

	return &types.ReviewPage{
		Reviews:    reviews,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
	}, nil
}

// ListForUser returns every review of the user regardless of moderation status.
func (s *ReviewService) ListForUser(ctx context.Context, userID string) ([]models.Review, error) {
	reviews := make([]models.Review, 0)
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Photos").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to fetch reviews: %v", ErrDatabaseQuery, err)
	}
	setAuthorNames(reviews)
	return reviews, nil
}

// Vote records the caller's helpful/unhelpful vote, replacing an earlier one.
func (s *ReviewService) Vote(ctx context.Context, userID, reviewID string, isHelpful bool) (*models.Review, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var review models.Review
		if err := tx.Where("id = ? AND moderation_status = ?", reviewID, models.ModerationApproved).
			First(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return fmt.Errorf("%w: failed to load review: %v", ErrDatabaseQuery, err)
		}
		if review.UserID == userID {
			return ErrOwnReviewVote
		}

		var vote models.ReviewVote
		err := tx.Where("user_id = ? AND review_id = ?", userID, reviewID).First(&vote).Error
		switch {
		case err == nil:
			if err := tx.Model(&vote).Update("is_helpful", isHelpful).Error; err != nil {
				return fmt.Errorf("%w: failed to update vote: %v", ErrDatabaseQuery, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote = models.ReviewVote{UserID: userID, ReviewID: reviewID, IsHelpful: isHelpful}
			if err := tx.Create(&vote).Error; err != nil {
				return insertError(err, "vote")
			}
		default:
			return fmt.Errorf("%w: failed to load vote: %v", ErrDatabaseQuery, err)
		}

		return recomputeHelpfulCount(tx, reviewID)
	})
	if err != nil {
		return nil, err
	}

	return s.load(s.db.WithContext(ctx), reviewID)
}

// UploadPhoto stores a photo that a later review submission can attach by id.
func (s *ReviewService) UploadPhoto(ctx context.Context, userID string, header *multipart.FileHeader) (*models.ReviewPhoto, error) {
	upload, err := storePhoto(ctx, s.storage, header)
	if err != nil {
		return nil, err
	}

	photo := models.ReviewPhoto{
		UserID:      userID,
		URL:         upload.URL,
		StorageKey:  upload.Key,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		Size:        upload.Size,
	}
	if err := s.db.WithContext(ctx).Create(&photo).Error; err != nil {
		deleteStoredPhotos(ctx, s.storage, []string{upload.Key})
		return nil, insertError(err, "photo")
	}
	return &photo, nil
}

func (s *ReviewService) uploadAll(ctx context.Context, files []*multipart.FileHeader) ([]*UploadResult, error) {
	uploads := make([]*UploadResult, 0, len(files))
	for _, file := range files {
		upload, err := storePhoto(ctx, s.storage, file)
		if err != nil {
			deleteStoredPhotos(ctx, s.storage, uploadKeys(uploads))
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func (s *ReviewService) load(db *gorm.DB, reviewID string) (*models.Review, error) {
	var review models.Review
	if err := db.Preload("User").Preload("Photos").Where("id = ?", reviewID).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("%w: failed to load review: %v", ErrDatabaseQuery, err)
	}
	if review.Photos == nil {
		review.Photos = []models.ReviewPhoto{}
	}
	if review.User != nil {
		review.AuthorName = review.User.Username
	}
	return &review, nil
}

// attachPhotos claims unattached uploads owned by the user.
func attachPhotos(tx *gorm.DB, reviewID, userID string, photoIDs []string) error {
	if len(photoIDs) == 0 {
		return nil
	}
	result := tx.Model(&models.ReviewPhoto{}).
		Where("id IN ? AND user_id = ? AND review_id IS NULL", photoIDs, userID).
		Update("review_id", reviewID)
	if result.Error != nil {
		return fmt.Errorf("%w: failed to attach photos: %v", ErrDatabaseQuery, result.Error)
	}
	if int(result.RowsAffected) != len(photoIDs) {
		return ErrPhotoNotFound
	}
	return nil
}

// recomputeProductRating derives the product aggregates from approved reviews only.
func recomputeProductRating(tx *gorm.DB, productID string) error {
	var stats struct {
		Average *float64
		Count   int64
	}
	if err := tx.Model(&models.Review{}).
		Select("AVG(overall_rating) AS average, COUNT(*) AS count").
		Where("product_id = ? AND moderation_status = ?", productID, models.ModerationApproved).
		Scan(&stats).Error; err != nil {
		return fmt.Errorf("%w: failed to aggregate ratings: %v", ErrDatabaseQuery, err)
	}

	average := 0.0
	if stats.Average != nil {
		average = math.Round(*stats.Average*100) / 100
	}

	return tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]interface{}{
		"average_rating": average,
		"review_count":   stats.Count,
	}).Error
}

func recomputeHelpfulCount(tx *gorm.DB, reviewID string) error {
	var helpful int64
	if err := tx.Model(&models.ReviewVote{}).
		Where("review_id = ? AND is_helpful = ?", reviewID, true).
		Count(&helpful).Error; err != nil {
		return fmt.Errorf("%w: failed to count votes: %v", ErrDatabaseQuery, err)
	}
	return tx.Model(&models.Review{}).Where("id = ?", reviewID).
		UpdateColumn("helpful_count", helpful).Error
}

func setAuthorNames(reviews []models.Review) {
	for i := range reviews {
		if reviews[i].User != nil {
			reviews[i].AuthorName = reviews[i].User.Username
		}
		if reviews[i].Photos == nil {
			reviews[i].Photos = []models.ReviewPhoto{}
		}
	}
}

func uploadKeys(uploads []*UploadResult) []string {
	keys := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		keys = append(keys, upload.Key)
	}
	return keys
}
