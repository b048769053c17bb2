package handlers

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

type VoteRequest struct {
	IsHelpful *bool `json:"is_helpful" binding:"required"`
}

// SubmitReview accepts either a JSON body or a multipart form with photos.
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	var (
		input services.ReviewInput
		files []*multipart.FileHeader
		err   error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		input, files, err = parseReviewForm(c)
		if err != nil {
			utils.SendValidationError(c, err.Error())
			return
		}
	} else if err := c.ShouldBindJSON(&input); err != nil {
		utils.SendValidationError(c, "Invalid review data")
		return
	}

	review, err := h.reviewService.Submit(c.Request.Context(), currentUserID(c), c.Param("id"), input, files)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendCreated(c, review)
}

func (h *ReviewHandler) GetProductReviews(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	reviews, err := h.reviewService.ListForProduct(c.Request.Context(), c.Param("id"), page, pageSize, c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, reviews)
}

func (h *ReviewHandler) GetReview(c *gin.Context) {
	review, err := h.reviewService.Get(c.Request.Context(), c.Param("id"), currentUserID(c), currentUserIsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, review)
}

func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	var input services.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.SendValidationError(c, "Invalid review data")
		return
	}

	review, err := h.reviewService.Update(c.Request.Context(), currentUserID(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, review)
}

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	if err := h.reviewService.Delete(c.Request.Context(), currentUserID(c), currentUserIsAdmin(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.SendMessage(c, "Review deleted")
}

func (h *ReviewHandler) VoteReview(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "is_helpful is required")
		return
	}

	review, err := h.reviewService.Vote(c.Request.Context(), currentUserID(c), c.Param("id"), *req.IsHelpful)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"review_id": review.ID, "helpful_count": review.HelpfulCount})
}

// UploadPhoto handles POST /upload/photo.
func (h *ReviewHandler) UploadPhoto(c *gin.Context) {
	header, err := c.FormFile("photo")
	if err != nil {
		utils.SendValidationError(c, "photo file is required")
		return
	}

	photo, err := h.reviewService.UploadPhoto(c.Request.Context(), currentUserID(c), header)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, gin.H{"id": photo.ID, "url": photo.URL})
}

func parseReviewForm(c *gin.Context) (services.ReviewInput, []*multipart.FileHeader, error) {
	var input services.ReviewInput

	form, err := c.MultipartForm()
	if err != nil {
		return input, nil, fmt.Errorf("invalid multipart form")
	}

	input.Title = c.PostForm("title")
	input.Body = c.PostForm("body")

	if input.OverallRating, err = formInt(c, "overall_rating"); err != nil {
		return input, nil, err
	}
	ratings := map[string]**int{
		"sustainability_rating": &input.SustainabilityRating,
		"ethical_rating":        &input.EthicalRating,
		"durability_rating":     &input.DurabilityRating,
	}
	for name, dest := range ratings {
		if c.PostForm(name) == "" {
			continue
		}
		value, err := formInt(c, name)
		if err != nil {
			return input, nil, err
		}
		*dest = &value
	}

	switch strings.ToLower(strings.TrimSpace(c.PostForm("confirmed"))) {
	case "true", "1", "on", "yes":
		input.Confirmed = true
	}

	for _, value := range form.Value["photo_ids"] {
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				input.PhotoIDs = append(input.PhotoIDs, id)
			}
		}
	}

	files := append(form.File["photos"], form.File["photos[]"]...)
	return input, files, nil
}

func formInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return value, nil
}
