package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
)

// UserHandler serves the /users/me endpoints.
type UserHandler struct {
	userService     *services.UserService
	reviewService   *services.ReviewService
	bookmarkService *services.BookmarkService
}

func NewUserHandler(userService *services.UserService, reviewService *services.ReviewService, bookmarkService *services.BookmarkService) *UserHandler {
	return &UserHandler{
		userService:     userService,
		reviewService:   reviewService,
		bookmarkService: bookmarkService,
	}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, user)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Current and new password are required")
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), currentUserID(c), req); err != nil {
		respondError(c, err)
		return
	}
	utils.SendMessage(c, "Password changed successfully")
}

func (h *UserHandler) DeleteAccount(c *gin.Context) {
	if err := h.userService.DeleteAccount(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	utils.SendMessage(c, "Account deleted")
}

func (h *UserHandler) GetMyReviews(c *gin.Context) {
	reviews, err := h.reviewService.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"reviews": reviews})
}

func (h *UserHandler) GetMyBookmarks(c *gin.Context) {
	products, err := h.bookmarkService.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"products": products})
}
