package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
)

type PasswordHandler struct {
	authService *services.AuthService
}

func NewPasswordHandler(authService *services.AuthService) *PasswordHandler {
	return &PasswordHandler{authService: authService}
}

func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req services.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Email is required")
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}

	utils.SendMessage(c, "If an account with that email exists, a password reset link has been sent")
}

func (h *PasswordHandler) ValidateResetToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.SendValidationError(c, "Token is required")
		return
	}

	user, err := h.authService.ValidateResetToken(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{"valid": true, "email": user.Email})
}

func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Token and new password are required")
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}

	utils.SendMessage(c, "Password has been reset successfully")
}
