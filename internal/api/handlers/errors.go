package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
)

// respondError maps service errors onto status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.SendValidationError(c, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		utils.SendUnauthorized(c, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.SendForbidden(c, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.SendConflict(c, err.Error())
	default:
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"error":  err.Error(),
		}).Error("request failed")
		utils.SendInternalError(c, "Internal server error")
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func currentUserIsAdmin(c *gin.Context) bool {
	return c.GetString("user_role") == models.RoleAdmin
}
