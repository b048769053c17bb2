package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, stats)
}

// GetReviews lists reviews by moderation status, pending by default.
func (h *AdminHandler) GetReviews(c *gin.Context) {
	reviews, err := h.adminService.ListReviewsByStatus(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"reviews": reviews})
}

func (h *AdminHandler) ModerateReview(c *gin.Context) {
	var req services.ModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "status must be approved or rejected")
		return
	}

	review, err := h.adminService.ModerateReview(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, review)
}

func (h *AdminHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid product data: "+err.Error())
		return
	}

	product, err := h.adminService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, product)
}

func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid product data: "+err.Error())
		return
	}

	product, err := h.adminService.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, product)
}

func (h *AdminHandler) DeleteProduct(c *gin.Context) {
	if err := h.adminService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	utils.SendMessage(c, "Product deleted successfully")
}

// UploadCSV bulk-imports products from a CSV file in the "file" field.
func (h *AdminHandler) UploadCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		utils.SendValidationError(c, "CSV file is required")
		return
	}

	result, err := h.adminService.ImportProductsCSV(c.Request.Context(), file)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, result)
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid category data")
		return
	}

	category, err := h.adminService.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, category)
}

func (h *AdminHandler) CreateAttribute(c *gin.Context) {
	var req models.CreateAttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid attribute data")
		return
	}

	attribute, err := h.adminService.CreateAttribute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendCreated(c, attribute)
}
