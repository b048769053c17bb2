package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// GetAllProducts handles the catalog query.
func (h *ProductHandler) GetAllProducts(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	page, err := h.productService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, page)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, product)
}

func (h *ProductHandler) GetCategories(c *gin.Context) {
	categories, err := h.productService.GetCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, categories)
}

func (h *ProductHandler) GetAttributes(c *gin.Context) {
	attributes, err := h.productService.GetAttributes(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, attributes)
}

func parseProductFilter(c *gin.Context) (services.ProductFilter, error) {
	filter := services.ProductFilter{
		Query:     c.Query("q"),
		Category:  c.Query("category"),
		Brand:     c.Query("brand"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	var err error
	if filter.MinSustainability, err = queryFloat(c, "min_sustainability"); err != nil {
		return filter, err
	}
	if filter.MinEthical, err = queryFloat(c, "min_ethical"); err != nil {
		return filter, err
	}
	if filter.MinDurability, err = queryFloat(c, "min_durability"); err != nil {
		return filter, err
	}

	if filter.Page, err = queryInt(c, "page"); err != nil {
		return filter, err
	}
	pageSizeParam := "page_size"
	if c.Query(pageSizeParam) == "" {
		pageSizeParam = "pageSize"
	}
	if filter.PageSize, err = queryInt(c, pageSizeParam); err != nil {
		return filter, err
	}

	if raw := c.Query("attributes"); raw != "" {
		filter.AttributeIDs = strings.Split(raw, ",")
	}

	return filter, nil
}

// queryFloat returns 0 for a missing parameter.
func queryFloat(c *gin.Context, name string) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return value, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return value, nil
}
