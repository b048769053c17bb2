package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/types"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
	QueryTimeout    = 30 * time.Second
)

// sortColumns whitelists the sortable fields.
var sortColumns = map[string]string{
	"name":                 "LOWER(products.name)",
	"brand":                "LOWER(products.brand)",
	"sustainability_score": "products.sustainability_score",
	"ethical_score":        "products.ethical_score",
	"durability_score":     "products.durability_score",
	"average_rating":       "products.average_rating",
	"review_count":         "products.review_count",
	"created_at":           "products.created_at",
}

type ProductService struct {
	db    *gorm.DB
	cache CatalogCache
}

func NewProductService(db *gorm.DB, cache CatalogCache) *ProductService {
	if db == nil {
		panic("database connection cannot be nil")
	}
	return &ProductService{
		db:    db,
		cache: cache,
	}
}

type ProductFilter struct {
	Query             string   `json:"q"`
	Category          string   `json:"category"`
	Brand             string   `json:"brand"`
	MinSustainability float64  `json:"min_sustainability"`
	MinEthical        float64  `json:"min_ethical"`
	MinDurability     float64  `json:"min_durability"`
	AttributeIDs      []string `json:"attributes"`
	SortBy            string   `json:"sort_by"`
	SortOrder         string   `json:"sort_order"`
	Page              int      `json:"page"`
	PageSize          int      `json:"page_size"`
}

// ValidateAndNormalize validates and normalizes filter parameters
func (f *ProductFilter) ValidateAndNormalize() error {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}

	thresholds := map[string]float64{
		"min_sustainability": f.MinSustainability,
		"min_ethical":        f.MinEthical,
		"min_durability":     f.MinDurability,
	}
	for name, value := range thresholds {
		if math.IsNaN(value) || value < 0 || value > 5 {
			return fmt.Errorf("%w: %s must be between 0 and 5", ErrInvalidFilter, name)
		}
	}

	f.SortBy = strings.ToLower(strings.TrimSpace(f.SortBy))
	if f.SortBy == "" {
		f.SortBy = "created_at"
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		return fmt.Errorf("%w: unsupported sort field %q", ErrInvalidFilter, f.SortBy)
	}

	f.SortOrder = strings.ToLower(strings.TrimSpace(f.SortOrder))
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	if f.SortOrder != "asc" && f.SortOrder != "desc" {
		return fmt.Errorf("%w: sort_order must be asc or desc", ErrInvalidFilter)
	}

	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.TrimSpace(f.Category)
	f.Brand = strings.TrimSpace(f.Brand)
	if len(f.Query) > 255 {
		return fmt.Errorf("%w: search term too long", ErrInvalidFilter)
	}

	// Sorted so equivalent filters share a cache key
	f.AttributeIDs = uniqueTrimmed(f.AttributeIDs)
	sort.Strings(f.AttributeIDs)

	return nil
}

// ListProducts runs the catalog query and returns one page of summaries.
func (s *ProductService) ListProducts(ctx context.Context, filter ProductFilter) (*types.ProductPage, error) {
	if err := filter.ValidateAndNormalize(); err != nil {
		return nil, err
	}

	cacheKey := catalogCacheKey(filter)
	cacheable := s.cache != nil
	var generation int64
	if cacheable {
		var cached types.ProductPage
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("catalog cache read failed: ", err)
		} else if hit {
			return &cached, nil
		}
		// Read before querying so a concurrent write makes this page stale.
		if generation, err = s.cache.Generation(ctx); err != nil {
			logger.Warn("catalog cache generation read failed: ", err)
			cacheable = false
		}
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	var total int64
	if err := s.applyFilters(s.db.WithContext(ctx).Model(&models.Product{}), filter).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to count products: %v", ErrDatabaseQuery, err)
	}

	page := &types.ProductPage{
		Products: []models.ProductSummary{},
		Pagination: types.Pagination{
			CurrentPage:   filter.Page,
			PageSize:      filter.PageSize,
			TotalPages:    totalPages(total, filter.PageSize),
			TotalProducts: total,
		},
	}

	// Pages past the end stay empty; the offset of a huge page would overflow.
	if filter.Page <= page.Pagination.TotalPages {
		var products []models.Product
		offset := (filter.Page - 1) * filter.PageSize
		order := fmt.Sprintf("%s %s", sortColumns[filter.SortBy], strings.ToUpper(filter.SortOrder))
		if err := s.applyFilters(s.db.WithContext(ctx).Model(&models.Product{}), filter).
			Preload("Attributes").
			Order(order).
			Order("products.id ASC").
			Offset(offset).
			Limit(filter.PageSize).
			Find(&products).Error; err != nil {
			return nil, fmt.Errorf("%w: failed to fetch products: %v", ErrDatabaseQuery, err)
		}
		for i := range products {
			page.Products = append(page.Products, products[i].Summary())
		}
	}

	if cacheable {
		if err := s.cache.Set(ctx, cacheKey, page, generation); err != nil {
			logger.Warn("catalog cache write failed: ", err)
		}
	}

	return page, nil
}

// applyFilters applies search filters to the query
func (s *ProductService) applyFilters(query *gorm.DB, filter ProductFilter) *gorm.DB {
	if filter.Query != "" {
		searchTerm := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where(
			"(LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.brand) LIKE ?)",
			searchTerm, searchTerm, searchTerm,
		)
	}

	if filter.Category != "" {
		query = query.Where(
			"products.category_id IN (?)",
			s.db.Model(&models.Category{}).Select("id").Where("id = ? OR slug = ?", filter.Category, filter.Category),
		)
	}

	if filter.Brand != "" {
		query = query.Where("LOWER(products.brand) = ?", strings.ToLower(filter.Brand))
	}

	if filter.MinSustainability > 0 {
		query = query.Where("products.sustainability_score >= ?", filter.MinSustainability)
	}
	if filter.MinEthical > 0 {
		query = query.Where("products.ethical_score >= ?", filter.MinEthical)
	}
	if filter.MinDurability > 0 {
		query = query.Where("products.durability_score >= ?", filter.MinDurability)
	}

	// A product must carry every requested attribute
	if len(filter.AttributeIDs) > 0 {
		query = query.Where(
			"products.id IN (?)",
			s.db.Table("product_attributes").
				Select("product_id").
				Where("attribute_id IN ?", filter.AttributeIDs).
				Group("product_id").
				Having("COUNT(DISTINCT attribute_id) = ?", len(filter.AttributeIDs)),
		)
	}

	return query
}

// GetProductByID returns a product with its category and attributes.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrProductNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	var product models.Product
	if err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Attributes").
		Where("id = ?", id).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: failed to fetch product: %v", ErrDatabaseQuery, err)
	}
	if product.Attributes == nil {
		product.Attributes = []models.Attribute{}
	}

	return &product, nil
}

func (s *ProductService) GetCategories(ctx context.Context) ([]models.Category, error) {
	categories := make([]models.Category, 0)
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to fetch categories: %v", ErrDatabaseQuery, err)
	}
	return categories, nil
}

// GetAttributes lists attributes, optionally restricted to one type.
func (s *ProductService) GetAttributes(ctx context.Context, attrType string) ([]models.Attribute, error) {
	query := s.db.WithContext(ctx).Order("type").Order("name")
	if attrType != "" {
		if !models.IsValidAttributeType(attrType) {
			return nil, fmt.Errorf("%w: unknown attribute type %q", ErrValidation, attrType)
		}
		query = query.Where("type = ?", attrType)
	}

	attributes := make([]models.Attribute, 0)
	if err := query.Find(&attributes).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to fetch attributes: %v", ErrDatabaseQuery, err)
	}
	return attributes, nil
}

// uniqueTrimmed drops blanks and repeats, keeping first-seen order.
func uniqueTrimmed(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		pages++
	}
	return pages
}
