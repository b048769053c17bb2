// types/responses.go
package types

import "github.com/sustainareview/sustainareview-api/internal/models"

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
	User      models.User `json:"user"`
}

type Pagination struct {
	CurrentPage   int   `json:"current_page"`
	PageSize      int   `json:"page_size"`
	TotalPages    int   `json:"total_pages"`
	TotalProducts int64 `json:"total_products"`
}

type ProductPage struct {
	Products   []models.ProductSummary `json:"products"`
	Pagination Pagination              `json:"pagination"`
}

type ReviewPage struct {
	Reviews    []models.Review `json:"reviews"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"total_pages"`
}

type DashboardStats struct {
	TotalUsers      int64 `json:"total_users"`
	TotalProducts   int64 `json:"total_products"`
	TotalReviews    int64 `json:"total_reviews"`
	PendingReviews  int64 `json:"pending_reviews"`
	ApprovedReviews int64 `json:"approved_reviews"`
	RejectedReviews int64 `json:"rejected_reviews"`
	TotalBookmarks  int64 `json:"total_bookmarks"`
	TotalCategories int64 `json:"total_categories"`
	TotalAttributes int64 `json:"total_attributes"`
}

type ProductImportResult struct {
	Message        string   `json:"message"`
	ProcessedCount int      `json:"processed_count"`
	FailedRows     []string `json:"failed_rows"`
}
