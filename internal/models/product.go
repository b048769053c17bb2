// models/product.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AttributeSustainability = "sustainability"
	AttributeEthical        = "ethical"
	AttributeDurability     = "durability"
)

type Category struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Slug        string    `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Attribute is a tag such as "Vegan" or "Fair Trade Certified".
type Attribute struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Type        string `json:"type" gorm:"type:varchar(20);not null;index;check:type IN ('sustainability','ethical','durability')"`
	Description string `json:"description"`
}

func (a *Attribute) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func IsValidAttributeType(t string) bool {
	switch t {
	case AttributeSustainability, AttributeEthical, AttributeDurability:
		return true
	}
	return false
}

type Product struct {
	ID                  string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name                string      `json:"name" gorm:"not null;index"`
	Brand               string      `json:"brand" gorm:"index"`
	Description         string      `json:"description"`
	ImageURL            string      `json:"image_url"`
	CategoryID          *string     `json:"category_id" gorm:"type:varchar(36);index"`
	Category            *Category   `json:"category,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	SustainabilityScore float64     `json:"sustainability_score" gorm:"default:0;check:sustainability_score >= 0 AND sustainability_score <= 5"`
	EthicalScore        float64     `json:"ethical_score" gorm:"default:0;check:ethical_score >= 0 AND ethical_score <= 5"`
	DurabilityScore     float64     `json:"durability_score" gorm:"default:0;check:durability_score >= 0 AND durability_score <= 5"`
	AverageRating       float64     `json:"average_rating" gorm:"default:0"`
	ReviewCount         int         `json:"review_count" gorm:"default:0"`
	Attributes          []Attribute `json:"attributes" gorm:"many2many:product_attributes;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProductSummary is the catalog listing row.
type ProductSummary struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Brand               string      `json:"brand"`
	ImageURL            string      `json:"image_url"`
	CategoryID          *string     `json:"category_id"`
	SustainabilityScore float64     `json:"sustainability_score"`
	EthicalScore        float64     `json:"ethical_score"`
	DurabilityScore     float64     `json:"durability_score"`
	AverageRating       float64     `json:"average_rating"`
	ReviewCount         int         `json:"review_count"`
	Attributes          []Attribute `json:"attributes"`
}

func (p *Product) Summary() ProductSummary {
	attrs := p.Attributes
	if attrs == nil {
		attrs = []Attribute{}
	}
	return ProductSummary{
		ID:                  p.ID,
		Name:                p.Name,
		Brand:               p.Brand,
		ImageURL:            p.ImageURL,
		CategoryID:          p.CategoryID,
		SustainabilityScore: p.SustainabilityScore,
		EthicalScore:        p.EthicalScore,
		DurabilityScore:     p.DurabilityScore,
		AverageRating:       p.AverageRating,
		ReviewCount:         p.ReviewCount,
		Attributes:          attrs,
	}
}

// Request structs for API
type CreateProductRequest struct {
	Name                string   `json:"name" binding:"required,max=255"`
	Brand               string   `json:"brand" binding:"max=100"`
	Description         string   `json:"description" binding:"max=5000"`
	ImageURL            string   `json:"image_url" binding:"omitempty,url"`
	CategoryID          *string  `json:"category_id"`
	SustainabilityScore float64  `json:"sustainability_score" binding:"gte=0,lte=5"`
	EthicalScore        float64  `json:"ethical_score" binding:"gte=0,lte=5"`
	DurabilityScore     float64  `json:"durability_score" binding:"gte=0,lte=5"`
	AttributeIDs        []string `json:"attribute_ids"`
}

type UpdateProductRequest struct {
	Name                *string   `json:"name,omitempty"`
	Brand               *string   `json:"brand,omitempty"`
	Description         *string   `json:"description,omitempty"`
	ImageURL            *string   `json:"image_url,omitempty"`
	CategoryID          *string   `json:"category_id,omitempty"`
	SustainabilityScore *float64  `json:"sustainability_score,omitempty"`
	EthicalScore        *float64  `json:"ethical_score,omitempty"`
	DurabilityScore     *float64  `json:"durability_score,omitempty"`
	AttributeIDs        *[]string `json:"attribute_ids,omitempty"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug" binding:"omitempty,max=100"`
	Description string `json:"description"`
}

type CreateAttributeRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Type        string `json:"type" binding:"required,oneof=sustainability ethical durability"`
	Description string `json:"description"`
}
