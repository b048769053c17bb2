package database

import (
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/utils"
	"gorm.io/gorm"
)

var defaultCategories = []string{
	"Apparel",
	"Home & Kitchen",
	"Personal Care",
	"Electronics",
	"Food & Beverage",
}

var defaultAttributes = []models.Attribute{
	{Name: "Recycled Materials", Type: models.AttributeSustainability, Description: "Made with post-consumer recycled content"},
	{Name: "Plastic-Free Packaging", Type: models.AttributeSustainability},
	{Name: "Carbon Neutral", Type: models.AttributeSustainability},
	{Name: "Vegan", Type: models.AttributeEthical, Description: "Contains no animal-derived ingredients"},
	{Name: "Fair Trade Certified", Type: models.AttributeEthical},
	{Name: "Cruelty-Free", Type: models.AttributeEthical},
	{Name: "Repairable", Type: models.AttributeDurability, Description: "Spare parts and repair guides are available"},
	{Name: "Lifetime Warranty", Type: models.AttributeDurability},
}

// Seed inserts the default taxonomy, skipping rows that already exist.
func Seed(db *gorm.DB) (int, error) {
	inserted := 0
	for _, name := range defaultCategories {
		category := models.Category{Name: name, Slug: utils.Slugify(name)}
		res := db.Where(models.Category{Slug: category.Slug}).FirstOrCreate(&category)
		if res.Error != nil {
			return inserted, res.Error
		}
		inserted += int(res.RowsAffected)
	}

	for _, attr := range defaultAttributes {
		attribute := attr
		res := db.Where(models.Attribute{Name: attribute.Name}).FirstOrCreate(&attribute)
		if res.Error != nil {
			return inserted, res.Error
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

// SeedAdmin creates an admin account unless the email is already registered.
func SeedAdmin(db *gorm.DB, username, email, password string) (bool, error) {
	admin := models.User{
		Username: username,
		Email:    utils.NormalizeEmail(email),
		Password: password,
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	res := db.Where(models.User{Email: admin.Email}).FirstOrCreate(&admin)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
