package services_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/services"
)

func TestListProducts_MinSustainability(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, productOpts{name: "Plastic Bottle", sustainability: 1.5})
	createProduct(t, db, productOpts{name: "Steel Bottle", sustainability: 4.5})
	createProduct(t, db, productOpts{name: "Glass Bottle", sustainability: 4.8})
	createProduct(t, db, productOpts{name: "Bamboo Brush", sustainability: 4.4})

	svc := services.NewProductService(db, nil)
	page, err := svc.ListProducts(context.Background(), services.ProductFilter{MinSustainability: 4.5})
	require.NoError(t, err)

	assert.Equal(t, int64(2), page.Pagination.TotalProducts)
	require.Len(t, page.Products, 2)
	for _, p := range page.Products {
		assert.GreaterOrEqual(t, p.SustainabilityScore, 4.5)
	}
}

func TestListProducts_SecondPageDoesNotOverlapFirst(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 25; i++ {
		// Equal scores force the id tie-break
		createProduct(t, db, productOpts{name: fmt.Sprintf("Product %02d", i), sustainability: 3})
	}

	svc := services.NewProductService(db, nil)
	ctx := context.Background()

	first, err := svc.ListProducts(ctx, services.ProductFilter{Page: 1, PageSize: 10, SortBy: "sustainability_score"})
	require.NoError(t, err)
	second, err := svc.ListProducts(ctx, services.ProductFilter{Page: 2, PageSize: 10, SortBy: "sustainability_score"})
	require.NoError(t, err)
	third, err := svc.ListProducts(ctx, services.ProductFilter{Page: 3, PageSize: 10, SortBy: "sustainability_score"})
	require.NoError(t, err)

	require.Len(t, first.Products, 10)
	require.Len(t, second.Products, 10)
	require.Len(t, third.Products, 5)

	seen := make(map[string]bool)
	for _, page := range [][]models.ProductSummary{first.Products, second.Products, third.Products} {
		for _, p := range page {
			assert.False(t, seen[p.ID], "product %s returned twice", p.ID)
			seen[p.ID] = true
		}
	}
	assert.Len(t, seen, 25)

	assert.Equal(t, 2, second.Pagination.CurrentPage)
	assert.Equal(t, 10, second.Pagination.PageSize)
	assert.Equal(t, 3, second.Pagination.TotalPages)
	assert.Equal(t, int64(25), second.Pagination.TotalProducts)
}

func TestListProducts_PageBeyondRangeKeepsTotals(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 3; i++ {
		createProduct(t, db, productOpts{name: fmt.Sprintf("Item %d", i)})
	}

	svc := services.NewProductService(db, nil)
	page, err := svc.ListProducts(context.Background(), services.ProductFilter{Page: 5, PageSize: 2})
	require.NoError(t, err)

	assert.Empty(t, page.Products)
	assert.NotNil(t, page.Products)
	assert.Equal(t, int64(3), page.Pagination.TotalProducts)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Equal(t, 5, page.Pagination.CurrentPage)
}

func TestListProducts_HugePageIsEmpty(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, productOpts{name: "Steel Bottle"})
	createProduct(t, db, productOpts{name: "Glass Jar"})

	svc := services.NewProductService(db, nil)
	page, err := svc.ListProducts(context.Background(), services.ProductFilter{Page: math.MaxInt, PageSize: 12})
	require.NoError(t, err)

	assert.Empty(t, page.Products)
	assert.Equal(t, int64(2), page.Pagination.TotalProducts)
	assert.Equal(t, 1, page.Pagination.TotalPages)
	assert.Equal(t, math.MaxInt, page.Pagination.CurrentPage)
}

func TestListProducts_EmptyResult(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, productOpts{name: "Steel Bottle"})

	svc := services.NewProductService(db, nil)
	page, err := svc.ListProducts(context.Background(), services.ProductFilter{Query: "nonexistent"})
	require.NoError(t, err)

	assert.NotNil(t, page.Products)
	assert.Empty(t, page.Products)
	assert.Equal(t, int64(0), page.Pagination.TotalProducts)
	assert.Equal(t, 0, page.Pagination.TotalPages)
}

func TestListProducts_Defaults(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewProductService(db, nil)

	page, err := svc.ListProducts(context.Background(), services.ProductFilter{Page: -3, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.Equal(t, services.MaxPageSize, page.Pagination.PageSize)

	page, err = svc.ListProducts(context.Background(), services.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, services.DefaultPageSize, page.Pagination.PageSize)
}

func TestListProducts_SearchBrandAndCategory(t *testing.T) {
	db := newTestDB(t)
	kitchen := models.Category{Name: "Home & Kitchen", Slug: "home-kitchen"}
	require.NoError(t, db.Create(&kitchen).Error)

	createProduct(t, db, productOpts{name: "Steel Bottle", brand: "Klean", categoryID: &kitchen.ID})
	createProduct(t, db, productOpts{name: "Glass Jar", brand: "Weck", categoryID: &kitchen.ID})
	createProduct(t, db, productOpts{name: "Hemp Shirt", brand: "Klean"})

	svc := services.NewProductService(db, nil)
	ctx := context.Background()

	page, err := svc.ListProducts(ctx, services.ProductFilter{Query: "BOTTLE"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Steel Bottle", page.Products[0].Name)

	page, err = svc.ListProducts(ctx, services.ProductFilter{Brand: "klean"})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2)

	page, err = svc.ListProducts(ctx, services.ProductFilter{Category: "home-kitchen"})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2)

	page, err = svc.ListProducts(ctx, services.ProductFilter{Category: kitchen.ID, Brand: "Klean"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Steel Bottle", page.Products[0].Name)
}

func TestListProducts_AttributesMustAllMatch(t *testing.T) {
	db := newTestDB(t)
	vegan := createAttribute(t, db, "Vegan", models.AttributeEthical)
	recycled := createAttribute(t, db, "Recycled Materials", models.AttributeSustainability)

	createProduct(t, db, productOpts{name: "Both", attributes: []models.Attribute{vegan, recycled}})
	createProduct(t, db, productOpts{name: "Vegan Only", attributes: []models.Attribute{vegan}})
	createProduct(t, db, productOpts{name: "None"})

	svc := services.NewProductService(db, nil)
	ctx := context.Background()

	page, err := svc.ListProducts(ctx, services.ProductFilter{AttributeIDs: []string{vegan.ID, recycled.ID}})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Both", page.Products[0].Name)
	assert.Len(t, page.Products[0].Attributes, 2)

	// Duplicates do not change the meaning
	page, err = svc.ListProducts(ctx, services.ProductFilter{AttributeIDs: []string{vegan.ID, vegan.ID, " "}})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2)
}

func TestListProducts_SortByName(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{"charlie", "Alpha", "bravo"} {
		createProduct(t, db, productOpts{name: name})
	}

	svc := services.NewProductService(db, nil)
	page, err := svc.ListProducts(context.Background(), services.ProductFilter{SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)

	require.Len(t, page.Products, 3)
	assert.Equal(t, "Alpha", page.Products[0].Name)
	assert.Equal(t, "bravo", page.Products[1].Name)
	assert.Equal(t, "charlie", page.Products[2].Name)
}

func TestListProducts_InvalidFilters(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewProductService(db, nil)
	ctx := context.Background()

	filters := map[string]services.ProductFilter{
		"threshold above 5":  {MinSustainability: 5.5},
		"negative threshold": {MinDurability: -1},
		"unknown sort field": {SortBy: "price"},
		"unknown direction":  {SortOrder: "sideways"},
	}
	for name, filter := range filters {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ListProducts(ctx, filter)
			require.Error(t, err)
			assert.True(t, errors.Is(err, services.ErrValidation))
		})
	}
}

func TestListProducts_ServesFromCache(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, productOpts{name: "Steel Bottle", sustainability: 4})
	cache := newMemoryCache()

	svc := services.NewProductService(db, cache)
	ctx := context.Background()

	first, err := svc.ListProducts(ctx, services.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, first.Products, 1)

	// A row written behind the service's back is not visible until invalidation
	createProduct(t, db, productOpts{name: "Glass Jar", sustainability: 4})

	cached, err := svc.ListProducts(ctx, services.ProductFilter{Page: 1, PageSize: services.DefaultPageSize})
	require.NoError(t, err)
	assert.Len(t, cached.Products, 1)
	assert.Equal(t, 1, cache.hits)

	require.NoError(t, cache.Invalidate(ctx))
	fresh, err := svc.ListProducts(ctx, services.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, fresh.Products, 2)
}

func TestListProducts_SkipsCacheWhenInvalidatedMidQuery(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, productOpts{name: "Steel Bottle"})
	cache := racingCache{newMemoryCache()}

	svc := services.NewProductService(db, cache)
	page, err := svc.ListProducts(context.Background(), services.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Products, 1)
	assert.Zero(t, cache.size())
	assert.Equal(t, 1, cache.invalidated)
}

func TestGetProductByID(t *testing.T) {
	db := newTestDB(t)
	product := createProduct(t, db, productOpts{name: "Steel Bottle"})
	svc := services.NewProductService(db, nil)

	got, err := svc.GetProductByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Steel Bottle", got.Name)
	assert.NotNil(t, got.Attributes)

	_, err = svc.GetProductByID(context.Background(), "missing")
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestTaxonomyListing(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Category{Name: "Zero Waste", Slug: "zero-waste"}).Error)
	require.NoError(t, db.Create(&models.Category{Name: "Apparel", Slug: "apparel"}).Error)
	createAttribute(t, db, "Vegan", models.AttributeEthical)
	createAttribute(t, db, "Repairable", models.AttributeDurability)
	createAttribute(t, db, "Carbon Neutral", models.AttributeSustainability)

	svc := services.NewProductService(db, nil)
	ctx := context.Background()

	categories, err := svc.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Apparel", categories[0].Name)

	attributes, err := svc.GetAttributes(ctx, "")
	require.NoError(t, err)
	require.Len(t, attributes, 3)
	assert.Equal(t, models.AttributeDurability, attributes[0].Type)

	ethical, err := svc.GetAttributes(ctx, models.AttributeEthical)
	require.NoError(t, err)
	require.Len(t, ethical, 1)
	assert.Equal(t, "Vegan", ethical[0].Name)

	_, err = svc.GetAttributes(ctx, "colour")
	assert.ErrorIs(t, err, services.ErrValidation)
}
