package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sustainareview/sustainareview-api/internal/config"
	"github.com/sustainareview/sustainareview-api/internal/database"
	"github.com/sustainareview/sustainareview-api/internal/models"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/pkg/logger"
	"gorm.io/gorm"
)

func init() {
	logger.SetOutput(io.Discard)
}

// newTestDB opens a private in-memory sqlite database for one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)

	db, err := database.Open("sqlite", dsn, true)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret: "test-secret",
		JWTTTL:    time.Hour,
		BaseURL:   "http://localhost:5173",
	}
}

func createUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type productOpts struct {
	name           string
	brand          string
	sustainability float64
	ethical        float64
	durability     float64
	categoryID     *string
	attributes     []models.Attribute
}

func createProduct(t *testing.T, db *gorm.DB, opts productOpts) *models.Product {
	t.Helper()
	if opts.brand == "" {
		opts.brand = "Acme"
	}
	product := &models.Product{
		Name:                opts.name,
		Brand:               opts.brand,
		Description:         opts.name + " description",
		CategoryID:          opts.categoryID,
		SustainabilityScore: opts.sustainability,
		EthicalScore:        opts.ethical,
		DurabilityScore:     opts.durability,
		Attributes:          opts.attributes,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func createAttribute(t *testing.T, db *gorm.DB, name, attrType string) models.Attribute {
	t.Helper()
	attribute := models.Attribute{Name: name, Type: attrType}
	require.NoError(t, db.Create(&attribute).Error)
	return attribute
}

func createReview(t *testing.T, db *gorm.DB, productID, userID string, rating int, status string) *models.Review {
	t.Helper()
	review := &models.Review{
		ProductID:        productID,
		UserID:           userID,
		Title:            "Solid product",
		Body:             "Lasted for years",
		OverallRating:    rating,
		ModerationStatus: status,
	}
	require.NoError(t, db.Create(review).Error)
	return review
}

func validReviewInput() services.ReviewInput {
	sustainability := 4
	return services.ReviewInput{
		Title:                "Great bottle",
		Body:                 "Keeps water cold all day.",
		OverallRating:        5,
		SustainabilityRating: &sustainability,
		Confirmed:            true,
	}
}

// fileHeaders builds multipart file headers the way a request parser would.
func fileHeaders(t *testing.T, field string, files map[string]string, size int) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for filename, contentType := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte("x"), size))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File[field]
}

func newLocalStorage(t *testing.T) *services.LocalStorage {
	t.Helper()
	storage, err := services.NewLocalStorage(t.TempDir(), "http://localhost:8080/uploads")
	require.NoError(t, err)
	return storage
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(routingKey string, payload interface{}) error {
	args := m.Called(routingKey, payload)
	return args.Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendPasswordResetEmail(email, resetToken, baseURL string) error {
	args := m.Called(email, resetToken, baseURL)
	return args.Error(0)
}

func (m *mockMailer) SendModerationEmail(email, reviewTitle, status, note string) error {
	args := m.Called(email, reviewTitle, status, note)
	return args.Error(0)
}

// memoryCache is an in-process CatalogCache.
type memoryCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	generation  int64
	hits        int
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, generation int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return nil
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.generation++
	c.invalidated++
	return nil
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// racingCache invalidates right after the generation is read, as an admin
// write landing mid-query would.
type racingCache struct {
	*memoryCache
}

func (c racingCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.memoryCache.Generation(ctx)
	if err != nil {
		return 0, err
	}
	return generation, c.memoryCache.Invalidate(ctx)
}
