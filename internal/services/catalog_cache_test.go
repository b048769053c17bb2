package services_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sustainareview/sustainareview-api/internal/services"
	"github.com/sustainareview/sustainareview-api/internal/types"
)

func TestRedisCatalogCache(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	cache, err := services.NewRedisCatalogCache(redisURL, time.Minute)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	page := types.ProductPage{Pagination: types.Pagination{CurrentPage: 1, PageSize: 12}}
	generation, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "catalog:test", page, generation))

	var got types.ProductPage
	hit, err := cache.Get(ctx, "catalog:test", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 12, got.Pagination.PageSize)

	require.NoError(t, cache.Invalidate(ctx))
	hit, err = cache.Get(ctx, "catalog:test", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	// A page computed before the invalidation is not stored
	require.NoError(t, cache.Set(ctx, "catalog:test", page, generation))
	hit, err = cache.Get(ctx, "catalog:test", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNewRedisCatalogCache_BadURL(t *testing.T) {
	_, err := services.NewRedisCatalogCache("not-a-url", time.Minute)
	assert.Error(t, err)
}
