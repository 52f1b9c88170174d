// internal/services/cache_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/couponx-backend/internal/config"
	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/testutil"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	cache, err := NewMemoryCache(8)
	require.NoError(t, err)
	cache.now = clock.Now

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))

	value, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	clock.Advance(time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(8)
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, SearchCacheKey("a"), []byte("1"), time.Minute))
	require.NoError(t, cache.Set(ctx, SearchCacheKey("b"), []byte("2"), time.Minute))
	require.NoError(t, cache.Set(ctx, "listing:x", []byte("3"), time.Minute))

	require.NoError(t, cache.DeletePrefix(ctx, "search:"))

	_, ok, _ := cache.Get(ctx, SearchCacheKey("a"))
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, "listing:x")
	assert.True(t, ok)
}

func TestCacheServiceJSON(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryCache(8)
	require.NoError(t, err)
	svc := NewCacheService(backend)

	listing := &models.Listing{Title: "Cached", Category: models.CategoryTravel}
	listing.ID = uuid.New()
	svc.SetJSON(ctx, ListingCacheKey(listing.ID), listing, time.Minute)

	var out models.Listing
	require.True(t, svc.GetJSON(ctx, ListingCacheKey(listing.ID), &out))
	assert.Equal(t, "Cached", out.Title)

	svc.InvalidateListing(ctx, listing)
	assert.False(t, svc.GetJSON(ctx, ListingCacheKey(listing.ID), &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	ctx := context.Background()

	var nilService *CacheService
	nilService.SetJSON(ctx, "k", "v", time.Minute)
	var out string
	assert.False(t, nilService.GetJSON(ctx, "k", &out))

	svc := NewCacheService(nil)
	svc.SetJSON(ctx, "k", "v", time.Minute)
	assert.False(t, svc.GetJSON(ctx, "k", &out))
	svc.InvalidateSearches(ctx)
}

func TestNewCacheBackend(t *testing.T) {
	ctx := context.Background()

	backend, err := NewCacheBackend(ctx, config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, backend)

	backend, err = NewCacheBackend(ctx, config.CacheConfig{Backend: "memory", LRUSize: 4})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, backend)

	_, err = NewCacheBackend(ctx, config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}
