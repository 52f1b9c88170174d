// internal/services/cache_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/couponx-backend/internal/config"
	"github.com/javajoker/couponx-backend/internal/models"
)

const (
	ListingCacheTTL       = 5 * time.Minute
	ProfileCacheTTL       = 10 * time.Minute
	SearchCacheTTL        = 3 * time.Minute
	CategoryStatsCacheTTL = 5 * time.Minute

	searchKeyPrefix = "search:"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// NewCacheBackend builds the configured backend. "none" yields a nil Cache,
// which CacheService treats as always missing.
func NewCacheBackend(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryCache(cfg.LRUSize)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisCache(client), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

type cachedEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process LRU whose entries also expire.
type MemoryCache struct {
	cache *lru.Cache
	now   func() time.Time
}

func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &MemoryCache{cache: cache, now: time.Now}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry := raw.(cachedEntry)
	if !m.now().Before(entry.expiresAt) {
		m.cache.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Add(key, cachedEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Remove(key)
	}
	return nil
}

func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	for _, raw := range m.cache.Keys() {
		if key, ok := raw.(string); ok && strings.HasPrefix(key, prefix) {
			m.cache.Remove(key)
		}
	}
	return nil
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 200 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return r.Delete(ctx, batch...)
}

// CacheService is the read-through accelerator used by the listing and
// profile reads. Failures are logged and swallowed; a nil service or
// backend behaves as an empty cache.
type CacheService struct {
	backend Cache
}

func NewCacheService(backend Cache) *CacheService {
	return &CacheService{backend: backend}
}

func (s *CacheService) enabled() bool {
	return s != nil && s.backend != nil
}

// GetJSON decodes a cached value into dest and reports whether it hit.
func (s *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if !s.enabled() {
		return false
	}
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		s.Invalidate(ctx, key)
		return false
	}
	return true
}

func (s *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache encode failed")
		return
	}
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (s *CacheService) Invalidate(ctx context.Context, keys ...string) {
	if !s.enabled() || len(keys) == 0 {
		return
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		logrus.WithError(err).WithField("keys", keys).Warn("Cache invalidation failed")
	}
}

func (s *CacheService) InvalidateSearches(ctx context.Context) {
	if !s.enabled() {
		return
	}
	if err := s.backend.DeletePrefix(ctx, searchKeyPrefix); err != nil {
		logrus.WithError(err).Warn("Search cache invalidation failed")
	}
}

// InvalidateListing drops every cached view a listing change can affect.
func (s *CacheService) InvalidateListing(ctx context.Context, listing *models.Listing) {
	s.Invalidate(ctx, ListingCacheKey(listing.ID), CategoryStatsCacheKey(listing.Category), ProfileCacheKey(listing.SellerID))
	s.InvalidateSearches(ctx)
}

func ListingCacheKey(id uuid.UUID) string {
	return "listing:" + id.String()
}

func ProfileCacheKey(userID uuid.UUID) string {
	return "profile:" + userID.String()
}

func CategoryStatsCacheKey(category models.Category) string {
	return "category_stats:" + string(category)
}

func SearchCacheKey(fingerprint string) string {
	return searchKeyPrefix + fingerprint
}
