// internal/services/listing_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

const topBrandLimit = 5

type ListingService struct {
	db           *gorm.DB
	vault        *VaultService
	detector     *DuplicateDetector
	rateLimiter  *RateLimiter
	reputation   *ReputationService
	cache        *CacheService
	storage      *StorageService
	now          func() time.Time
	asyncViewInc bool
}

type CreateListingRequest struct {
	ListingType         models.ListingType  `json:"listing_type" validate:"required,listing_type"`
	Title               string              `json:"title" validate:"required,min=3,max=200"`
	Description         string              `json:"description" validate:"max=5000"`
	Category            models.Category     `json:"category" validate:"required,enum"`
	BrandName           string              `json:"brand_name" validate:"max=100"`
	CouponCode          string              `json:"coupon_code" validate:"max=500"`
	OriginalValue       decimal.NullDecimal `json:"original_value" validate:"omitempty,gt=0"`
	SellingPrice        decimal.Decimal     `json:"selling_price" validate:"gt=0"`
	ExpirationDate      *time.Time          `json:"expiration_date"`
	Tags                []string            `json:"tags" validate:"max=10,dive,min=1,max=30"`
	ConfirmNotDuplicate bool                `json:"confirm_not_duplicate"`
}

type UpdateListingRequest struct {
	Title          *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Description    *string    `json:"description" validate:"omitempty,max=5000"`
	Tags           []string   `json:"tags" validate:"omitempty,max=10,dive,min=1,max=30"`
	ExpirationDate *time.Time `json:"expiration_date"`
}

// CreateListingResult carries either the new listing, a duplicate warning
// that stopped creation, or both when the seller confirmed past a warning.
type CreateListingResult struct {
	Listing          *models.Listing        `json:"listing,omitempty"`
	DuplicateWarning *models.DuplicateMatch `json:"duplicate_warning,omitempty"`
}

type ListingFilters struct {
	Category     models.Category      `json:"category,omitempty"`
	ListingType  models.ListingType   `json:"listing_type,omitempty"`
	Status       models.ListingStatus `json:"status,omitempty"`
	SellerID     *uuid.UUID           `json:"seller_id,omitempty"`
	BrandName    string               `json:"brand_name,omitempty"`
	MinPrice     *decimal.Decimal     `json:"min_price,omitempty"`
	MaxPrice     *decimal.Decimal     `json:"max_price,omitempty"`
	VerifiedOnly bool                 `json:"verified_only,omitempty"`
	Search       string               `json:"search,omitempty"`
}

var listingSortOptions = map[string]utils.SortOption{
	"newest":     {Column: "created_at", Desc: true},
	"price_asc":  {Column: "selling_price"},
	"price_desc": {Column: "selling_price", Desc: true},
	"popularity": {Column: "view_count", Desc: true},
}

type searchPage struct {
	Listings []models.Listing `json:"listings"`
	Total    int64            `json:"total"`
}

func NewListingService(
	db *gorm.DB,
	vault *VaultService,
	detector *DuplicateDetector,
	rateLimiter *RateLimiter,
	reputation *ReputationService,
	cache *CacheService,
	storage *StorageService,
) *ListingService {
	return &ListingService{
		db:           db,
		vault:        vault,
		detector:     detector,
		rateLimiter:  rateLimiter,
		reputation:   reputation,
		cache:        cache,
		storage:      storage,
		now:          time.Now,
		asyncViewInc: true,
	}
}

func (s *ListingService) WithClock(now func() time.Time) *ListingService {
	s.now = now
	return s
}

// WithSyncViewCounts makes GetListing count views before returning, for
// tests that assert on the counter.
func (s *ListingService) WithSyncViewCounts() *ListingService {
	s.asyncViewInc = false
	return s
}

func (s *ListingService) validateCreate(req *CreateListingRequest) error {
	if !req.ListingType.Valid() {
		return utils.NewInvalid("unsupported listing type")
	}
	if !req.Category.Valid() {
		return utils.NewInvalid("unsupported category")
	}
	if req.ListingType.RequiresSecret() && strings.TrimSpace(req.CouponCode) == "" {
		return utils.NewInvalid("coupon_code is required for discount code listings")
	}
	if !req.SellingPrice.IsPositive() {
		return utils.NewInvalid("selling_price must be positive")
	}
	if req.OriginalValue.Valid && req.SellingPrice.GreaterThan(req.OriginalValue.Decimal) {
		return utils.NewInvalid("selling_price cannot exceed original_value")
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.After(s.now()) {
		return utils.NewInvalid("expiration_date must be in the future")
	}
	return nil
}

func (s *ListingService) CreateListing(ctx context.Context, sellerID uuid.UUID, req *CreateListingRequest) (*CreateListingResult, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	if _, err := s.rateLimiter.Gate(ctx, sellerID, models.ActionCreateListing); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(req.CouponCode)
	probe := code
	if probe == "" {
		probe = req.Title
	}

	match, err := s.detector.Check(ctx, probe, req.Category, req.BrandName, sellerID)
	if err != nil {
		return nil, err
	}
	if match != nil && match.IsExact() {
		return nil, &utils.AppError{
			Kind:     utils.KindConflict,
			Resource: "listing",
			Message:  fmt.Sprintf("this code is already listed as '%s'", match.Title),
		}
	}
	if match != nil && !req.ConfirmNotDuplicate {
		return &CreateListingResult{DuplicateWarning: match}, nil
	}

	listing := &models.Listing{
		BaseModel:      models.BaseModel{ID: uuid.New()},
		SellerID:       sellerID,
		ListingType:    req.ListingType,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Category:       req.Category,
		BrandName:      strings.TrimSpace(req.BrandName),
		OriginalValue:  req.OriginalValue,
		SellingPrice:   req.SellingPrice.Round(2),
		ExpirationDate: req.ExpirationDate,
		Status:         models.ListingStatusActive,
		Tags:           models.StringList(req.Tags),
	}
	listing.ComputeDiscount()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(listing).Error; err != nil {
			return utils.NewInternal("failed to create listing", err)
		}

		if code != "" {
			if err := s.vault.Store(tx, listing.ID, code); err != nil {
				return err
			}
			fingerprint := &models.ListingFingerprint{
				ListingID:   listing.ID,
				Fingerprint: Fingerprint(code, listing.Category, listing.BrandName),
			}
			if err := tx.Create(fingerprint).Error; err != nil {
				return utils.NewInternal("failed to store fingerprint", err)
			}
		}

		return s.reputation.EnsureTrustScore(tx, sellerID)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateListing(ctx, listing)

	logrus.WithFields(logrus.Fields{
		"listing_id": listing.ID,
		"seller_id":  sellerID,
		"category":   listing.Category,
	}).Info("Listing created")

	return &CreateListingResult{Listing: listing, DuplicateWarning: match}, nil
}

// GetListing reads through the cache. Prices and status here are for
// display only; purchases always reload the row.
func (s *ListingService) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if !s.cache.GetJSON(ctx, ListingCacheKey(id), &listing) {
		err := s.withSellerColumns(s.db.WithContext(ctx).Model(&models.Listing{})).
			Where("listings.id = ?", id).
			First(&listing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("listing")
		}
		if err != nil {
			return nil, utils.NewInternal("failed to load listing", err)
		}
		s.cache.SetJSON(ctx, ListingCacheKey(id), &listing, ListingCacheTTL)
	}

	if s.asyncViewInc {
		go s.incrementViewCount(id)
	} else {
		s.incrementViewCount(id)
	}

	return &listing, nil
}

func (s *ListingService) withSellerColumns(query *gorm.DB) *gorm.DB {
	return query.
		Select("listings.*, users.username AS seller_username, trust_scores.trust_score AS seller_trust_score").
		Joins("LEFT JOIN users ON users.id = listings.seller_id").
		Joins("LEFT JOIN trust_scores ON trust_scores.user_id = listings.seller_id")
}

func (s *ListingService) incrementViewCount(id uuid.UUID) {
	err := s.db.Model(&models.Listing{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	if err != nil {
		logrus.WithError(err).WithField("listing_id", id).Debug("Failed to increment view count")
	}
}

func (s *ListingService) SearchListings(ctx context.Context, filters ListingFilters, params utils.PaginationParams) ([]models.Listing, int64, error) {
	params = utils.NormalizePagination(params)
	if filters.Status == "" {
		filters.Status = models.ListingStatusActive
	}

	keyMaterial, err := json.Marshal(struct {
		Filters ListingFilters
		Params  utils.PaginationParams
	}{filters, params})
	if err != nil {
		return nil, 0, utils.NewInternal("failed to encode search key", err)
	}
	cacheKey := SearchCacheKey(utils.HashString(string(keyMaterial)))

	var cached searchPage
	if s.cache.GetJSON(ctx, cacheKey, &cached) {
		return cached.Listings, cached.Total, nil
	}

	filter := utils.NewFilter("listings").Eq("status", filters.Status)
	if filters.Category != "" {
		filter.Eq("category", filters.Category)
	}
	if filters.ListingType != "" {
		filter.Eq("listing_type", filters.ListingType)
	}
	if filters.SellerID != nil {
		filter.Eq("seller_id", *filters.SellerID)
	}
	if filters.BrandName != "" {
		filter.Contains(filters.BrandName, "brand_name")
	}
	if filters.MinPrice != nil {
		filter.Gte("selling_price", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		filter.Lte("selling_price", *filters.MaxPrice)
	}
	if filters.VerifiedOnly {
		filter.Eq("is_verified", true)
	}
	if filters.Search != "" {
		filter.Contains(filters.Search, "title", "description", "brand_name")
	}

	db := s.db.WithContext(ctx)

	var total int64
	if err := filter.Apply(db.Model(&models.Listing{})).Count(&total).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to count listings", err)
	}

	query := s.withSellerColumns(filter.Apply(db.Model(&models.Listing{})))
	query = utils.ApplySort(query, "listings", params.Sort, listingSortOptions, "newest")
	query = utils.ApplyPagination(query, params)

	listings := []models.Listing{}
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to search listings", err)
	}

	s.cache.SetJSON(ctx, cacheKey, searchPage{Listings: listings, Total: total}, SearchCacheTTL)
	return listings, total, nil
}

// loadOwnedActive loads a listing the seller may edit.
func (s *ListingService) loadOwnedActive(ctx context.Context, sellerID, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.WithContext(ctx).First(&listing, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFound("listing")
	}
	if err != nil {
		return nil, utils.NewInternal("failed to load listing", err)
	}
	if listing.SellerID != sellerID {
		return nil, utils.NewForbidden("listing", "only the seller can modify this listing")
	}
	if listing.Status != models.ListingStatusActive {
		return nil, utils.NewConflict("listing", fmt.Sprintf("listing is %s", listing.Status))
	}
	return &listing, nil
}

// UpdateListing edits descriptive fields. Prices and the discount are fixed
// at creation.
func (s *ListingService) UpdateListing(ctx context.Context, sellerID, id uuid.UUID, req *UpdateListingRequest) (*models.Listing, error) {
	listing, err := s.loadOwnedActive(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Tags != nil {
		updates["tags"] = models.StringList(req.Tags)
	}
	if req.ExpirationDate != nil {
		if !req.ExpirationDate.After(s.now()) {
			return nil, utils.NewInvalid("expiration_date must be in the future")
		}
		updates["expiration_date"] = *req.ExpirationDate
	}
	if len(updates) == 0 {
		return listing, nil
	}

	if err := s.updateActive(ctx, listing.ID, updates); err != nil {
		return nil, err
	}

	s.cache.InvalidateListing(ctx, listing)

	var updated models.Listing
	if err := s.db.WithContext(ctx).First(&updated, "id = ?", id).Error; err != nil {
		return nil, utils.NewInternal("failed to reload listing", err)
	}
	return &updated, nil
}

// updateActive applies updates only while the listing is still active, so
// an edit racing a purchase cannot touch a sold listing.
func (s *ListingService) updateActive(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, models.ListingStatusActive).
		Updates(updates)
	if result.Error != nil {
		return utils.NewInternal("failed to update listing", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewConflict("listing", "listing is no longer active")
	}
	return nil
}

func (s *ListingService) DeleteListing(ctx context.Context, sellerID, id uuid.UUID) error {
	listing, err := s.loadOwnedActive(ctx, sellerID, id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.ListingStatusActive).
		Delete(&models.Listing{})
	if result.Error != nil {
		return utils.NewInternal("failed to delete listing", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewConflict("listing", "listing is no longer active")
	}

	s.cache.InvalidateListing(ctx, listing)
	return nil
}

func (s *ListingService) UploadProofImage(ctx context.Context, sellerID, id uuid.UUID, file multipart.File, header *multipart.FileHeader) (*models.Listing, error) {
	listing, err := s.loadOwnedActive(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	upload, err := s.storage.UploadProofImage(ctx, id, file, header)
	if err != nil {
		return nil, err
	}

	if err := s.updateActive(ctx, id, map[string]interface{}{"proof_image_url": upload.URL}); err != nil {
		if delErr := s.storage.DeleteObject(ctx, upload.Key); delErr != nil {
			logrus.WithError(delErr).WithField("key", upload.Key).Warn("Failed to remove orphaned proof image")
		}
		return nil, err
	}

	listing.ProofImageURL = upload.URL
	s.cache.InvalidateListing(ctx, listing)
	return listing, nil
}

// CategoryStats summarizes active listings in a category.
func (s *ListingService) CategoryStats(ctx context.Context, category models.Category) (*models.CategoryStats, error) {
	if !category.Valid() {
		return nil, utils.NewInvalid("unsupported category")
	}

	stats := &models.CategoryStats{Category: category, TopBrands: []models.BrandCount{}}
	if s.cache.GetJSON(ctx, CategoryStatsCacheKey(category), stats) {
		return stats, nil
	}

	db := s.db.WithContext(ctx)
	active := func() *gorm.DB {
		return db.Model(&models.Listing{}).Where("category = ? AND status = ?", category, models.ListingStatusActive)
	}

	var agg struct {
		Total    int64
		AvgPrice decimal.NullDecimal
		MinPrice decimal.NullDecimal
		MaxPrice decimal.NullDecimal
	}
	err := active().
		Select("COUNT(*) AS total, AVG(selling_price) AS avg_price, MIN(selling_price) AS min_price, MAX(selling_price) AS max_price").
		Scan(&agg).Error
	if err != nil {
		return nil, utils.NewInternal("failed to aggregate category", err)
	}

	stats.ActiveListings = agg.Total
	stats.AveragePrice = agg.AvgPrice.Decimal.Round(2)
	stats.MinPrice = agg.MinPrice.Decimal
	stats.MaxPrice = agg.MaxPrice.Decimal

	if agg.Total > 0 {
		var middle []decimal.Decimal
		offset := int((agg.Total - 1) / 2)
		limit := 1
		if agg.Total%2 == 0 {
			limit = 2
		}
		if err := active().Order("selling_price").Offset(offset).Limit(limit).Pluck("selling_price", &middle).Error; err != nil {
			return nil, utils.NewInternal("failed to compute median price", err)
		}
		if len(middle) > 0 {
			stats.MedianPrice = decimal.Avg(middle[0], middle[1:]...).Round(2)
		}
	}

	if err := active().
		Select("brand_name, COUNT(*) AS listing_count").
		Where("brand_name <> ''").
		Group("brand_name").
		Order("listing_count DESC, brand_name").
		Limit(topBrandLimit).
		Scan(&stats.TopBrands).Error; err != nil {
		return nil, utils.NewInternal("failed to rank brands", err)
	}

	s.cache.SetJSON(ctx, CategoryStatsCacheKey(category), stats, CategoryStatsCacheTTL)
	return stats, nil
}

// ExpireListings moves active listings whose expiration date has passed to
// expired.
func (s *ListingService) ExpireListings(ctx context.Context) (int64, error) {
	now := s.now().UTC()

	var due []models.Listing
	err := s.db.WithContext(ctx).
		Select("id", "seller_id", "category", "status").
		Where("status = ? AND expiration_date IS NOT NULL AND expiration_date <= ?", models.ListingStatusActive, now).
		Find(&due).Error
	if err != nil {
		return 0, utils.NewInternal("failed to find expired listings", err)
	}

	var expired int64
	for i := range due {
		listing := &due[i]
		if err := markListing(s.db.WithContext(ctx), listing, models.ListingStatusExpired); err != nil {
			// Sold or cancelled since the scan.
			if utils.IsKind(err, utils.KindConflict) {
				continue
			}
			return expired, err
		}
		expired++
		s.cache.InvalidateListing(ctx, listing)
	}
	return expired, nil
}
