// internal/services/review_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

const (
	minRating = 1
	maxRating = 5
)

type ReviewService struct {
	db            *gorm.DB
	rateLimiter   *RateLimiter
	reputation    *ReputationService
	notifications *NotificationService
	cache         *CacheService
}

type CreateReviewRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
	Rating        int       `json:"rating" validate:"required,min=1,max=5"`
	Comment       string    `json:"comment" validate:"max=2000"`
	DealVerified  bool      `json:"deal_verified"`
}

func NewReviewService(db *gorm.DB, rateLimiter *RateLimiter, reputation *ReputationService, notifications *NotificationService, cache *CacheService) *ReviewService {
	return &ReviewService{
		db:            db,
		rateLimiter:   rateLimiter,
		reputation:    reputation,
		notifications: notifications,
		cache:         cache,
	}
}

// CreateReview records one party's review of the other on a completed
// transaction and refreshes the reviewed user's trust score.
func (s *ReviewService) CreateReview(ctx context.Context, reviewerID uuid.UUID, req *CreateReviewRequest) (*models.Review, error) {
	if req.Rating < minRating || req.Rating > maxRating {
		return nil, utils.NewInvalid("rating must be between 1 and 5")
	}

	if _, err := s.rateLimiter.Gate(ctx, reviewerID, models.ActionCreateReview); err != nil {
		return nil, err
	}

	var review *models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Transaction
		if err := tx.First(&t, "id = ?", req.TransactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("transaction")
			}
			return utils.NewInternal("failed to load transaction", err)
		}

		if !t.IsParty(reviewerID) {
			return utils.NewForbidden("review", "only transaction parties can leave a review")
		}
		if t.Status != models.TransactionStatusCompleted {
			return utils.NewConflict("review", "only completed transactions can be reviewed")
		}

		var existing int64
		if err := tx.Model(&models.Review{}).
			Where("transaction_id = ? AND reviewer_id = ?", t.ID, reviewerID).
			Count(&existing).Error; err != nil {
			return utils.NewInternal("failed to check existing reviews", err)
		}
		if existing > 0 {
			return utils.NewConflict("review", "you have already reviewed this transaction")
		}

		isBuyer := t.BuyerID == reviewerID
		review = &models.Review{
			TransactionID:  t.ID,
			ReviewerID:     reviewerID,
			ReviewedUserID: t.CounterpartyOf(reviewerID),
			ListingID:      t.ListingID,
			Rating:         req.Rating,
			Comment:        strings.TrimSpace(req.Comment),
			DealVerified:   isBuyer && req.DealVerified,
			IsBuyerReview:  isBuyer,
		}
		if err := tx.Create(review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.NewConflict("review", "you have already reviewed this transaction")
			}
			return utils.NewInternal("failed to create review", err)
		}

		_, err := s.reputation.RecomputeTx(tx, review.ReviewedUserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, ProfileCacheKey(review.ReviewedUserID))
	s.notifications.NotifyNewReview(ctx, review)

	logrus.WithFields(logrus.Fields{
		"review_id":      review.ID,
		"transaction_id": review.TransactionID,
		"rating":         review.Rating,
	}).Info("Review created")

	return review, nil
}

func (s *ReviewService) ListUserReviews(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	return s.list(ctx, "reviews.reviewed_user_id = ?", userID, params)
}

func (s *ReviewService) ListListingReviews(ctx context.Context, listingID uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	return s.list(ctx, "reviews.listing_id = ?", listingID, params)
}

func (s *ReviewService) list(ctx context.Context, cond string, id uuid.UUID, params utils.PaginationParams) ([]models.Review, int64, error) {
	params = utils.NormalizePagination(params)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Review{}).Where(cond, id).Count(&total).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to count reviews", err)
	}

	reviews := []models.Review{}
	query := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("reviews.*, users.username AS reviewer_username").
		Joins("LEFT JOIN users ON users.id = reviews.reviewer_id").
		Where(cond, id).
		Order("reviews.created_at DESC")
	if err := utils.ApplyPagination(query, params).Find(&reviews).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to list reviews", err)
	}
	return reviews, total, nil
}
