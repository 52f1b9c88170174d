// internal/services/reputation_service.go
package services

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

// Outcome is how a finished transaction counts toward the seller's record.
type Outcome int

const (
	// OutcomeSuccess is a completed sale.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure is a sale that ended in dispute before completion.
	OutcomeFailure
	// OutcomeReversed is a completed sale that was disputed afterwards.
	OutcomeReversed
)

const recentReviewLimit = 5

type ReputationService struct {
	db    *gorm.DB
	cache *CacheService
	now   func() time.Time
}

func NewReputationService(db *gorm.DB, cache *CacheService) *ReputationService {
	return &ReputationService{
		db:    db,
		cache: cache,
		now:   time.Now,
	}
}

func (s *ReputationService) WithClock(now func() time.Time) *ReputationService {
	s.now = now
	return s
}

// ComputeTrustScore is the pure scoring rule: a 50 point baseline, up to 30
// for success rate, up to 30 for average rating, one per review up to 10,
// and 10 for verified sellers, clamped to [0, 100].
func ComputeTrustScore(total, successful int64, avgRating float64, reviews int64, verified bool) float64 {
	score := models.TrustScoreBaseline

	if total > 0 {
		score += float64(successful) / float64(total) * 30
	}
	if reviews > 0 {
		score += avgRating / 5 * 30
	}
	score += math.Min(float64(reviews), 10)
	if verified {
		score += 10
	}

	return math.Max(models.TrustScoreMin, math.Min(models.TrustScoreMax, score))
}

// EnsureTrustScore creates the neutral row for userID if it does not exist.
func (s *ReputationService) EnsureTrustScore(tx *gorm.DB, userID uuid.UUID) error {
	row := models.NewTrustScore(userID, s.now().UTC())
	row.VerifiedSeller = s.userVerified(tx, userID)

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return utils.NewInternal("failed to create trust score", err)
	}
	return nil
}

// RecordOutcome adjusts the transaction counters. It must run in the same
// transaction as the status change it reflects.
func (s *ReputationService) RecordOutcome(tx *gorm.DB, userID uuid.UUID, outcome Outcome) error {
	if err := s.EnsureTrustScore(tx, userID); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	switch outcome {
	case OutcomeSuccess:
		updates["total_transactions"] = gorm.Expr("total_transactions + 1")
		updates["successful_transactions"] = gorm.Expr("successful_transactions + 1")
	case OutcomeFailure:
		updates["total_transactions"] = gorm.Expr("total_transactions + 1")
	case OutcomeReversed:
		updates["successful_transactions"] = gorm.Expr("CASE WHEN successful_transactions > 0 THEN successful_transactions - 1 ELSE 0 END")
	}

	if err := tx.Model(&models.TrustScore{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
		return utils.NewInternal("failed to record transaction outcome", err)
	}
	return nil
}

// Recompute recalculates userID's score in its own transaction and drops the
// cached profile.
func (s *ReputationService) Recompute(ctx context.Context, userID uuid.UUID) (*models.TrustScore, error) {
	var score *models.TrustScore
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		score, err = s.RecomputeTx(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, ProfileCacheKey(userID))
	return score, nil
}

// RecomputeTx locks the user's trust row, reads the aggregates and writes
// the new score inside tx. Concurrent recomputes for one user serialize on
// the row lock.
func (s *ReputationService) RecomputeTx(tx *gorm.DB, userID uuid.UUID) (*models.TrustScore, error) {
	if err := s.EnsureTrustScore(tx, userID); err != nil {
		return nil, err
	}

	var score models.TrustScore
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&score, "user_id = ?", userID).Error; err != nil {
		return nil, utils.NewInternal("failed to lock trust score", err)
	}

	var agg struct {
		ReviewCount int64
		AvgRating   sql.NullFloat64
	}
	if err := tx.Model(&models.Review{}).
		Select("COUNT(*) AS review_count, AVG(rating) AS avg_rating").
		Where("reviewed_user_id = ?", userID).
		Scan(&agg).Error; err != nil {
		return nil, utils.NewInternal("failed to aggregate reviews", err)
	}

	verified := score.VerifiedSeller || s.userVerified(tx, userID)
	avg := 0.0
	if agg.AvgRating.Valid {
		avg = agg.AvgRating.Float64
	}

	score.AverageRating = math.Round(avg*100) / 100
	score.TotalReviews = agg.ReviewCount
	score.VerifiedSeller = verified
	score.TrustScore = ComputeTrustScore(score.TotalTransactions, score.SuccessfulTransactions, avg, agg.ReviewCount, verified)
	score.LastCalculated = s.now().UTC()

	if err := tx.Model(&models.TrustScore{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"average_rating":  score.AverageRating,
		"total_reviews":   score.TotalReviews,
		"verified_seller": score.VerifiedSeller,
		"trust_score":     score.TrustScore,
		"last_calculated": score.LastCalculated,
	}).Error; err != nil {
		return nil, utils.NewInternal("failed to write trust score", err)
	}

	return &score, nil
}

func (s *ReputationService) GetTrustScore(ctx context.Context, userID uuid.UUID) (*models.TrustScore, error) {
	var score models.TrustScore
	err := s.db.WithContext(ctx).First(&score, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewTrustScore(userID, s.now().UTC()), nil
	}
	if err != nil {
		return nil, utils.NewInternal("failed to load trust score", err)
	}
	return &score, nil
}

// GetProfile assembles the public profile, reading its parts concurrently.
func (s *ReputationService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var cached models.Profile
	if s.cache.GetJSON(ctx, ProfileCacheKey(userID), &cached) {
		return &cached, nil
	}

	var (
		user       models.User
		userFound  bool
		trustFound bool
		profile    = models.Profile{UserID: userID}
	)

	g, gctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(gctx)

	g.Go(func() error {
		err := db.Select("id", "username").First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		userFound = err == nil
		return err
	})
	g.Go(func() error {
		err := db.First(&profile.TrustScore, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		trustFound = err == nil
		return err
	})
	g.Go(func() error {
		return db.Model(&models.Listing{}).
			Where("seller_id = ? AND status = ?", userID, models.ListingStatusActive).
			Count(&profile.ActiveListings).Error
	})
	g.Go(func() error {
		return db.Model(&models.Transaction{}).
			Where("seller_id = ? AND status = ?", userID, models.TransactionStatusCompleted).
			Count(&profile.CompletedSales).Error
	})
	g.Go(func() error {
		return db.Model(&models.Review{}).
			Select("reviews.*, users.username AS reviewer_username").
			Joins("LEFT JOIN users ON users.id = reviews.reviewer_id").
			Where("reviews.reviewed_user_id = ?", userID).
			Order("reviews.created_at DESC").
			Limit(recentReviewLimit).
			Find(&profile.RecentReviews).Error
	})

	if err := g.Wait(); err != nil {
		return nil, utils.NewInternal("failed to load profile", err)
	}
	if !userFound && !trustFound {
		return nil, utils.NewNotFound("user")
	}

	profile.Username = user.Username
	if !trustFound {
		profile.TrustScore = *models.NewTrustScore(userID, s.now().UTC())
	}
	if profile.RecentReviews == nil {
		profile.RecentReviews = []models.Review{}
	}

	s.cache.SetJSON(ctx, ProfileCacheKey(userID), profile, ProfileCacheTTL)
	return &profile, nil
}

func (s *ReputationService) userVerified(tx *gorm.DB, userID uuid.UUID) bool {
	var user models.User
	if err := tx.Select("id", "verification_level").First(&user, "id = ?", userID).Error; err != nil {
		return false
	}
	return user.IsVerified()
}
