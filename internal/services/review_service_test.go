// internal/services/review_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

func TestCreateReviewUpdatesTrust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller")
	buyer := f.user(t, "buyer")
	listing := f.listing(t, seller, codeListing("REVIEW-ME", "Reviewed code", 10))
	tx := f.completed(t, buyer, listing.ID)

	review, err := f.svc.Reviews.CreateReview(ctx, buyer, &CreateReviewRequest{
		TransactionID: tx.ID,
		Rating:        5,
		Comment:       "  Worked first time  ",
		DealVerified:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, seller, review.ReviewedUserID)
	assert.Equal(t, listing.ID, review.ListingID)
	assert.Equal(t, "Worked first time", review.Comment)
	assert.True(t, review.IsBuyerReview)
	assert.True(t, review.DealVerified)

	score, err := f.svc.Reputation.GetTrustScore(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, int64(1), score.TotalReviews)
	assert.Equal(t, 5.0, score.AverageRating)
	assert.Equal(t, models.TrustScoreMax, score.TrustScore)

	var notified int64
	require.NoError(t, f.svc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", seller, models.NotificationNewReview).Count(&notified).Error)
	assert.Equal(t, int64(1), notified)

	_, err = f.svc.Reviews.CreateReview(ctx, buyer, &CreateReviewRequest{TransactionID: tx.ID, Rating: 4})
	assert.True(t, utils.IsKind(err, utils.KindConflict))
}

func TestSellerReviewOfBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller")
	buyer := f.user(t, "buyer")
	listing := f.listing(t, seller, codeListing("BOTH-WAYS", "Two-way review", 10))
	tx := f.completed(t, buyer, listing.ID)

	review, err := f.svc.Reviews.CreateReview(ctx, seller, &CreateReviewRequest{
		TransactionID: tx.ID,
		Rating:        4,
		DealVerified:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, buyer, review.ReviewedUserID)
	assert.False(t, review.IsBuyerReview)
	assert.False(t, review.DealVerified, "only buyers can vouch for the deal")

	score, err := f.svc.Reputation.GetTrustScore(ctx, buyer)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, score.TrustScore, 0.001)
}

func TestCreateReviewRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller")
	buyer := f.user(t, "buyer")
	stranger := f.user(t, "stranger")
	listing := f.listing(t, seller, codeListing("NOT-YET", "Still in escrow", 10))
	tx := f.escrowed(t, buyer, listing.ID)

	_, err := f.svc.Reviews.CreateReview(ctx, buyer, &CreateReviewRequest{TransactionID: tx.ID, Rating: 0})
	assert.True(t, utils.IsKind(err, utils.KindInvalidOperation))

	_, err = f.svc.Reviews.CreateReview(ctx, buyer, &CreateReviewRequest{TransactionID: tx.ID, Rating: 6})
	assert.True(t, utils.IsKind(err, utils.KindInvalidOperation))

	_, err = f.svc.Reviews.CreateReview(ctx, buyer, &CreateReviewRequest{TransactionID: tx.ID, Rating: 5})
	assert.True(t, utils.IsKind(err, utils.KindConflict))

	_, err = f.svc.Reviews.CreateReview(ctx, stranger, &CreateReviewRequest{TransactionID: tx.ID, Rating: 5})
	assert.True(t, utils.IsKind(err, utils.KindForbidden))

	_, err = f.svc.Reviews.CreateReview(ctx, buyer, &CreateReviewRequest{TransactionID: uuid.New(), Rating: 5})
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}

func TestListReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller")
	buyer := f.user(t, "buyer")
	listing := f.listing(t, seller, codeListing("LISTED", "Listed review", 10))
	tx := f.completed(t, buyer, listing.ID)

	_, err := f.svc.Reviews.CreateReview(ctx, buyer, &CreateReviewRequest{TransactionID: tx.ID, Rating: 4, Comment: "fine"})
	require.NoError(t, err)
	_, err = f.svc.Reviews.CreateReview(ctx, seller, &CreateReviewRequest{TransactionID: tx.ID, Rating: 5})
	require.NoError(t, err)

	params := utils.PaginationParams{Page: 1, Limit: 10}

	reviews, total, err := f.svc.Reviews.ListUserReviews(ctx, seller, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, reviews, 1)
	assert.Equal(t, "buyer", reviews[0].ReviewerUsername)
	assert.Equal(t, "fine", reviews[0].Comment)

	reviews, total, err = f.svc.Reviews.ListListingReviews(ctx, listing.ID, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, reviews, 2)

	reviews, total, err = f.svc.Reviews.ListUserReviews(ctx, uuid.New(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.NotNil(t, reviews)
}
