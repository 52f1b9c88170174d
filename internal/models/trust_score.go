// internal/models/trust_score.go
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TrustScoreBaseline = 50.0
	TrustScoreMin      = 0.0
	TrustScoreMax      = 100.0
)

type TrustScore struct {
	UserID                 uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	TotalTransactions      int64     `json:"total_transactions" gorm:"default:0"`
	SuccessfulTransactions int64     `json:"successful_transactions" gorm:"default:0"`
	AverageRating          float64   `json:"average_rating" gorm:"default:0"`
	TotalReviews           int64     `json:"total_reviews" gorm:"default:0"`
	VerifiedSeller         bool      `json:"verified_seller" gorm:"default:false"`
	TrustScore             float64   `json:"trust_score" gorm:"default:50"`
	LastCalculated         time.Time `json:"last_calculated"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func NewTrustScore(userID uuid.UUID, now time.Time) *TrustScore {
	return &TrustScore{
		UserID:         userID,
		TrustScore:     TrustScoreBaseline,
		LastCalculated: now,
	}
}

func (t *TrustScore) SuccessRate() float64 {
	if t.TotalTransactions == 0 {
		return 0
	}
	return float64(t.SuccessfulTransactions) / float64(t.TotalTransactions)
}

// Profile is the public reputation view of a user.
type Profile struct {
	UserID         uuid.UUID  `json:"user_id"`
	Username       string     `json:"username"`
	TrustScore     TrustScore `json:"trust_score"`
	ActiveListings int64      `json:"active_listings"`
	CompletedSales int64      `json:"completed_sales"`
	RecentReviews  []Review   `json:"recent_reviews"`
}
