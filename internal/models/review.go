// internal/models/review.go
package models

import "github.com/google/uuid"

type Review struct {
	BaseModel
	TransactionID  uuid.UUID `json:"transaction_id" gorm:"type:uuid;not null;uniqueIndex:idx_review_tx_reviewer"`
	ReviewerID     uuid.UUID `json:"reviewer_id" gorm:"type:uuid;not null;uniqueIndex:idx_review_tx_reviewer"`
	ReviewedUserID uuid.UUID `json:"reviewed_user_id" gorm:"type:uuid;not null;index"`
	ListingID      uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;index"`
	Rating         int       `json:"rating" gorm:"not null"`
	Comment        string    `json:"comment" gorm:"type:text"`
	DealVerified   bool      `json:"deal_verified" gorm:"default:false"`
	IsBuyerReview  bool      `json:"is_buyer_review"`

	ReviewerUsername string `json:"reviewer_username,omitempty" gorm:"->;-:migration"`
}
