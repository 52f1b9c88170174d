// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	BaseModel
	ListingID          uuid.UUID         `json:"listing_id" gorm:"type:uuid;not null;index"`
	BuyerID            uuid.UUID         `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID           uuid.UUID         `json:"seller_id" gorm:"type:uuid;not null;index"`
	Amount             decimal.Decimal   `json:"amount" gorm:"type:decimal(12,2);not null"`
	Status             TransactionStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentMethod      PaymentMethod     `json:"payment_method" gorm:"type:varchar(20);not null"`
	PaymentID          string            `json:"payment_id,omitempty" gorm:"size:255"`
	EscrowReleaseDate  *time.Time        `json:"escrow_release_date"`
	CompletedAt        *time.Time        `json:"completed_at"`
	CancelledAt        *time.Time        `json:"cancelled_at"`
	DisputedAt         *time.Time        `json:"disputed_at"`
	CancellationReason string            `json:"cancellation_reason,omitempty" gorm:"type:text"`
	DisputeReason      string            `json:"dispute_reason,omitempty" gorm:"type:text"`

	// Read-only join columns.
	ListingTitle   string `json:"listing_title,omitempty" gorm:"->;-:migration"`
	BuyerUsername  string `json:"buyer_username,omitempty" gorm:"->;-:migration"`
	SellerUsername string `json:"seller_username,omitempty" gorm:"->;-:migration"`
}

func (t *Transaction) IsParty(userID uuid.UUID) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// CounterpartyOf returns the other participant, or uuid.Nil if userID is
// not a party.
func (t *Transaction) CounterpartyOf(userID uuid.UUID) uuid.UUID {
	switch userID {
	case t.BuyerID:
		return t.SellerID
	case t.SellerID:
		return t.BuyerID
	}
	return uuid.Nil
}

// TransactionDetail is the party-facing view of a transaction.
type TransactionDetail struct {
	Transaction
	CanReview   bool `json:"can_review"`
	HasReviewed bool `json:"has_reviewed"`
}

// CouponAccessGrant records that a user may reveal a listing's code. It is
// written exactly once, when the purchase completes.
type CouponAccessGrant struct {
	ListingID     uuid.UUID `json:"listing_id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID `json:"transaction_id" gorm:"type:uuid;not null;index"`
	GrantedAt     time.Time `json:"granted_at"`
}
