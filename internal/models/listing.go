// internal/models/listing.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Listing struct {
	BaseModel
	SellerID           uuid.UUID           `json:"seller_id" gorm:"type:uuid;not null;index"`
	ListingType        ListingType         `json:"listing_type" gorm:"type:varchar(30);not null"`
	Title              string              `json:"title" gorm:"size:200;not null"`
	Description        string              `json:"description" gorm:"type:text"`
	Category           Category            `json:"category" gorm:"type:varchar(30);not null;index"`
	BrandName          string              `json:"brand_name" gorm:"size:100;index"`
	OriginalValue      decimal.NullDecimal `json:"original_value" gorm:"type:decimal(12,2)"`
	SellingPrice       decimal.Decimal     `json:"selling_price" gorm:"type:decimal(12,2);not null"`
	DiscountPercentage decimal.NullDecimal `json:"discount_percentage" gorm:"type:decimal(5,2)"`
	ExpirationDate     *time.Time          `json:"expiration_date" gorm:"index"`
	ProofImageURL      string              `json:"proof_image_url,omitempty" gorm:"size:500"`
	Status             ListingStatus       `json:"status" gorm:"type:varchar(20);not null;index"`
	ViewCount          int64               `json:"view_count" gorm:"default:0"`
	Tags               StringList          `json:"tags" gorm:"type:text"`
	IsVerified         bool                `json:"is_verified" gorm:"default:false"`
	VerificationDate   *time.Time          `json:"verification_date"`

	// Read-only join columns, filled by queries that LEFT JOIN users and
	// trust_scores.
	SellerUsername   string   `json:"seller_username,omitempty" gorm:"->;-:migration"`
	SellerTrustScore *float64 `json:"seller_trust_score,omitempty" gorm:"->;-:migration"`
}

// ComputeDiscount derives the discount percentage from the original value
// and selling price. It is left empty when the original value is absent or
// not positive.
func (l *Listing) ComputeDiscount() {
	l.DiscountPercentage = decimal.NullDecimal{}
	if !l.OriginalValue.Valid || !l.OriginalValue.Decimal.IsPositive() {
		return
	}
	orig := l.OriginalValue.Decimal
	pct := orig.Sub(l.SellingPrice).Div(orig).Mul(decimal.NewFromInt(100)).Round(2)
	l.DiscountPercentage = decimal.NullDecimal{Decimal: pct, Valid: true}
}

func (l *Listing) IsExpired(now time.Time) bool {
	return l.ExpirationDate != nil && !l.ExpirationDate.After(now)
}

// ListingSecret holds the encrypted redeemable code, kept apart from the
// listing row so ordinary reads never load it.
type ListingSecret struct {
	ListingID     uuid.UUID `json:"listing_id" gorm:"type:uuid;primaryKey"`
	EncryptedCode string    `json:"-" gorm:"type:text;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListingFingerprint is the normalized identity of a listing's code used
// for exact duplicate detection.
type ListingFingerprint struct {
	ListingID   uuid.UUID `json:"listing_id" gorm:"type:uuid;primaryKey"`
	Fingerprint string    `json:"fingerprint" gorm:"size:64;not null;index"`
	CreatedAt   time.Time `json:"created_at"`
}

type BrandCount struct {
	BrandName string `json:"brand_name"`
	Listings  int64  `json:"listings" gorm:"column:listing_count"`
}

type CategoryStats struct {
	Category       Category        `json:"category"`
	ActiveListings int64           `json:"active_listings"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	MinPrice       decimal.Decimal `json:"min_price"`
	MaxPrice       decimal.Decimal `json:"max_price"`
	MedianPrice    decimal.Decimal `json:"median_price"`
	TopBrands      []BrandCount    `json:"top_brands"`
}
