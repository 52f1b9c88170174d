// internal/models/duplicate.go
package models

import "github.com/google/uuid"

type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchSimilar MatchType = "similar"
)

// DuplicateMatch describes an existing active listing that a new listing
// appears to repeat.
type DuplicateMatch struct {
	ListingID      uuid.UUID `json:"listing_id"`
	Title          string    `json:"title"`
	SellerUsername string    `json:"seller_username"`
	Confidence     int       `json:"confidence"`
	MatchType      MatchType `json:"match_type"`
}

func (m *DuplicateMatch) IsExact() bool {
	return m.MatchType == MatchExact
}
