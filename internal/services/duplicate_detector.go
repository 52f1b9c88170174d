// internal/services/duplicate_detector.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

const (
	similarCandidateLimit    = 100
	brandSimilarityThreshold = 0.7
	similarityThreshold      = 0.8
	brandMatchConfidence     = 85
	similarMatchConfidence   = 75
	exactMatchConfidence     = 100
)

type DuplicateDetector struct {
	db *gorm.DB
}

func NewDuplicateDetector(db *gorm.DB) *DuplicateDetector {
	return &DuplicateDetector{db: db}
}

// NormalizeCode uppercases a code and drops whitespace and hyphens.
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fingerprint is the fixed-length identity of a code within a category and
// brand.
func Fingerprint(code string, category models.Category, brand string) string {
	input := NormalizeCode(code) + string(category)
	if brand = strings.TrimSpace(brand); brand != "" {
		input += strings.ToLower(brand)
	}
	return utils.HashString(input)
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(s)) {
		tokens[field] = struct{}{}
	}
	return tokens
}

// JaccardSimilarity is |A∩B| / |A∪B| over lowercase whitespace tokens, or
// 0 when either side has no tokens.
func JaccardSimilarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for token := range ta {
		if _, ok := tb[token]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

// Classify maps a similarity score to a confidence, or false if the pair
// should not be flagged.
func Classify(similarity float64, brandMatch bool) (int, bool) {
	switch {
	case brandMatch && similarity > brandSimilarityThreshold:
		return brandMatchConfidence, true
	case similarity > similarityThreshold:
		return similarMatchConfidence, true
	default:
		return 0, false
	}
}

// Check runs the exact fingerprint lookup and, if that finds nothing, the
// fuzzy title comparison.
func (d *DuplicateDetector) Check(ctx context.Context, code string, category models.Category, brand string, sellerID uuid.UUID) (*models.DuplicateMatch, error) {
	if code != "" {
		match, err := d.FindExact(ctx, Fingerprint(code, category, brand))
		if err != nil || match != nil {
			return match, err
		}
	}
	return d.FindSimilar(ctx, code, category, brand, sellerID)
}

// FindExact looks for an active listing carrying the same fingerprint,
// whoever the seller is.
func (d *DuplicateDetector) FindExact(ctx context.Context, fingerprint string) (*models.DuplicateMatch, error) {
	var listing models.Listing
	err := d.db.WithContext(ctx).
		Model(&models.Listing{}).
		Select("listings.id, listings.title, users.username AS seller_username").
		Joins("JOIN listing_fingerprints ON listing_fingerprints.listing_id = listings.id").
		Joins("LEFT JOIN users ON users.id = listings.seller_id").
		Where("listing_fingerprints.fingerprint = ?", fingerprint).
		Where("listings.status = ?", models.ListingStatusActive).
		Order("listings.created_at DESC").
		First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewInternal("fingerprint lookup", err)
	}

	return &models.DuplicateMatch{
		ListingID:      listing.ID,
		Title:          listing.Title,
		SellerUsername: listing.SellerUsername,
		Confidence:     exactMatchConfidence,
		MatchType:      models.MatchExact,
	}, nil
}

// FindSimilar compares the code's tokens with the titles of recent active
// listings in the category from other sellers and returns the first one
// that is flagged.
func (d *DuplicateDetector) FindSimilar(ctx context.Context, code string, category models.Category, brand string, excludeSeller uuid.UUID) (*models.DuplicateMatch, error) {
	brand = strings.TrimSpace(brand)

	query := d.db.WithContext(ctx).
		Model(&models.Listing{}).
		Select("listings.id, listings.title, listings.brand_name, users.username AS seller_username").
		Joins("LEFT JOIN users ON users.id = listings.seller_id").
		Where("listings.category = ?", category).
		Where("listings.status = ?", models.ListingStatusActive).
		Where("listings.seller_id <> ?", excludeSeller)
	if brand != "" {
		query = query.Where("LOWER(listings.brand_name) = ?", strings.ToLower(brand))
	}

	var candidates []models.Listing
	if err := query.Order("listings.created_at DESC").Limit(similarCandidateLimit).Find(&candidates).Error; err != nil {
		return nil, utils.NewInternal("similar listing lookup", err)
	}

	for _, candidate := range candidates {
		brandMatch := brand != "" && strings.EqualFold(candidate.BrandName, brand)
		confidence, flagged := Classify(JaccardSimilarity(candidate.Title, code), brandMatch)
		if !flagged {
			continue
		}
		return &models.DuplicateMatch{
			ListingID:      candidate.ID,
			Title:          candidate.Title,
			SellerUsername: candidate.SellerUsername,
			Confidence:     confidence,
			MatchType:      models.MatchSimilar,
		}, nil
	}

	return nil, nil
}
