// internal/services/duplicate_detector_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/couponx-backend/internal/models"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE20NOW", NormalizeCode(" save-20 now\n"))
	assert.Equal(t, "", NormalizeCode(" - "))
}

func TestFingerprintIgnoresFormatting(t *testing.T) {
	a := Fingerprint("save-20", models.CategoryFoodDining, "PizzaPlace")
	b := Fingerprint("SAVE 20", models.CategoryFoodDining, " pizzaplace ")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, Fingerprint("SAVE20", models.CategoryFashion, "PizzaPlace"))
	assert.NotEqual(t, a, Fingerprint("SAVE20", models.CategoryFoodDining, ""))
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, JaccardSimilarity("Half Price Pizza", "half price PIZZA"))
	assert.Equal(t, 0.0, JaccardSimilarity("free coffee", "cheap shoes"))
	assert.Equal(t, 0.0, JaccardSimilarity("", "anything"))
	assert.InDelta(t, 0.5, JaccardSimilarity("a b c", "b c d"), 1e-9)
}

func TestClassify(t *testing.T) {
	confidence, flagged := Classify(1.0, true)
	assert.True(t, flagged)
	assert.Equal(t, 85, confidence)

	confidence, flagged = Classify(0.75, true)
	assert.True(t, flagged)
	assert.Equal(t, 85, confidence)

	_, flagged = Classify(0.75, false)
	assert.False(t, flagged)

	confidence, flagged = Classify(0.9, false)
	assert.True(t, flagged)
	assert.Equal(t, 75, confidence)

	_, flagged = Classify(0.7, true)
	assert.False(t, flagged)
}

func TestDuplicateDetectorExactMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller")
	other := f.user(t, "other")

	listing := f.listing(t, seller, codeListing("PIZZA-50", "Half price pizza", 10))

	match, err := f.svc.Detector.Check(ctx, "pizza 50", models.CategoryFoodDining, "pizzaplace", other)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.True(t, match.IsExact())
	assert.Equal(t, listing.ID, match.ListingID)
	assert.Equal(t, 100, match.Confidence)
	assert.Equal(t, "seller", match.SellerUsername)
}

func TestDuplicateDetectorSimilarMatchSkipsOwnListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller")
	other := f.user(t, "other")

	f.listing(t, seller, codeListing("ABC123", "pizza deal", 10))

	match, err := f.svc.Detector.FindSimilar(ctx, "Pizza Deal", models.CategoryFoodDining, "PizzaPlace", other)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, models.MatchSimilar, match.MatchType)
	assert.Equal(t, 85, match.Confidence)

	match, err = f.svc.Detector.FindSimilar(ctx, "Pizza Deal", models.CategoryFoodDining, "PizzaPlace", seller)
	require.NoError(t, err)
	assert.Nil(t, match)

	match, err = f.svc.Detector.FindSimilar(ctx, "Pizza Deal", models.CategoryFashion, "PizzaPlace", other)
	require.NoError(t, err)
	assert.Nil(t, match)
}
