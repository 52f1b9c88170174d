// internal/utils/utils_test.go
package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/testutil"
)

func TestAppErrorKinds(t *testing.T) {
	cause := errors.New("disk on fire")
	err := error(NewInternal("load listing", cause))

	assert.True(t, IsKind(err, KindInternal))
	assert.False(t, IsKind(err, KindNotFound))
	assert.ErrorIs(t, err, cause)

	wrapped := errors.Join(errors.New("outer"), NewConflict("listing", "listing is not active"))
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindConflict, appErr.Kind)
	assert.Equal(t, "listing", appErr.Resource)
}

func TestHandleServiceErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{NewNotFound("listing"), http.StatusNotFound},
		{NewForbidden("transaction", "not a party"), http.StatusForbidden},
		{NewConflict("listing", "sold"), http.StatusConflict},
		{NewInvalid("self purchase"), http.StatusBadRequest},
		{NewInternal("boom", errors.New("x")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		HandleServiceError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.NotContains(t, w.Body.String(), "disk", "internal detail must not leak")
	}
}

func TestHandleServiceErrorRateLimitedHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	resetAt := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	HandleServiceError(c, NewRateLimited(models.ActionCreateListing, models.RateLimitDecision{
		Allowed:    false,
		Limit:      10,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: 90 * time.Second,
	}))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1767272400", w.Header().Get("X-RateLimit-Reset"))
}

type priceRequest struct {
	Type   models.ListingType   `validate:"required,listing_type"`
	Method models.PaymentMethod `validate:"required,payment_method"`
	Cat    models.Category      `validate:"required,enum"`
	Price  decimal.Decimal      `validate:"gt=0"`
	Orig   decimal.NullDecimal  `validate:"omitempty,gt=0"`
}

func TestValidatorCustomTags(t *testing.T) {
	ok := priceRequest{
		Type:   models.ListingTypeGiftCard,
		Method: models.PaymentMethodCard,
		Cat:    models.CategoryTravel,
		Price:  decimal.NewFromInt(5),
	}
	assert.NoError(t, ValidateStruct(ok))

	bad := ok
	bad.Type = "timeshare"
	bad.Method = "barter"
	bad.Cat = "weapons"
	bad.Price = decimal.Zero

	err := ValidateStruct(bad)
	require.Error(t, err)
	tags := map[string]bool{}
	for _, v := range GetValidationErrors(err) {
		tags[v.Tag] = true
	}
	assert.True(t, tags["listing_type"])
	assert.True(t, tags["payment_method"])
	assert.True(t, tags["enum"])
	assert.True(t, tags["gt"])
}

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	id := uuid.New()

	token, err := GenerateJWT(id, "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.UserID)

	SetJWTSecret("other-secret")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestFilterBindsValues(t *testing.T) {
	db := testutil.NewTestDB(t)
	seller := uuid.New()

	for _, title := range []string{"Pizza 50% off", "Sneaker voucher", "pizza_party deal"} {
		require.NoError(t, db.Create(&models.Listing{
			SellerID:     seller,
			ListingType:  models.ListingTypeDiscountCode,
			Title:        title,
			Category:     models.CategoryFoodDining,
			SellingPrice: decimal.NewFromInt(10),
			Status:       models.ListingStatusActive,
		}).Error)
	}

	var count int64
	f := NewFilter("listings").Eq("status", models.ListingStatusActive).Contains("PIZZA", "title", "description")
	require.NoError(t, f.Apply(db.Model(&models.Listing{})).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// LIKE wildcards in the term are literal.
	f = NewFilter("listings").Contains("50%", "title")
	require.NoError(t, f.Apply(db.Model(&models.Listing{})).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	f = NewFilter("listings").Contains("zz_", "title")
	require.NoError(t, f.Apply(db.Model(&models.Listing{})).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
