// internal/models/models_test.go
package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionStatusTransitions(t *testing.T) {
	allowed := map[TransactionStatus][]TransactionStatus{
		TransactionStatusPending:   {TransactionStatusEscrow, TransactionStatusCancelled},
		TransactionStatusEscrow:    {TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusDisputed},
		TransactionStatusCompleted: {TransactionStatusDisputed},
		TransactionStatusDisputed:  {TransactionStatusCompleted, TransactionStatusCancelled},
		TransactionStatusCancelled: nil,
	}
	all := []TransactionStatus{
		TransactionStatusPending, TransactionStatusEscrow, TransactionStatusCompleted,
		TransactionStatusCancelled, TransactionStatusDisputed,
	}

	for from, targets := range allowed {
		for _, to := range all {
			assert.Equal(t, contains(targets, to), from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, TransactionStatusCancelled.IsTerminal())
	assert.False(t, TransactionStatusDisputed.IsTerminal())
}

func contains(list []TransactionStatus, s TransactionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestListingStatusTransitions(t *testing.T) {
	assert.True(t, ListingStatusActive.CanTransitionTo(ListingStatusSold))
	assert.True(t, ListingStatusActive.CanTransitionTo(ListingStatusExpired))
	assert.False(t, ListingStatusActive.CanTransitionTo(ListingStatusActive))
	assert.False(t, ListingStatusSold.CanTransitionTo(ListingStatusActive))
	assert.False(t, ListingStatusExpired.CanTransitionTo(ListingStatusSold))
}

func TestComputeDiscount(t *testing.T) {
	l := &Listing{
		OriginalValue: decimal.NewNullDecimal(decimal.NewFromInt(30)),
		SellingPrice:  decimal.NewFromInt(20),
	}
	l.ComputeDiscount()
	assert.True(t, l.DiscountPercentage.Valid)
	assert.Equal(t, "33.33", l.DiscountPercentage.Decimal.StringFixed(2))

	l.OriginalValue = decimal.NullDecimal{}
	l.ComputeDiscount()
	assert.False(t, l.DiscountPercentage.Valid)

	l.OriginalValue = decimal.NewNullDecimal(decimal.Zero)
	l.ComputeDiscount()
	assert.False(t, l.DiscountPercentage.Valid)
}

func TestListingIsExpired(t *testing.T) {
	now := time.Now()
	l := &Listing{}
	assert.False(t, l.IsExpired(now))

	l.ExpirationDate = &now
	assert.True(t, l.IsExpired(now))

	later := now.Add(time.Minute)
	l.ExpirationDate = &later
	assert.False(t, l.IsExpired(now))
}

func TestEnumScanRejectsUnknownValues(t *testing.T) {
	var s TransactionStatus
	assert.NoError(t, s.Scan("escrow"))
	assert.Equal(t, TransactionStatusEscrow, s)
	assert.Error(t, s.Scan("refunded"))

	_, err := Category("weapons").Value()
	assert.Error(t, err)
}

func TestCounterpartyOf(t *testing.T) {
	tx := &Transaction{BuyerID: uuid.New(), SellerID: uuid.New()}
	assert.Equal(t, tx.SellerID, tx.CounterpartyOf(tx.BuyerID))
	assert.Equal(t, tx.BuyerID, tx.CounterpartyOf(tx.SellerID))
	assert.Equal(t, uuid.Nil, tx.CounterpartyOf(uuid.New()))
	assert.False(t, tx.IsParty(uuid.New()))
}

func TestStringListRoundTrip(t *testing.T) {
	v, err := StringList(nil).Value()
	assert.NoError(t, err)
	assert.Equal(t, "[]", v)

	var l StringList
	assert.NoError(t, l.Scan(`["a","b"]`))
	assert.Equal(t, StringList{"a", "b"}, l)
}
