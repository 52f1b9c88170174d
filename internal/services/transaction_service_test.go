// internal/services/transaction_service_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

type TransactionServiceSuite struct {
	suite.Suite
	f       *fixture
	ctx     context.Context
	seller  uuid.UUID
	buyer   uuid.UUID
	other   uuid.UUID
	listing *models.Listing
}

func (s *TransactionServiceSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
	s.seller = s.f.user(s.T(), "seller")
	s.buyer = s.f.user(s.T(), "buyer")
	s.other = s.f.user(s.T(), "other")
	s.listing = s.f.listing(s.T(), s.seller, codeListing("PIZZA-HALF", "Half price pizza", 20))
}

func (s *TransactionServiceSuite) purchase(buyer uuid.UUID) (*models.Transaction, error) {
	return s.f.svc.Transactions.Purchase(s.ctx, buyer, &PurchaseRequest{
		ListingID:     s.listing.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
}

func (s *TransactionServiceSuite) reloadListing() models.Listing {
	var listing models.Listing
	s.Require().NoError(s.f.svc.DB.First(&listing, "id = ?", s.listing.ID).Error)
	return listing
}

func (s *TransactionServiceSuite) trust(userID uuid.UUID) models.TrustScore {
	var score models.TrustScore
	s.Require().NoError(s.f.svc.DB.First(&score, "user_id = ?", userID).Error)
	return score
}

func (s *TransactionServiceSuite) notifications(userID uuid.UUID, kind models.NotificationType) int64 {
	var count int64
	s.Require().NoError(s.f.svc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", userID, kind).Count(&count).Error)
	return count
}

func (s *TransactionServiceSuite) TestPurchaseToCompletion() {
	tx, err := s.purchase(s.buyer)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusPending, tx.Status)
	s.True(decimal.NewFromInt(20).Equal(tx.Amount))
	s.Equal(s.seller, tx.SellerID)
	s.Equal(models.ListingStatusSold, s.reloadListing().Status)
	s.Equal(int64(1), s.notifications(s.seller, models.NotificationNewSale))

	hold, err := s.f.svc.Transactions.CreatePaymentHold(s.ctx, s.buyer, tx.ID)
	s.Require().NoError(err)
	s.NotEmpty(hold.ClientSecret)

	_, err = s.f.svc.Transactions.CreatePaymentHold(s.ctx, s.buyer, tx.ID)
	s.True(utils.IsKind(err, utils.KindConflict), "second hold")

	tx, err = s.f.svc.Transactions.ConfirmEscrow(s.ctx, s.buyer, tx.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusEscrow, tx.Status)
	s.Require().NotNil(tx.EscrowReleaseDate)
	s.WithinDuration(s.f.clock.Now().Add(72*time.Hour), *tx.EscrowReleaseDate, time.Second)

	tx, err = s.f.svc.Transactions.Complete(s.ctx, s.buyer, tx.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCompleted, tx.Status)
	s.NotNil(tx.CompletedAt)
	s.Equal([]string{hold.PaymentID}, s.f.gateway.captured)

	var grants int64
	s.Require().NoError(s.f.svc.DB.Model(&models.CouponAccessGrant{}).
		Where("listing_id = ? AND user_id = ?", s.listing.ID, s.buyer).Count(&grants).Error)
	s.Equal(int64(1), grants)

	score := s.trust(s.seller)
	s.Equal(int64(1), score.TotalTransactions)
	s.Equal(int64(1), score.SuccessfulTransactions)
	s.InDelta(80.0, score.TrustScore, 1e-9)
	s.Equal(int64(1), s.notifications(s.seller, models.NotificationTransactionCompleted))

	_, err = s.f.svc.Transactions.Complete(s.ctx, s.buyer, tx.ID)
	s.True(utils.IsKind(err, utils.KindConflict), "completing twice")
	s.Equal(int64(1), s.trust(s.seller).TotalTransactions)
}

func (s *TransactionServiceSuite) TestConcurrentPurchasesHaveOneWinner() {
	buyers := make([]uuid.UUID, 5)
	for i := range buyers {
		buyers[i] = s.f.user(s.T(), "racer"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, buyer := range buyers {
		wg.Add(1)
		go func(i int, buyer uuid.UUID) {
			defer wg.Done()
			_, errs[i] = s.purchase(buyer)
		}(i, buyer)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		s.True(utils.IsKind(err, utils.KindConflict), err.Error())
	}
	s.Equal(1, winners)

	var count int64
	s.Require().NoError(s.f.svc.DB.Model(&models.Transaction{}).Where("listing_id = ?", s.listing.ID).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *TransactionServiceSuite) TestPurchaseRejections() {
	_, err := s.purchase(s.seller)
	s.True(utils.IsKind(err, utils.KindInvalidOperation), "own listing")

	_, err = s.f.svc.Transactions.Purchase(s.ctx, s.buyer, &PurchaseRequest{ListingID: uuid.New(), PaymentMethod: models.PaymentMethodCard})
	s.True(utils.IsKind(err, utils.KindNotFound))

	_, err = s.f.svc.Transactions.Purchase(s.ctx, s.buyer, &PurchaseRequest{ListingID: s.listing.ID, PaymentMethod: "cash"})
	s.True(utils.IsKind(err, utils.KindInvalidOperation), "payment method")

	_, err = s.purchase(s.buyer)
	s.Require().NoError(err)
	_, err = s.purchase(s.other)
	s.True(utils.IsKind(err, utils.KindConflict), "already sold")
}

func (s *TransactionServiceSuite) TestPurchaseExpiredListing() {
	expires := s.f.clock.Now().Add(time.Hour)
	req := codeListing("EXPIRING", "Expiring voucher", 5)
	req.ExpirationDate = &expires
	listing := s.f.listing(s.T(), s.seller, req)

	s.f.clock.Advance(2 * time.Hour)
	_, err := s.f.svc.Transactions.Purchase(s.ctx, s.buyer, &PurchaseRequest{ListingID: listing.ID, PaymentMethod: models.PaymentMethodWallet})
	s.True(utils.IsKind(err, utils.KindConflict))
}

func (s *TransactionServiceSuite) TestEscrowRequiresConfirmedHold() {
	tx, err := s.purchase(s.buyer)
	s.Require().NoError(err)

	_, err = s.f.svc.Transactions.ConfirmEscrow(s.ctx, s.buyer, tx.ID)
	s.True(utils.IsKind(err, utils.KindConflict), "no hold yet")

	_, err = s.f.svc.Transactions.CreatePaymentHold(s.ctx, s.seller, tx.ID)
	s.True(utils.IsKind(err, utils.KindForbidden), "seller cannot pay")

	_, err = s.f.svc.Transactions.CreatePaymentHold(s.ctx, s.buyer, tx.ID)
	s.Require().NoError(err)

	s.f.gateway.confirmed = false
	_, err = s.f.svc.Transactions.ConfirmEscrow(s.ctx, s.buyer, tx.ID)
	s.True(utils.IsKind(err, utils.KindConflict), "hold not confirmed")

	s.f.gateway.confirmed = true
	_, err = s.f.svc.Transactions.ConfirmEscrow(s.ctx, s.buyer, tx.ID)
	s.NoError(err)
}

func (s *TransactionServiceSuite) TestCompleteGuards() {
	tx, err := s.purchase(s.buyer)
	s.Require().NoError(err)

	_, err = s.f.svc.Transactions.Complete(s.ctx, s.buyer, tx.ID)
	s.True(utils.IsKind(err, utils.KindConflict), "pending cannot complete")

	escrowed := s.f.escrowed(s.T(), s.other, s.f.listing(s.T(), s.seller, codeListing("SECOND", "Second voucher", 7)).ID)
	_, err = s.f.svc.Transactions.Complete(s.ctx, s.seller, escrowed.ID)
	s.True(utils.IsKind(err, utils.KindForbidden), "seller cannot confirm")

	_, err = s.f.svc.Transactions.Complete(s.ctx, s.buyer, uuid.New())
	s.True(utils.IsKind(err, utils.KindNotFound))
}

func (s *TransactionServiceSuite) grants() int64 {
	var count int64
	s.Require().NoError(s.f.svc.DB.Model(&models.CouponAccessGrant{}).
		Where("listing_id = ? AND user_id = ?", s.listing.ID, s.buyer).Count(&count).Error)
	return count
}

func (s *TransactionServiceSuite) TestFailedCompletionDoesNotCapture() {
	tx := s.f.escrowed(s.T(), s.buyer, s.listing.ID)
	s.Require().NoError(s.f.svc.DB.Migrator().DropTable(&models.CouponAccessGrant{}))

	_, err := s.f.svc.Transactions.Complete(s.ctx, s.buyer, tx.ID)
	s.True(utils.IsKind(err, utils.KindInternal), "grant write fails")
	s.Empty(s.f.gateway.captured)

	var reloaded models.Transaction
	s.Require().NoError(s.f.svc.DB.First(&reloaded, "id = ?", tx.ID).Error)
	s.Equal(models.TransactionStatusEscrow, reloaded.Status)
	s.Equal(int64(0), s.trust(s.seller).TotalTransactions)

	s.Require().NoError(s.f.svc.DB.AutoMigrate(&models.CouponAccessGrant{}))
	completed, err := s.f.svc.Transactions.Complete(s.ctx, s.buyer, tx.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCompleted, completed.Status)
	s.Equal([]string{tx.PaymentID}, s.f.gateway.captured)
	s.Equal(int64(1), s.grants())
	s.Equal(int64(1), s.trust(s.seller).SuccessfulTransactions)
}

func (s *TransactionServiceSuite) TestCaptureFailureRollsBackCompletion() {
	tx := s.f.escrowed(s.T(), s.buyer, s.listing.ID)
	s.f.gateway.captureErr = errors.New("card declined")

	_, err := s.f.svc.Transactions.Complete(s.ctx, s.buyer, tx.ID)
	s.True(utils.IsKind(err, utils.KindInternal))

	var reloaded models.Transaction
	s.Require().NoError(s.f.svc.DB.First(&reloaded, "id = ?", tx.ID).Error)
	s.Equal(models.TransactionStatusEscrow, reloaded.Status)
	s.Nil(reloaded.CompletedAt)
	s.Equal(int64(0), s.grants())
	s.Equal(int64(0), s.trust(s.seller).TotalTransactions)

	s.f.gateway.captureErr = nil
	_, err = s.f.svc.Transactions.Complete(s.ctx, s.buyer, tx.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), s.grants())
}

func (s *TransactionServiceSuite) TestCancelFromEscrow() {
	tx := s.f.escrowed(s.T(), s.buyer, s.listing.ID)

	_, err := s.f.svc.Transactions.Cancel(s.ctx, s.other, tx.ID, "not mine")
	s.True(utils.IsKind(err, utils.KindForbidden))

	tx, err = s.f.svc.Transactions.Cancel(s.ctx, s.seller, tx.ID, "  code already used  ")
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCancelled, tx.Status)
	s.Equal("code already used", tx.CancellationReason)
	s.NotNil(tx.CancelledAt)
	s.Len(s.f.gateway.released, 1)

	s.Equal(models.ListingStatusSold, s.reloadListing().Status, "cancelled listings stay sold")
	s.Equal(int64(1), s.notifications(s.buyer, models.NotificationTransactionCancelled))

	_, err = s.f.svc.Transactions.Cancel(s.ctx, s.buyer, tx.ID, "again")
	s.True(utils.IsKind(err, utils.KindConflict))
}

func (s *TransactionServiceSuite) TestCancelCompletedIsConflict() {
	tx := s.f.completed(s.T(), s.buyer, s.listing.ID)

	_, err := s.f.svc.Transactions.Cancel(s.ctx, s.buyer, tx.ID, "changed my mind")
	s.True(utils.IsKind(err, utils.KindConflict))
}

func (s *TransactionServiceSuite) TestDisputeFromEscrow() {
	tx := s.f.escrowed(s.T(), s.buyer, s.listing.ID)

	_, err := s.f.svc.Transactions.Dispute(s.ctx, s.buyer, tx.ID, "   ")
	s.True(utils.IsKind(err, utils.KindInvalidOperation))

	tx, err = s.f.svc.Transactions.Dispute(s.ctx, s.buyer, tx.ID, "code rejected at checkout")
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusDisputed, tx.Status)
	s.Equal("code rejected at checkout", tx.DisputeReason)

	score := s.trust(s.seller)
	s.Equal(int64(1), score.TotalTransactions)
	s.Equal(int64(0), score.SuccessfulTransactions)
	s.InDelta(50.0, score.TrustScore, 1e-9)
	s.Equal(int64(1), s.notifications(s.seller, models.NotificationTransactionDisputed))
}

func (s *TransactionServiceSuite) TestDisputeAfterCompletion() {
	tx := s.f.completed(s.T(), s.buyer, s.listing.ID)
	s.InDelta(80.0, s.trust(s.seller).TrustScore, 1e-9)

	s.f.clock.Advance(24 * time.Hour)
	_, err := s.f.svc.Transactions.Dispute(s.ctx, s.buyer, tx.ID, "merchant refused the code")
	s.Require().NoError(err)

	score := s.trust(s.seller)
	s.Equal(int64(1), score.TotalTransactions)
	s.Equal(int64(0), score.SuccessfulTransactions)
	s.InDelta(50.0, score.TrustScore, 1e-9)

	_, err = s.f.svc.Transactions.Dispute(s.ctx, s.buyer, tx.ID, "again")
	s.True(utils.IsKind(err, utils.KindConflict))
}

func (s *TransactionServiceSuite) TestDisputeWindowCloses() {
	tx := s.f.completed(s.T(), s.buyer, s.listing.ID)

	s.f.clock.Advance(8 * 24 * time.Hour)
	_, err := s.f.svc.Transactions.Dispute(s.ctx, s.buyer, tx.ID, "too late")
	s.True(utils.IsKind(err, utils.KindConflict))
}

func (s *TransactionServiceSuite) TestGetTransaction() {
	tx := s.f.completed(s.T(), s.buyer, s.listing.ID)

	detail, err := s.f.svc.Transactions.GetTransaction(s.ctx, s.buyer, tx.ID)
	s.Require().NoError(err)
	s.True(detail.CanReview)
	s.False(detail.HasReviewed)
	s.Equal("Half price pizza", detail.ListingTitle)
	s.Equal("buyer", detail.BuyerUsername)
	s.Equal("seller", detail.SellerUsername)

	_, err = s.f.svc.Transactions.GetTransaction(s.ctx, s.other, tx.ID)
	s.True(utils.IsKind(err, utils.KindForbidden))
}

func (s *TransactionServiceSuite) TestListTransactions() {
	_, err := s.purchase(s.buyer)
	s.Require().NoError(err)

	second := s.f.listing(s.T(), s.buyer, codeListing("BUYERS-OWN", "Buyer's own voucher", 3))
	_, err = s.f.svc.Transactions.Purchase(s.ctx, s.other, &PurchaseRequest{ListingID: second.ID, PaymentMethod: models.PaymentMethodUPI})
	s.Require().NoError(err)

	params := utils.PaginationParams{Page: 1, Limit: 10}

	all, total, err := s.f.svc.Transactions.ListTransactions(s.ctx, s.buyer, TransactionFilters{}, params)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(all, 2)

	bought, total, err := s.f.svc.Transactions.ListTransactions(s.ctx, s.buyer, TransactionFilters{Role: "buyer"}, params)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(s.listing.ID, bought[0].ListingID)

	_, total, err = s.f.svc.Transactions.ListTransactions(s.ctx, s.buyer, TransactionFilters{Role: "seller", Status: models.TransactionStatusCompleted}, params)
	s.Require().NoError(err)
	s.Equal(int64(0), total)

	_, _, err = s.f.svc.Transactions.ListTransactions(s.ctx, s.buyer, TransactionFilters{Role: "admin"}, params)
	s.True(utils.IsKind(err, utils.KindInvalidOperation))
}

func (s *TransactionServiceSuite) TestCancelStalePending() {
	stale, err := s.purchase(s.buyer)
	s.Require().NoError(err)

	s.f.clock.Advance(31 * time.Minute)
	cancelled, err := s.f.svc.Transactions.CancelStalePending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, cancelled)

	var reloaded models.Transaction
	s.Require().NoError(s.f.svc.DB.First(&reloaded, "id = ?", stale.ID).Error)
	s.Equal(models.TransactionStatusCancelled, reloaded.Status)
	s.Equal("payment timeout", reloaded.CancellationReason)

	cancelled, err = s.f.svc.Transactions.CancelStalePending(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, cancelled)
}

func TestTransactionServiceSuite(t *testing.T) {
	suite.Run(t, new(TransactionServiceSuite))
}
