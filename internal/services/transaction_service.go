// internal/services/transaction_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/couponx-backend/internal/config"
	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

const paymentTimeoutReason = "payment timeout"

// TransactionService drives the escrow state machine:
// pending -> escrow -> completed, with cancellation from pending or escrow
// and disputes from escrow or shortly after completion.
type TransactionService struct {
	db            *gorm.DB
	rateLimiter   *RateLimiter
	reputation    *ReputationService
	notifications *NotificationService
	gateway       PaymentGateway
	cache         *CacheService
	rules         config.MarketplaceConfig
	now           func() time.Time
}

type PurchaseRequest struct {
	ListingID     uuid.UUID            `json:"listing_id" validate:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"required,payment_method"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

type TransactionFilters struct {
	Role   string                   `json:"role"` // buyer | seller | "" for both
	Status models.TransactionStatus `json:"status"`
}

func NewTransactionService(
	db *gorm.DB,
	rateLimiter *RateLimiter,
	reputation *ReputationService,
	notifications *NotificationService,
	gateway PaymentGateway,
	cache *CacheService,
	rules config.MarketplaceConfig,
) *TransactionService {
	return &TransactionService{
		db:            db,
		rateLimiter:   rateLimiter,
		reputation:    reputation,
		notifications: notifications,
		gateway:       gateway,
		cache:         cache,
		rules:         rules,
		now:           time.Now,
	}
}

func (s *TransactionService) WithClock(now func() time.Time) *TransactionService {
	s.now = now
	return s
}

// Purchase reserves an active listing for buyerID. The listing flip to sold
// and the transaction insert commit together; of any number of concurrent
// buyers exactly one succeeds and the rest see Conflict.
func (s *TransactionService) Purchase(ctx context.Context, buyerID uuid.UUID, req *PurchaseRequest) (*models.Transaction, error) {
	if !req.PaymentMethod.Valid() {
		return nil, utils.NewInvalid("unsupported payment method")
	}

	if _, err := s.rateLimiter.Gate(ctx, buyerID, models.ActionCreateTransaction); err != nil {
		return nil, err
	}

	var listing models.Listing
	var transaction *models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&listing, "id = ?", req.ListingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("listing")
			}
			return utils.NewInternal("failed to load listing", err)
		}

		if listing.Status != models.ListingStatusActive {
			return utils.NewConflict("listing", fmt.Sprintf("listing is %s", listing.Status))
		}
		if listing.IsExpired(s.now()) {
			return utils.NewConflict("listing", "listing has expired")
		}
		if listing.SellerID == buyerID {
			return utils.NewInvalid("you cannot purchase your own listing")
		}

		if err := markListing(tx, &listing, models.ListingStatusSold); err != nil {
			return err
		}

		transaction = &models.Transaction{
			ListingID:     listing.ID,
			BuyerID:       buyerID,
			SellerID:      listing.SellerID,
			Amount:        listing.SellingPrice,
			Status:        models.TransactionStatusPending,
			PaymentMethod: req.PaymentMethod,
		}
		if err := tx.Create(transaction).Error; err != nil {
			return utils.NewInternal("failed to create transaction", err)
		}

		return s.reputation.EnsureTrustScore(tx, buyerID)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateListing(ctx, &listing)
	s.notifications.NotifyNewSale(ctx, transaction, listing.Title)

	logrus.WithFields(logrus.Fields{
		"transaction_id": transaction.ID,
		"listing_id":     listing.ID,
		"buyer_id":       buyerID,
	}).Info("Listing purchased")

	return transaction, nil
}

// markListing moves a listing along an allowed edge, guarded on its
// current status.
func markListing(tx *gorm.DB, listing *models.Listing, to models.ListingStatus) error {
	if !listing.Status.CanTransitionTo(to) {
		return utils.NewConflict("listing", fmt.Sprintf("listing cannot move from %s to %s", listing.Status, to))
	}

	result := tx.Model(&models.Listing{}).
		Where("id = ? AND status = ?", listing.ID, listing.Status).
		Update("status", to)
	if result.Error != nil {
		return utils.NewInternal("failed to update listing status", result.Error)
	}
	if result.RowsAffected != 1 {
		return utils.NewConflict("listing", "listing is no longer available")
	}

	listing.Status = to
	return nil
}

// transition moves t to the next status if the state machine allows it and
// the row has not changed underneath us.
func transition(tx *gorm.DB, t *models.Transaction, to models.TransactionStatus, updates map[string]interface{}) error {
	if !t.Status.CanTransitionTo(to) {
		return utils.NewConflict("transaction", fmt.Sprintf("transaction cannot move from %s to %s", t.Status, to))
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	result := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", t.ID, t.Status).
		Updates(updates)
	if result.Error != nil {
		return utils.NewInternal("failed to update transaction", result.Error)
	}
	if result.RowsAffected != 1 {
		return utils.NewConflict("transaction", "transaction was modified concurrently")
	}

	t.Status = to
	return nil
}

func (s *TransactionService) load(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFound("transaction")
	}
	if err != nil {
		return nil, utils.NewInternal("failed to load transaction", err)
	}
	return &t, nil
}

func (s *TransactionService) loadAsBuyer(ctx context.Context, buyerID, id uuid.UUID) (*models.Transaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.BuyerID != buyerID {
		return nil, utils.NewForbidden("transaction", "only the buyer can perform this action")
	}
	return t, nil
}

func (s *TransactionService) loadAsParty(ctx context.Context, callerID, id uuid.UUID) (*models.Transaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(callerID) {
		return nil, utils.NewForbidden("transaction", "you are not a party to this transaction")
	}
	return t, nil
}

// CreatePaymentHold asks the gateway to authorize the buyer's funds for a
// pending transaction.
func (s *TransactionService) CreatePaymentHold(ctx context.Context, buyerID, id uuid.UUID) (*PaymentHold, error) {
	t, err := s.loadAsBuyer(ctx, buyerID, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TransactionStatusPending {
		return nil, utils.NewConflict("transaction", fmt.Sprintf("transaction is %s", t.Status))
	}
	if t.PaymentID != "" {
		return nil, utils.NewConflict("transaction", "a payment hold already exists")
	}

	hold, err := s.gateway.CreateHold(ctx, t)
	if err != nil {
		return nil, utils.NewInternal("failed to create payment hold", err)
	}

	result := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ? AND payment_id = ?", t.ID, models.TransactionStatusPending, "").
		Update("payment_id", hold.PaymentID)
	if result.Error != nil {
		return nil, utils.NewInternal("failed to store payment hold", result.Error)
	}
	if result.RowsAffected != 1 {
		s.releaseHold(ctx, hold.PaymentID)
		return nil, utils.NewConflict("transaction", "transaction changed while creating the payment hold")
	}

	return hold, nil
}

// ConfirmEscrow moves a pending transaction into escrow once the gateway
// reports the hold in place.
func (s *TransactionService) ConfirmEscrow(ctx context.Context, buyerID, id uuid.UUID) (*models.Transaction, error) {
	t, err := s.loadAsBuyer(ctx, buyerID, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TransactionStatusPending {
		return nil, utils.NewConflict("transaction", fmt.Sprintf("transaction is %s", t.Status))
	}
	if t.PaymentID == "" {
		return nil, utils.NewConflict("transaction", "no payment hold has been created")
	}

	held, err := s.gateway.HoldConfirmed(ctx, t.PaymentID)
	if err != nil {
		return nil, utils.NewInternal("failed to check payment hold", err)
	}
	if !held {
		return nil, utils.NewConflict("transaction", "payment hold is not confirmed yet")
	}

	release := s.now().UTC().Add(s.rules.EscrowHoldPeriod)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transition(tx, t, models.TransactionStatusEscrow, map[string]interface{}{
			"escrow_release_date": release,
		})
	})
	if err != nil {
		return nil, err
	}
	t.EscrowReleaseDate = &release

	s.notifications.NotifyPaymentHeld(ctx, t)
	return t, nil
}

// Complete is the buyer's confirmation that the code worked. It captures
// the hold, grants the buyer access to the code and credits the seller.
func (s *TransactionService) Complete(ctx context.Context, buyerID, id uuid.UUID) (*models.Transaction, error) {
	t, err := s.loadAsBuyer(ctx, buyerID, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TransactionStatusEscrow {
		return nil, utils.NewConflict("transaction", fmt.Sprintf("transaction is %s", t.Status))
	}

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, t, models.TransactionStatusCompleted, map[string]interface{}{
			"completed_at": now,
		}); err != nil {
			return err
		}

		grant := &models.CouponAccessGrant{
			ListingID:     t.ListingID,
			UserID:        t.BuyerID,
			TransactionID: t.ID,
			GrantedAt:     now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(grant).Error; err != nil {
			return utils.NewInternal("failed to grant code access", err)
		}

		if err := s.reputation.RecordOutcome(tx, t.SellerID, OutcomeSuccess); err != nil {
			return err
		}
		if _, err := s.reputation.RecomputeTx(tx, t.SellerID); err != nil {
			return err
		}

		// Capture is the last step: a failed write above leaves the hold
		// untouched, and a retry after a failed commit captures again
		// idempotently.
		if t.PaymentID != "" {
			if err := s.gateway.Capture(ctx, t.PaymentID); err != nil {
				return utils.NewInternal("failed to capture payment", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.CompletedAt = &now

	s.cache.Invalidate(ctx, ProfileCacheKey(t.SellerID))
	s.notifications.NotifyCompleted(ctx, t)

	logrus.WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"seller_id":      t.SellerID,
	}).Info("Transaction completed")

	return t, nil
}

// Cancel ends a pending or escrowed transaction and releases the hold. The
// listing stays sold.
func (s *TransactionService) Cancel(ctx context.Context, callerID, id uuid.UUID, reason string) (*models.Transaction, error) {
	t, err := s.loadAsParty(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.cancel(ctx, t, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}

	s.notifications.NotifyCancelled(ctx, t, t.CounterpartyOf(callerID))
	return t, nil
}

func (s *TransactionService) cancel(ctx context.Context, t *models.Transaction, reason string) error {
	if t.Status != models.TransactionStatusPending && t.Status != models.TransactionStatusEscrow {
		return utils.NewConflict("transaction", fmt.Sprintf("transaction is %s", t.Status))
	}

	if t.PaymentID != "" {
		if err := s.gateway.Release(ctx, t.PaymentID); err != nil {
			return utils.NewInternal("failed to release payment hold", err)
		}
	}

	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transition(tx, t, models.TransactionStatusCancelled, map[string]interface{}{
			"cancelled_at":        now,
			"cancellation_reason": reason,
		})
	})
	if err != nil {
		return err
	}

	t.CancelledAt = &now
	t.CancellationReason = reason
	return nil
}

// Dispute flags a transaction in escrow, or one completed within the
// dispute window. Either way the sale stops counting as successful for the
// seller.
func (s *TransactionService) Dispute(ctx context.Context, callerID, id uuid.UUID, reason string) (*models.Transaction, error) {
	t, err := s.loadAsParty(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewInvalid("a dispute needs a reason")
	}

	now := s.now().UTC()
	var outcome Outcome
	switch t.Status {
	case models.TransactionStatusEscrow:
		outcome = OutcomeFailure
	case models.TransactionStatusCompleted:
		if t.CompletedAt == nil || now.After(t.CompletedAt.Add(s.rules.DisputeWindow)) {
			return nil, utils.NewConflict("transaction", "the dispute window has closed")
		}
		outcome = OutcomeReversed
	case models.TransactionStatusPending, models.TransactionStatusCancelled, models.TransactionStatusDisputed:
		return nil, utils.NewConflict("transaction", fmt.Sprintf("transaction is %s", t.Status))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, t, models.TransactionStatusDisputed, map[string]interface{}{
			"disputed_at":    now,
			"dispute_reason": reason,
		}); err != nil {
			return err
		}
		if err := s.reputation.RecordOutcome(tx, t.SellerID, outcome); err != nil {
			return err
		}
		_, err := s.reputation.RecomputeTx(tx, t.SellerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	t.DisputedAt = &now
	t.DisputeReason = reason

	s.cache.Invalidate(ctx, ProfileCacheKey(t.SellerID))
	s.notifications.NotifyDisputed(ctx, t, t.CounterpartyOf(callerID))

	logrus.WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"opened_by":      callerID,
	}).Warn("Transaction disputed")

	return t, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, callerID, id uuid.UUID) (*models.TransactionDetail, error) {
	var t models.Transaction
	err := s.withParties(s.db.WithContext(ctx).Model(&models.Transaction{})).
		Where("transactions.id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFound("transaction")
	}
	if err != nil {
		return nil, utils.NewInternal("failed to load transaction", err)
	}
	if !t.IsParty(callerID) {
		return nil, utils.NewForbidden("transaction", "you are not a party to this transaction")
	}

	var reviews int64
	if err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("transaction_id = ? AND reviewer_id = ?", t.ID, callerID).
		Count(&reviews).Error; err != nil {
		return nil, utils.NewInternal("failed to check reviews", err)
	}

	return &models.TransactionDetail{
		Transaction: t,
		HasReviewed: reviews > 0,
		CanReview:   t.Status == models.TransactionStatusCompleted && reviews == 0,
	}, nil
}

func (s *TransactionService) ListTransactions(ctx context.Context, callerID uuid.UUID, filters TransactionFilters, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	params = utils.NormalizePagination(params)

	filter := utils.NewFilter("transactions")
	switch filters.Role {
	case "buyer":
		filter.Eq("buyer_id", callerID)
	case "seller":
		filter.Eq("seller_id", callerID)
	case "":
	default:
		return nil, 0, utils.NewInvalid("role must be buyer or seller")
	}
	if filters.Status != "" {
		if !filters.Status.Valid() {
			return nil, 0, utils.NewInvalid("unsupported transaction status")
		}
		filter.Eq("status", filters.Status)
	}

	base := func() *gorm.DB {
		q := filter.Apply(s.db.WithContext(ctx).Model(&models.Transaction{}))
		if filters.Role == "" {
			q = q.Where("(transactions.buyer_id = ? OR transactions.seller_id = ?)", callerID, callerID)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to count transactions", err)
	}

	transactions := []models.Transaction{}
	query := utils.ApplyPagination(s.withParties(base()).Order("transactions.created_at DESC"), params)
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to list transactions", err)
	}
	return transactions, total, nil
}

func (s *TransactionService) withParties(query *gorm.DB) *gorm.DB {
	return query.
		Select("transactions.*, listings.title AS listing_title, buyers.username AS buyer_username, sellers.username AS seller_username").
		Joins("LEFT JOIN listings ON listings.id = transactions.listing_id").
		Joins("LEFT JOIN users buyers ON buyers.id = transactions.buyer_id").
		Joins("LEFT JOIN users sellers ON sellers.id = transactions.seller_id")
}

// CancelStalePending cancels pending transactions older than the payment
// timeout and returns how many were cancelled.
func (s *TransactionService) CancelStalePending(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.rules.PendingTimeout)

	var stale []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.TransactionStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, utils.NewInternal("failed to find stale transactions", err)
	}

	cancelled := 0
	for i := range stale {
		t := &stale[i]
		if err := s.cancel(ctx, t, paymentTimeoutReason); err != nil {
			if utils.IsKind(err, utils.KindConflict) {
				continue
			}
			logrus.WithError(err).WithField("transaction_id", t.ID).Error("Failed to cancel stale transaction")
			continue
		}
		cancelled++
		s.notifications.NotifyCancelled(ctx, t, t.BuyerID)
		s.notifications.NotifyCancelled(ctx, t, t.SellerID)
	}
	return cancelled, nil
}

func (s *TransactionService) releaseHold(ctx context.Context, paymentID string) {
	if err := s.gateway.Release(ctx, paymentID); err != nil {
		logrus.WithError(err).WithField("payment_id", paymentID).Error("Failed to release orphaned payment hold")
	}
}
