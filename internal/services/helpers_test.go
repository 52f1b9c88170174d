// internal/services/helpers_test.go
package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/couponx-backend/internal/config"
	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/testutil"
)

const testVaultKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

// fakeGateway records gateway calls and lets tests decide whether a hold
// is confirmed.
type fakeGateway struct {
	mu         sync.Mutex
	confirmed  bool
	captureErr error
	holds      int
	captured   []string
	released   []string
}

func (g *fakeGateway) CreateHold(_ context.Context, t *models.Transaction) (*PaymentHold, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holds++
	return &PaymentHold{
		PaymentID:    "pi_test_" + t.ID.String(),
		ClientSecret: "secret_" + t.ID.String(),
		Status:       "requires_payment_method",
	}, nil
}

func (g *fakeGateway) HoldConfirmed(context.Context, string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmed, nil
}

func (g *fakeGateway) Capture(_ context.Context, paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captureErr != nil {
		return g.captureErr
	}
	g.captured = append(g.captured, paymentID)
	return nil
}

func (g *fakeGateway) Release(_ context.Context, paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = append(g.released, paymentID)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Vault:       config.VaultConfig{EncryptionKey: testVaultKey},
		Marketplace: config.MarketplaceConfig{
			RateLimits:         config.DefaultRateLimits(),
			RateLimitRetention: 24 * time.Hour,
			DisputeWindow:      7 * 24 * time.Hour,
			PendingTimeout:     30 * time.Minute,
			EscrowHoldPeriod:   72 * time.Hour,
			SweepInterval:      time.Minute,
		},
	}
}

type fixture struct {
	svc     *Services
	clock   *testutil.Clock
	gateway *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	backend, err := NewMemoryCache(256)
	require.NoError(t, err)

	gateway := &fakeGateway{confirmed: true}
	svc, err := New(db, testConfig(), backend, gateway)
	require.NoError(t, err)

	clock := testutil.NewClock(time.Now())
	svc.RateLimiter.WithClock(clock.Now)
	svc.Reputation.WithClock(clock.Now)
	svc.Listings.WithClock(clock.Now).WithSyncViewCounts()
	svc.Transactions.WithClock(clock.Now)

	return &fixture{svc: svc, clock: clock, gateway: gateway}
}

func (f *fixture) user(t *testing.T, username string) uuid.UUID {
	t.Helper()
	return testutil.CreateUser(t, f.svc.DB, username).ID
}

func codeListing(code, title string, price int64) *CreateListingRequest {
	return &CreateListingRequest{
		ListingType:   models.ListingTypeDiscountCode,
		Title:         title,
		Category:      models.CategoryFoodDining,
		BrandName:     "PizzaPlace",
		CouponCode:    code,
		OriginalValue: decimal.NewNullDecimal(decimal.NewFromInt(price + 5)),
		SellingPrice:  decimal.NewFromInt(price),
	}
}

func (f *fixture) listing(t *testing.T, seller uuid.UUID, req *CreateListingRequest) *models.Listing {
	t.Helper()
	result, err := f.svc.Listings.CreateListing(context.Background(), seller, req)
	require.NoError(t, err)
	require.NotNil(t, result.Listing)
	return result.Listing
}

// escrowed runs a purchase up to the escrow state.
func (f *fixture) escrowed(t *testing.T, buyer, listingID uuid.UUID) *models.Transaction {
	t.Helper()
	ctx := context.Background()

	tx, err := f.svc.Transactions.Purchase(ctx, buyer, &PurchaseRequest{ListingID: listingID, PaymentMethod: models.PaymentMethodCard})
	require.NoError(t, err)

	_, err = f.svc.Transactions.CreatePaymentHold(ctx, buyer, tx.ID)
	require.NoError(t, err)

	tx, err = f.svc.Transactions.ConfirmEscrow(ctx, buyer, tx.ID)
	require.NoError(t, err)
	return tx
}

func (f *fixture) completed(t *testing.T, buyer, listingID uuid.UUID) *models.Transaction {
	t.Helper()
	tx := f.escrowed(t, buyer, listingID)
	tx, err := f.svc.Transactions.Complete(context.Background(), buyer, tx.ID)
	require.NoError(t, err)
	return tx
}
