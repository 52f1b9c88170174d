// internal/services/payment_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/javajoker/couponx-backend/internal/config"
	"github.com/javajoker/couponx-backend/internal/models"
)

// PaymentHold is an authorization on the buyer's funds that is captured on
// completion or released on cancellation.
type PaymentHold struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
}

// PaymentGateway places and settles escrow holds. Capture must succeed when
// called again for a hold that is already captured.
type PaymentGateway interface {
	CreateHold(ctx context.Context, t *models.Transaction) (*PaymentHold, error)
	HoldConfirmed(ctx context.Context, paymentID string) (bool, error)
	Capture(ctx context.Context, paymentID string) error
	Release(ctx context.Context, paymentID string) error
}

// NewPaymentGateway returns a Stripe gateway when a secret key is
// configured, and a manual gateway otherwise.
func NewPaymentGateway(cfg config.PaymentConfig) PaymentGateway {
	if cfg.StripeSecretKey == "" {
		logrus.Warn("STRIPE_SECRET_KEY not set; escrow holds are tracked manually")
		return NewManualGateway()
	}
	return NewStripeGateway(cfg.StripeSecretKey, cfg.Currency)
}

// StripeGateway uses manual-capture PaymentIntents as escrow holds.
type StripeGateway struct {
	api      *client.API
	currency string
}

func NewStripeGateway(secretKey, currency string) *StripeGateway {
	if currency == "" {
		currency = "usd"
	}
	return &StripeGateway{
		api:      client.New(secretKey, nil),
		currency: currency,
	}
}

// amountInCents converts a decimal amount to the smallest currency unit.
func amountInCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (g *StripeGateway) CreateHold(ctx context.Context, t *models.Transaction) (*PaymentHold, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountInCents(t.Amount)),
		Currency:      stripe.String(g.currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.AddMetadata("transaction_id", t.ID.String())
	params.AddMetadata("listing_id", t.ListingID.String())
	params.AddMetadata("buyer_id", t.BuyerID.String())
	params.AddMetadata("payment_method", string(t.PaymentMethod))
	params.SetIdempotencyKey("hold-" + t.ID.String())

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentHold{
		PaymentID:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *StripeGateway) HoldConfirmed(ctx context.Context, paymentID string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return false, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return pi.Status == stripe.PaymentIntentStatusRequiresCapture, nil
}

func (g *StripeGateway) Capture(ctx context.Context, paymentID string) error {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx

	pi, err := g.api.PaymentIntents.Get(paymentID, getParams)
	if err != nil {
		return fmt.Errorf("failed to get payment intent: %w", err)
	}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		logrus.WithField("payment_id", paymentID).Info("Payment intent already captured")
		return nil
	}

	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + paymentID)

	if _, err := g.api.PaymentIntents.Capture(paymentID, params); err != nil {
		return fmt.Errorf("failed to capture payment intent: %w", err)
	}
	return nil
}

func (g *StripeGateway) Release(ctx context.Context, paymentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	params.Context = ctx

	if _, err := g.api.PaymentIntents.Cancel(paymentID, params); err != nil {
		return fmt.Errorf("failed to cancel payment intent: %w", err)
	}
	return nil
}

// ManualGateway records holds without a payment provider; every hold counts
// as confirmed. Used in development and tests.
type ManualGateway struct{}

func NewManualGateway() *ManualGateway {
	return &ManualGateway{}
}

func (ManualGateway) CreateHold(_ context.Context, t *models.Transaction) (*PaymentHold, error) {
	return &PaymentHold{
		PaymentID: "manual_" + uuid.NewString(),
		Status:    string(stripe.PaymentIntentStatusRequiresCapture),
	}, nil
}

func (ManualGateway) HoldConfirmed(context.Context, string) (bool, error) {
	return true, nil
}

func (ManualGateway) Capture(_ context.Context, paymentID string) error {
	logrus.WithField("payment_id", paymentID).Info("Manual hold captured")
	return nil
}

func (ManualGateway) Release(_ context.Context, paymentID string) error {
	logrus.WithField("payment_id", paymentID).Info("Manual hold released")
	return nil
}
