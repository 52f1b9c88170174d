// internal/services/sweeper.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/javajoker/couponx-backend/internal/config"
)

// SweepReport summarizes one maintenance pass.
type SweepReport struct {
	RateLimitRowsDeleted int64 `json:"rate_limit_rows_deleted"`
	ListingsExpired      int64 `json:"listings_expired"`
	TransactionsTimedOut int   `json:"transactions_timed_out"`
}

// Sweeper runs periodic maintenance: stale rate-limit counters, listings
// past their expiration date and pending purchases that never got paid.
type Sweeper struct {
	listings     *ListingService
	transactions *TransactionService
	limiter      *RateLimiter
	cfg          config.MarketplaceConfig
}

func NewSweeper(listings *ListingService, transactions *TransactionService, limiter *RateLimiter, cfg config.MarketplaceConfig) *Sweeper {
	return &Sweeper{
		listings:     listings,
		transactions: transactions,
		limiter:      limiter,
		cfg:          cfg,
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.limiter.Sweep(gctx, s.cfg.RateLimitRetention)
		report.RateLimitRowsDeleted = n
		return err
	})
	g.Go(func() error {
		n, err := s.listings.ExpireListings(gctx)
		report.ListingsExpired = n
		return err
	})
	g.Go(func() error {
		n, err := s.transactions.CancelStalePending(gctx)
		report.TransactionsTimedOut = n
		return err
	})

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// Run sweeps every SweepInterval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		logrus.WithField("interval", s.cfg.SweepInterval).Error("Sweeper not started: interval must be positive")
		return
	}

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	logrus.WithField("interval", s.cfg.SweepInterval).Info("Sweeper started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Sweeper stopped")
			return
		case <-ticker.C:
			report, err := s.RunOnce(ctx)
			if err != nil {
				logrus.WithError(err).Error("Sweep failed")
				continue
			}
			logrus.WithFields(logrus.Fields{
				"rate_limit_rows":  report.RateLimitRowsDeleted,
				"listings_expired": report.ListingsExpired,
				"transactions":     report.TransactionsTimedOut,
			}).Debug("Sweep finished")
		}
	}
}
