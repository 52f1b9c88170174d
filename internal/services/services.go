// internal/services/services.go
package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/javajoker/couponx-backend/internal/config"
)

// Services is the wired set of marketplace services shared by the HTTP
// server and the CLI commands.
type Services struct {
	DB            *gorm.DB
	Cache         *CacheService
	RateLimiter   *RateLimiter
	Detector      *DuplicateDetector
	Vault         *VaultService
	Reputation    *ReputationService
	Notifications *NotificationService
	Storage       *StorageService
	Listings      *ListingService
	Transactions  *TransactionService
	Reviews       *ReviewService
	Sweeper       *Sweeper
}

// New wires every service. backend may be nil to run without a cache.
func New(db *gorm.DB, cfg *config.Config, backend Cache, gateway PaymentGateway) (*Services, error) {
	key, err := cfg.Vault.Key()
	if err != nil {
		return nil, err
	}

	vault, err := NewVaultService(db, key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	storage, err := NewStorageService(cfg.AWS)
	if err != nil {
		return nil, err
	}

	if gateway == nil {
		gateway = NewPaymentGateway(cfg.Payment)
	}

	cache := NewCacheService(backend)
	limiter := NewRateLimiter(db, cfg.Marketplace.RateLimits)
	detector := NewDuplicateDetector(db)
	reputation := NewReputationService(db, cache)
	notifications := NewNotificationService(db)

	listings := NewListingService(db, vault, detector, limiter, reputation, cache, storage)
	transactions := NewTransactionService(db, limiter, reputation, notifications, gateway, cache, cfg.Marketplace)
	reviews := NewReviewService(db, limiter, reputation, notifications, cache)

	return &Services{
		DB:            db,
		Cache:         cache,
		RateLimiter:   limiter,
		Detector:      detector,
		Vault:         vault,
		Reputation:    reputation,
		Notifications: notifications,
		Storage:       storage,
		Listings:      listings,
		Transactions:  transactions,
		Reviews:       reviews,
		Sweeper:       NewSweeper(listings, transactions, limiter, cfg.Marketplace),
	}, nil
}
