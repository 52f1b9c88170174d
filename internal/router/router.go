// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/javajoker/couponx-backend/internal/config"
	"github.com/javajoker/couponx-backend/internal/handlers"
	"github.com/javajoker/couponx-backend/internal/middleware"
	"github.com/javajoker/couponx-backend/internal/services"
	"github.com/javajoker/couponx-backend/internal/utils"
)

func Initialize(cfg *config.Config, svc *services.Services) *gin.Engine {
	// Initialize handlers
	listingHandler := handlers.NewListingHandler(svc.Listings, svc.Vault)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions)
	reviewHandler := handlers.NewReviewHandler(svc.Reviews)
	profileHandler := handlers.NewProfileHandler(svc.Reputation)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	rateLimitHandler := handlers.NewRateLimitHandler(svc.RateLimiter)
	healthHandler := handlers.NewHealthHandler(svc.DB)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))

	r.GET("/health", healthHandler.Health)

	throttle := middleware.NewIPThrottle(rate.Limit(cfg.Server.IPRequestsPerSecond), cfg.Server.IPBurst)

	v1 := r.Group("/v1")
	v1.Use(throttle.Middleware())
	{
		// Public reads
		public := v1.Group("")
		public.Use(middleware.OptionalAuth())
		{
			public.GET("/listings", listingHandler.SearchListings)
			public.GET("/listings/:id", listingHandler.GetListing)
			public.GET("/categories/:category/stats", listingHandler.GetCategoryStats)
			public.GET("/profiles/:user_id", profileHandler.GetProfile)
			public.GET("/reviews/user/:user_id", reviewHandler.ListUserReviews)
			public.GET("/reviews/listing/:listing_id", reviewHandler.ListListingReviews)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			listings := protected.Group("/listings")
			{
				listings.POST("", listingHandler.CreateListing)
				listings.PUT("/:id", listingHandler.UpdateListing)
				listings.DELETE("/:id", listingHandler.DeleteListing)
				listings.POST("/:id/proof-image", listingHandler.UploadProofImage)
				listings.GET("/:id/secret", listingHandler.RevealSecret)
			}

			transactions := protected.Group("/transactions")
			{
				transactions.POST("", transactionHandler.Purchase)
				transactions.GET("", transactionHandler.ListTransactions)
				transactions.GET("/:id", transactionHandler.GetTransaction)
				transactions.POST("/:id/payment-hold", transactionHandler.CreatePaymentHold)
				transactions.POST("/:id/escrow", transactionHandler.ConfirmEscrow)
				transactions.PUT("/:id/complete", transactionHandler.Complete)
				transactions.PUT("/:id/cancel", transactionHandler.Cancel)
				transactions.POST("/:id/dispute", transactionHandler.Dispute)
			}

			protected.POST("/reviews", reviewHandler.CreateReview)

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationHandler.ListNotifications)
				notifications.PUT("/:id/read", notificationHandler.MarkRead)
			}

			protected.GET("/rate-limits/:action", rateLimitHandler.CheckRateLimit)
		}
	}

	return r
}
