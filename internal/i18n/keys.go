// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// Error kinds
	KeyErrorNotFound         = "error.not_found"
	KeyErrorForbidden        = "error.forbidden"
	KeyErrorConflict         = "error.conflict"
	KeyErrorInvalidOperation = "error.invalid_operation"
	KeyErrorRateLimited      = "error.rate_limited"
	KeyErrorInternal         = "error.internal"
	KeyErrorTooManyRequests  = "error.too_many_requests"

	// Listings
	KeyListingCreated          = "listing.created"
	KeyListingUpdated          = "listing.updated"
	KeyListingDeleted          = "listing.deleted"
	KeyListingNotFound         = "listing.not_found"
	KeyListingDuplicateWarning = "listing.duplicate_warning"
	KeyListingSecretDenied     = "listing.secret_denied"
	KeyProofImageUploaded      = "listing.proof_image_uploaded"

	// Transactions
	KeyTransactionCreated   = "transaction.created"
	KeyTransactionNotFound  = "transaction.not_found"
	KeyTransactionEscrow    = "transaction.escrow"
	KeyTransactionCompleted = "transaction.completed"
	KeyTransactionCancelled = "transaction.cancelled"
	KeyTransactionDisputed  = "transaction.disputed"

	// Reviews
	KeyReviewCreated = "review.created"

	// Notifications
	KeyNotificationRead = "notification.read"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// File upload
	KeyFileUploadFailed = "file.upload_failed"
	KeyFileTooLarge     = "file.too_large"
	KeyFileInvalidType  = "file.invalid_type"
)
