// internal/services/notification_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

// NotificationService persists in-app notifications. Delivery to devices or
// email is handled elsewhere by reading these rows.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Notify stores a notification. It runs after the triggering operation has
// committed, so a failure is logged rather than returned.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind models.NotificationType, title, message string, data models.JSONB) {
	notification := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Data:    data,
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"type":    kind,
		}).Error("Failed to store notification")
	}
}

func (s *NotificationService) NotifyNewSale(ctx context.Context, t *models.Transaction, listingTitle string) {
	s.Notify(ctx, t.SellerID, models.NotificationNewSale,
		"New sale",
		fmt.Sprintf("Your listing '%s' was purchased for %s", listingTitle, t.Amount.StringFixed(2)),
		models.JSONB{"transaction_id": t.ID.String(), "listing_id": t.ListingID.String()},
	)
}

func (s *NotificationService) NotifyPaymentHeld(ctx context.Context, t *models.Transaction) {
	s.Notify(ctx, t.SellerID, models.NotificationPaymentHeld,
		"Payment held in escrow",
		"The buyer's payment is held in escrow until they confirm the code works",
		models.JSONB{"transaction_id": t.ID.String()},
	)
}

func (s *NotificationService) NotifyCompleted(ctx context.Context, t *models.Transaction) {
	s.Notify(ctx, t.SellerID, models.NotificationTransactionCompleted,
		"Transaction completed",
		fmt.Sprintf("The buyer confirmed the purchase; %s has been released to you", t.Amount.StringFixed(2)),
		models.JSONB{"transaction_id": t.ID.String()},
	)
}

func (s *NotificationService) NotifyCancelled(ctx context.Context, t *models.Transaction, recipient uuid.UUID) {
	s.Notify(ctx, recipient, models.NotificationTransactionCancelled,
		"Transaction cancelled",
		fmt.Sprintf("The transaction was cancelled: %s", t.CancellationReason),
		models.JSONB{"transaction_id": t.ID.String()},
	)
}

func (s *NotificationService) NotifyDisputed(ctx context.Context, t *models.Transaction, recipient uuid.UUID) {
	s.Notify(ctx, recipient, models.NotificationTransactionDisputed,
		"Transaction disputed",
		fmt.Sprintf("A dispute was opened: %s", t.DisputeReason),
		models.JSONB{"transaction_id": t.ID.String()},
	)
}

func (s *NotificationService) NotifyNewReview(ctx context.Context, r *models.Review) {
	s.Notify(ctx, r.ReviewedUserID, models.NotificationNewReview,
		"New review",
		fmt.Sprintf("You received a %d-star review", r.Rating),
		models.JSONB{"review_id": r.ID.String(), "transaction_id": r.TransactionID.String()},
	)
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, params utils.PaginationParams) ([]models.Notification, int64, error) {
	params = utils.NormalizePagination(params)
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to count notifications", err)
	}

	notifications := []models.Notification{}
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&notifications).Error; err != nil {
		return nil, 0, utils.NewInternal("failed to list notifications", err)
	}
	return notifications, total, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.WithContext(ctx).First(&notification, "id = ? AND user_id = ?", notificationID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFound("notification")
	}
	if err != nil {
		return nil, utils.NewInternal("failed to load notification", err)
	}

	if notification.ReadAt == nil {
		now := time.Now().UTC()
		if err := s.db.WithContext(ctx).Model(&notification).Update("read_at", now).Error; err != nil {
			return nil, utils.NewInternal("failed to mark notification read", err)
		}
		notification.ReadAt = &now
	}
	return &notification, nil
}
