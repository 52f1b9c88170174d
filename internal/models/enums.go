// internal/models/enums.go
package models

import (
	"database/sql/driver"
	"fmt"
)

// Enum is implemented by every closed string type below. The validator's
// "enum" tag relies on it.
type Enum interface {
	Valid() bool
}

type ListingType string

const (
	ListingTypeDiscountCode  ListingType = "discount_code"
	ListingTypeGiftCard      ListingType = "gift_card"
	ListingTypeReferralLink  ListingType = "referral_link"
	ListingTypeLocationDeal  ListingType = "location_deal"
	ListingTypeCashbackOffer ListingType = "cashback_offer"
	ListingTypeLoyaltyPoints ListingType = "loyalty_points"
)

func (t ListingType) Valid() bool {
	switch t {
	case ListingTypeDiscountCode, ListingTypeGiftCard, ListingTypeReferralLink,
		ListingTypeLocationDeal, ListingTypeCashbackOffer, ListingTypeLoyaltyPoints:
		return true
	}
	return false
}

// RequiresSecret reports whether listings of this type must carry a
// redeemable code.
func (t ListingType) RequiresSecret() bool {
	switch t {
	case ListingTypeDiscountCode:
		return true
	case ListingTypeGiftCard, ListingTypeReferralLink, ListingTypeLocationDeal,
		ListingTypeCashbackOffer, ListingTypeLoyaltyPoints:
		return false
	}
	return false
}

func (t ListingType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid listing type %q", string(t))
	}
	return string(t), nil
}

func (t *ListingType) Scan(value interface{}) error {
	s, err := scanEnum(value, func(v string) bool { return ListingType(v).Valid() }, "listing type")
	if err != nil {
		return err
	}
	*t = ListingType(s)
	return nil
}

type Category string

const (
	CategoryFoodDining    Category = "food_dining"
	CategoryFashion       Category = "fashion"
	CategoryElectronics   Category = "electronics"
	CategoryTravel        Category = "travel"
	CategoryEntertainment Category = "entertainment"
	CategoryHealthBeauty  Category = "health_beauty"
	CategoryHomeGarden    Category = "home_garden"
	CategoryGroceries     Category = "groceries"
	CategoryServices      Category = "services"
	CategoryOther         Category = "other"
)

var Categories = []Category{
	CategoryFoodDining, CategoryFashion, CategoryElectronics, CategoryTravel,
	CategoryEntertainment, CategoryHealthBeauty, CategoryHomeGarden,
	CategoryGroceries, CategoryServices, CategoryOther,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryFoodDining, CategoryFashion, CategoryElectronics, CategoryTravel,
		CategoryEntertainment, CategoryHealthBeauty, CategoryHomeGarden,
		CategoryGroceries, CategoryServices, CategoryOther:
		return true
	}
	return false
}

func (c Category) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %q", string(c))
	}
	return string(c), nil
}

func (c *Category) Scan(value interface{}) error {
	s, err := scanEnum(value, func(v string) bool { return Category(v).Valid() }, "category")
	if err != nil {
		return err
	}
	*c = Category(s)
	return nil
}

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusExpired   ListingStatus = "expired"
	ListingStatusSuspended ListingStatus = "suspended"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusActive, ListingStatusSold, ListingStatusExpired, ListingStatusSuspended:
		return true
	}
	return false
}

// CanTransitionTo reports whether a listing may move from s to next.
// Only active listings ever change status.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	switch s {
	case ListingStatusActive:
		switch next {
		case ListingStatusSold, ListingStatusExpired, ListingStatusSuspended:
			return true
		case ListingStatusActive:
			return false
		}
	case ListingStatusSold, ListingStatusExpired, ListingStatusSuspended:
		return false
	}
	return false
}

func (s ListingStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid listing status %q", string(s))
	}
	return string(s), nil
}

func (s *ListingStatus) Scan(value interface{}) error {
	v, err := scanEnum(value, func(v string) bool { return ListingStatus(v).Valid() }, "listing status")
	if err != nil {
		return err
	}
	*s = ListingStatus(v)
	return nil
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusEscrow    TransactionStatus = "escrow"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusDisputed  TransactionStatus = "disputed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusEscrow, TransactionStatusCompleted,
		TransactionStatusCancelled, TransactionStatusDisputed:
		return true
	}
	return false
}

// CanTransitionTo encodes the escrow state machine. Nothing re-enters
// pending; disputed resolves back to completed or cancelled.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusEscrow || next == TransactionStatusCancelled
	case TransactionStatusEscrow:
		return next == TransactionStatusCompleted || next == TransactionStatusCancelled ||
			next == TransactionStatusDisputed
	case TransactionStatusCompleted:
		return next == TransactionStatusDisputed
	case TransactionStatusDisputed:
		return next == TransactionStatusCompleted || next == TransactionStatusCancelled
	case TransactionStatusCancelled:
		return false
	}
	return false
}

func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusCancelled:
		return true
	case TransactionStatusPending, TransactionStatusEscrow, TransactionStatusDisputed:
		return false
	}
	return false
}

func (s TransactionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid transaction status %q", string(s))
	}
	return string(s), nil
}

func (s *TransactionStatus) Scan(value interface{}) error {
	v, err := scanEnum(value, func(v string) bool { return TransactionStatus(v).Valid() }, "transaction status")
	if err != nil {
		return err
	}
	*s = TransactionStatus(v)
	return nil
}

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPaypal PaymentMethod = "paypal"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPaypal, PaymentMethodUPI, PaymentMethodWallet:
		return true
	}
	return false
}

func (m PaymentMethod) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid payment method %q", string(m))
	}
	return string(m), nil
}

func (m *PaymentMethod) Scan(value interface{}) error {
	v, err := scanEnum(value, func(v string) bool { return PaymentMethod(v).Valid() }, "payment method")
	if err != nil {
		return err
	}
	*m = PaymentMethod(v)
	return nil
}

type ActionType string

const (
	ActionCreateListing     ActionType = "create_listing"
	ActionCreateTransaction ActionType = "create_transaction"
	ActionCreateReview      ActionType = "create_review"
	ActionSendMessage       ActionType = "send_message"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionCreateListing, ActionCreateTransaction, ActionCreateReview, ActionSendMessage:
		return true
	}
	return false
}

func (a ActionType) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action type %q", string(a))
	}
	return string(a), nil
}

func (a *ActionType) Scan(value interface{}) error {
	v, err := scanEnum(value, func(v string) bool { return ActionType(v).Valid() }, "action type")
	if err != nil {
		return err
	}
	*a = ActionType(v)
	return nil
}

type NotificationType string

const (
	NotificationNewSale              NotificationType = "new_sale"
	NotificationPaymentHeld          NotificationType = "payment_held"
	NotificationTransactionCompleted NotificationType = "transaction_completed"
	NotificationTransactionCancelled NotificationType = "transaction_cancelled"
	NotificationTransactionDisputed  NotificationType = "transaction_disputed"
	NotificationNewReview            NotificationType = "new_review"
)

func (n NotificationType) Valid() bool {
	switch n {
	case NotificationNewSale, NotificationPaymentHeld, NotificationTransactionCompleted,
		NotificationTransactionCancelled, NotificationTransactionDisputed, NotificationNewReview:
		return true
	}
	return false
}

func (n NotificationType) Value() (driver.Value, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("invalid notification type %q", string(n))
	}
	return string(n), nil
}

func (n *NotificationType) Scan(value interface{}) error {
	v, err := scanEnum(value, func(v string) bool { return NotificationType(v).Valid() }, "notification type")
	if err != nil {
		return err
	}
	*n = NotificationType(v)
	return nil
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type VerificationLevel string

const (
	VerificationLevelUnverified VerificationLevel = "unverified"
	VerificationLevelVerified   VerificationLevel = "verified"
	VerificationLevelPremium    VerificationLevel = "premium"
)
