// internal/models/user.go
package models

import "time"

// User mirrors the identity provider's account record. Credentials live
// with the provider; the marketplace only needs display data.
type User struct {
	BaseModel
	Username          string            `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email             string            `json:"email" gorm:"uniqueIndex;size:255;not null"`
	VerificationLevel VerificationLevel `json:"verification_level" gorm:"type:varchar(20);default:'unverified'"`
	Status            UserStatus        `json:"status" gorm:"type:varchar(20);default:'active'"`
	ProfileData       JSONB             `json:"profile_data" gorm:"type:text"`
	EmailVerifiedAt   *time.Time        `json:"email_verified_at"`
	LastSeenAt        *time.Time        `json:"last_seen_at"`
}

func (u *User) IsVerified() bool {
	return u.VerificationLevel == VerificationLevelVerified || u.VerificationLevel == VerificationLevelPremium
}
