// internal/models/rate_limit.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitCounter is the fixed-window counter for one (user, action) pair.
type RateLimitCounter struct {
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;primaryKey"`
	ActionType  ActionType `json:"action_type" gorm:"type:varchar(30);primaryKey"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	WindowStart time.Time  `json:"window_start" gorm:"not null;index"`
}

type RateLimitRule struct {
	MaxAttempts int
	Window      time.Duration
}

type RateLimitDecision struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"-"`
}

func (d RateLimitDecision) RetryAfterSeconds() int {
	return int(d.RetryAfter / time.Second)
}
