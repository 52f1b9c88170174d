// internal/services/rate_limiter.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

// RateLimiter is a fixed-window counter per (user, action) kept in the
// database. Every check is one upsert, so concurrent callers never lose an
// increment.
type RateLimiter struct {
	db    *gorm.DB
	rules map[models.ActionType]models.RateLimitRule
	now   func() time.Time
}

func NewRateLimiter(db *gorm.DB, rules map[models.ActionType]models.RateLimitRule) *RateLimiter {
	copied := make(map[models.ActionType]models.RateLimitRule, len(rules))
	for action, rule := range rules {
		copied[action] = rule
	}
	return &RateLimiter{
		db:    db,
		rules: copied,
		now:   time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.now = now
	return r
}

func (r *RateLimiter) Rule(action models.ActionType) (models.RateLimitRule, error) {
	rule, ok := r.rules[action]
	if !ok {
		return models.RateLimitRule{}, utils.NewInternal("rate limit lookup", fmt.Errorf("no rate limit configured for %q", action))
	}
	return rule, nil
}

// CheckAndIncrement consumes one unit of quota if any is left.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, userID uuid.UUID, action models.ActionType) (models.RateLimitDecision, error) {
	rule, err := r.Rule(action)
	if err != nil {
		return models.RateLimitDecision{}, err
	}

	now := r.now().UTC()
	cutoff := now.Add(-rule.Window)

	var counter models.RateLimitCounter
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.RateLimitCounter{
			UserID:      userID,
			ActionType:  action,
			Attempts:    1,
			WindowStart: now,
		}

		// An expired window restarts at 1. A full window is pinned at
		// max+1 so a denial never grows the counter further.
		upsert := clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "action_type"}},
			DoUpdates: clause.Set{
				{
					Column: clause.Column{Name: "attempts"},
					Value: gorm.Expr(
						"CASE WHEN rate_limit_counters.window_start < ? THEN 1 "+
							"WHEN rate_limit_counters.attempts < ? THEN rate_limit_counters.attempts + 1 "+
							"ELSE ? END",
						cutoff, rule.MaxAttempts, rule.MaxAttempts+1,
					),
				},
				{
					Column: clause.Column{Name: "window_start"},
					Value: gorm.Expr(
						"CASE WHEN rate_limit_counters.window_start < ? THEN ? ELSE rate_limit_counters.window_start END",
						cutoff, now,
					),
				},
			},
		}
		if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ? AND action_type = ?", userID, action).First(&counter).Error
	})
	if err != nil {
		return models.RateLimitDecision{}, utils.NewInternal("rate limit update", err)
	}

	return decide(rule, counter.Attempts, counter.WindowStart, now), nil
}

// CheckOnly reports the current state without consuming quota.
func (r *RateLimiter) CheckOnly(ctx context.Context, userID uuid.UUID, action models.ActionType) (models.RateLimitDecision, error) {
	rule, err := r.Rule(action)
	if err != nil {
		return models.RateLimitDecision{}, err
	}

	now := r.now().UTC()

	var counter models.RateLimitCounter
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND action_type = ?", userID, action).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decide(rule, 0, now, now), nil
	}
	if err != nil {
		return models.RateLimitDecision{}, utils.NewInternal("rate limit lookup", err)
	}

	if now.Sub(counter.WindowStart) > rule.Window {
		return decide(rule, 0, now, now), nil
	}

	d := decide(rule, counter.Attempts, counter.WindowStart, now)
	// A full window allows nothing more even though the last attempt fit.
	if counter.Attempts >= rule.MaxAttempts {
		d.Allowed = false
		d.RetryAfter = retryAfter(d.ResetAt, now)
	}
	return d, nil
}

// Gate consumes quota and converts a denial into a RateLimited error.
func (r *RateLimiter) Gate(ctx context.Context, userID uuid.UUID, action models.ActionType) (models.RateLimitDecision, error) {
	decision, err := r.CheckAndIncrement(ctx, userID, action)
	if err != nil {
		return decision, err
	}
	if !decision.Allowed {
		return decision, utils.NewRateLimited(action, decision)
	}
	return decision, nil
}

// Sweep deletes counters whose window started more than olderThan ago.
// Expired counters are also reset lazily, so this only reclaims space.
func (r *RateLimiter) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("window_start < ?", cutoff).
		Delete(&models.RateLimitCounter{})
	if result.Error != nil {
		return 0, utils.NewInternal("rate limit sweep", result.Error)
	}
	return result.RowsAffected, nil
}

func decide(rule models.RateLimitRule, attempts int, windowStart, now time.Time) models.RateLimitDecision {
	resetAt := windowStart.Add(rule.Window).UTC()
	remaining := rule.MaxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}

	d := models.RateLimitDecision{
		Allowed:   attempts <= rule.MaxAttempts,
		Limit:     rule.MaxAttempts,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !d.Allowed {
		d.RetryAfter = retryAfter(resetAt, now)
	}
	return d
}

// retryAfter rounds up to whole seconds and never goes negative.
func retryAfter(resetAt, now time.Time) time.Duration {
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return (wait + time.Second - 1).Truncate(time.Second)
}
