// internal/handlers/rate_limit.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/couponx-backend/internal/i18n"
	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/services"
	"github.com/javajoker/couponx-backend/internal/utils"
)

type RateLimitHandler struct {
	rateLimiter *services.RateLimiter
}

func NewRateLimitHandler(rateLimiter *services.RateLimiter) *RateLimitHandler {
	return &RateLimitHandler{rateLimiter: rateLimiter}
}

// GET /rate-limits/:action reports the caller's standing without consuming
// an attempt.
func (h *RateLimitHandler) CheckRateLimit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	action := models.ActionType(c.Param("action"))
	if !action.Valid() {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "action"), nil)
		return
	}

	decision, err := h.rateLimiter.CheckOnly(c.Request.Context(), userID, action)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SetRateLimitHeaders(c, decision)
	utils.SuccessResponse(c, gin.H{
		"action":              action,
		"allowed":             decision.Allowed,
		"limit":               decision.Limit,
		"remaining":           decision.Remaining,
		"reset_at":            decision.ResetAt,
		"retry_after_seconds": decision.RetryAfterSeconds(),
	})
}
