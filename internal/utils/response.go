// internal/utils/response.go
package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/couponx-backend/internal/i18n"
	"github.com/javajoker/couponx-backend/internal/models"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// AcceptedResponse is used when a request was understood but deliberately
// not applied, such as a listing held back by a duplicate warning.
func AcceptedResponse(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func NotFoundResponse(c *gin.Context, resource string) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, resource+".not_found")
	ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func InternalErrorResponse(c *gin.Context, message string) {
	if message == "" {
		message = i18n.T(GetLangFromContext(c), i18n.KeyErrorInternal)
	}
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

func ValidationErrorResponse(c *gin.Context, errors []ValidationError) {
	lang := GetLangFromContext(c)
	message := i18n.T(lang, i18n.KeyValidationInvalid, "input")
	ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", message, errors)
}

// HandleServiceError renders a service failure. Non-AppErrors are treated
// as internal.
func HandleServiceError(c *gin.Context, err error) {
	lang := GetLangFromContext(c)

	appErr, ok := AsAppError(err)
	if !ok {
		appErr = NewInternal("unexpected error", err)
	}

	switch appErr.Kind {
	case KindNotFound:
		ErrorResponse(c, http.StatusNotFound, string(appErr.Kind), i18n.T(lang, i18n.KeyErrorNotFound, appErr.Resource), nil)
	case KindForbidden:
		ErrorResponse(c, http.StatusForbidden, string(appErr.Kind), i18n.T(lang, i18n.KeyErrorForbidden, appErr.Resource), appErr.Message)
	case KindConflict:
		ErrorResponse(c, http.StatusConflict, string(appErr.Kind), i18n.T(lang, i18n.KeyErrorConflict, appErr.Resource), appErr.Message)
	case KindInvalidOperation:
		ErrorResponse(c, http.StatusBadRequest, string(appErr.Kind), i18n.T(lang, i18n.KeyErrorInvalidOperation), appErr.Message)
	case KindRateLimited:
		seconds := int(appErr.RetryAfter.Seconds())
		details := gin.H{"retry_after_seconds": seconds}
		if appErr.Decision != nil {
			SetRateLimitHeaders(c, *appErr.Decision)
			details["remaining"] = appErr.Decision.Remaining
			details["reset_at"] = appErr.Decision.ResetAt
		} else {
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		ErrorResponse(c, http.StatusTooManyRequests, string(appErr.Kind), i18n.T(lang, i18n.KeyErrorRateLimited, seconds), details)
	default:
		logrus.WithError(appErr).WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
		}).Error("Internal error while handling request")
		InternalErrorResponse(c, "")
	}
}

// SetRateLimitHeaders writes the X-RateLimit-* headers, plus Retry-After
// when the action was denied.
func SetRateLimitHeaders(c *gin.Context, d models.RateLimitDecision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		c.Header("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	SuccessResponseWithMeta(c, result.Data, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if userID, exists := c.Get("user_id"); exists {
		if userIDStr, ok := userID.(string); ok {
			return userIDStr, true
		}
	}
	return "", false
}
