// internal/utils/errors.go
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/javajoker/couponx-backend/internal/models"
)

type ErrorKind string

const (
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindConflict         ErrorKind = "CONFLICT"
	KindInvalidOperation ErrorKind = "INVALID_OPERATION"
	KindRateLimited      ErrorKind = "RATE_LIMITED"
	KindInternal         ErrorKind = "INTERNAL_ERROR"
)

// AppError is the typed failure returned by every service. Resource names
// the entity involved; Err keeps the underlying cause for logs only.
type AppError struct {
	Kind       ErrorKind
	Resource   string
	Message    string
	RetryAfter time.Duration
	Decision   *models.RateLimitDecision
	Err        error
}

func (e *AppError) Error() string {
	msg := string(e.Kind)
	if e.Resource != "" {
		msg += " " + e.Resource
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFound(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Resource: resource, Message: resource + " not found"}
}

func NewForbidden(resource, message string) *AppError {
	return &AppError{Kind: KindForbidden, Resource: resource, Message: message}
}

func NewConflict(resource, message string) *AppError {
	return &AppError{Kind: KindConflict, Resource: resource, Message: message}
}

func NewInvalid(message string) *AppError {
	return &AppError{Kind: KindInvalidOperation, Message: message}
}

func NewRateLimited(action models.ActionType, decision models.RateLimitDecision) *AppError {
	return &AppError{
		Kind:       KindRateLimited,
		Resource:   string(action),
		Message:    fmt.Sprintf("rate limit exceeded for %s", action),
		RetryAfter: decision.RetryAfter,
		Decision:   &decision,
	}
}

// NewInternal wraps a storage, encryption or serialization failure. The
// cause is never shown to callers.
func NewInternal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
