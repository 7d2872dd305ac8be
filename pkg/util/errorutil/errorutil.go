package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError rejects malformed or incomplete input. Never retried.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInvalidTransition rejects an illegal state-machine move.
func NewInvalidTransition(from, to string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["from"] = from
	details["to"] = to
	return NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("illegal transition %s -> %s", from, to),
		http.StatusConflict, details)
}

// NewStaleWrite signals an optimistic-concurrency violation; the caller
// must re-read and retry.
func NewStaleWrite(resource string, details map[string]any) error {
	return NewDomainError("STALE_WRITE",
		fmt.Sprintf("%s was modified concurrently", resource),
		http.StatusConflict, details)
}

// NewInvalidDateRange rejects negative or inverted date spans.
func NewInvalidDateRange(message string) error {
	return NewDomainError("INVALID_DATE_RANGE", message, http.StatusBadRequest, nil)
}

// NewRetentionShortening refuses an audit-pack regeneration that would
// shorten an existing retention window.
func NewRetentionShortening(packID string) error {
	return NewDomainError("RETENTION_SHORTENING",
		"regeneration would shorten an existing retention window",
		http.StatusConflict, map[string]any{"pack_id": packID})
}

// NewDispatchFailure records a permanently failed channel send.
func NewDispatchFailure(channel, reason string) error {
	return NewDomainError("DISPATCH_FAILURE",
		fmt.Sprintf("dispatch on %s failed: %s", channel, reason),
		http.StatusBadGateway, map[string]any{"channel": channel})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
