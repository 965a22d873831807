package models

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed or incomplete events; these
	// are dead-lettered, never silently dropped
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUnsupportedSource represents an unknown ingestion source kind
	ErrorTypeUnsupportedSource ErrorType = "unsupported_source"
	// ErrorTypePricingNotFound represents a missing pricing table; the event
	// is never costed with guessed prices
	ErrorTypePricingNotFound ErrorType = "pricing_not_found"
	// ErrorTypeInsufficientData represents a series too short for the
	// requested analysis
	ErrorTypeInsufficientData ErrorType = "insufficient_data"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewUnsupportedSourceError creates an error for an unregistered source kind
func NewUnsupportedSourceError(source string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnsupportedSource,
		Message:    fmt.Sprintf("unsupported ingestion source: %s", source),
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// NewPricingNotFoundError creates a pricing lookup failure
func NewPricingNotFoundError(provider, modelID, region string) *AppError {
	return &AppError{
		Type:       ErrorTypePricingNotFound,
		Message:    fmt.Sprintf("no pricing for provider=%s model=%s region=%s", provider, modelID, region),
		StatusCode: http.StatusUnprocessableEntity,
		Retryable:  false,
	}
}

// NewInsufficientDataError creates an insufficient-data error
func NewInsufficientDataError(have, need int) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientData,
		Message:    fmt.Sprintf("insufficient data points: have %d, need %d", have, need),
		StatusCode: http.StatusUnprocessableEntity,
		Retryable:  false,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  true,
		Cause:      cause,
	}
}
