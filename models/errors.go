package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and batch entries.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeFetchFailed  = "FETCH_FAILED"
	ErrCodeTimeout      = "FETCH_TIMEOUT"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeStorage      = "STORAGE_FAILED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Error is the internal error type carrying an error code and, for fetch
// and extraction failures, the marketplace URL that was requested.
type Error struct {
	Code    string
	Message string
	URL     string
	Err     error // wrapped original error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NewFetchError creates a fetch-class Error bound to the requested URL.
func NewFetchError(code, url, message string, err error) *Error {
	return &Error{Code: code, Message: message, URL: url, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *Error) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Error(), URL: e.URL}
}

// AsError returns err as an *Error, wrapping unknown errors as INTERNAL_ERROR.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrCodeInternal, "unexpected failure", err)
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
