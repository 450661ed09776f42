package common

import (
	"errors"
	"net/http"
)

// AppError carries the code and HTTP status an API error is rendered with.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails attaches details rendered alongside the error.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WriteAppError renders err when it wraps an AppError and reports whether
// it did. Missing fields fall back to a 500 INTERNAL response.
func WriteAppError(w http.ResponseWriter, err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status, code, message := appErr.HTTPStatus, appErr.Code, appErr.Message
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if code == "" {
		code = "INTERNAL"
	}
	if message == "" {
		message = http.StatusText(status)
	}
	JSONError(w, status, code, message, appErr.Details)
	return true
}
