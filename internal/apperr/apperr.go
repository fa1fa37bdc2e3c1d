// Package apperr carries application error codes across layers and renders them over HTTP.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeAuthRequired         Code = "AUTH_REQUIRED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeAIServiceUnavailable Code = "AI_SERVICE_UNAVAILABLE"
	CodeAITimeout            Code = "AI_TIMEOUT"
	CodeConfigMissing        Code = "CONFIG_MISSING"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is an error with a code, a user-facing message and an HTTP status.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if _, refined := e.Err.(*Error); refined {
		return e.Message
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithMessage returns a copy of e with a more specific message. The copy wraps e, so
// errors.Is still matches the original.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Code: e.Code, Message: message, Status: e.Status, Err: e}
}

// New creates an Error with the default status for code.
func New(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Status: StatusFor(code), Err: err}
}

func InvalidInput(message string, err error) *Error { return New(CodeInvalidInput, message, err) }
func NotFound(message string, err error) *Error     { return New(CodeNotFound, message, err) }
func Conflict(message string, err error) *Error     { return New(CodeConflict, message, err) }
func Internal(message string, err error) *Error     { return New(CodeInternal, message, err) }

// StatusFor maps a code to its HTTP status.
func StatusFor(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeAuthRequired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeAIServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeAITimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// FromError returns err as an *Error, wrapping unknown errors with fallback.
func FromError(err error, fallback Code) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(fallback, "unexpected error", err)
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Write renders err as {"error": {"code", "message"}} with the matching status.
func Write(w http.ResponseWriter, err error) {
	appErr := FromError(err, CodeInternal)
	status := appErr.Status
	if status == 0 {
		status = StatusFor(appErr.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]*Error{"error": appErr})
}
