package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries an HTTP-style code alongside the operation that
// produced it. Message is safe to show to callers; Err is not.
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func InvalidInput(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func NotFound(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// InsufficientCredits marks a reservation the user's balance cannot
// cover. Distinguished from generic failure so callers can route the
// user to a top-up flow.
func InsufficientCredits(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusPaymentRequired,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// RateLimited marks a provider quota rejection. Carries no retry hint;
// the rate tracker owns that.
func RateLimited(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusTooManyRequests,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func codeOf(err error) (int, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return 0, false
}

func IsInvalidInput(err error) bool {
	code, ok := codeOf(err)
	return ok && code == http.StatusBadRequest
}

func IsNotFound(err error) bool {
	code, ok := codeOf(err)
	return ok && code == http.StatusNotFound
}

func IsInsufficientCredits(err error) bool {
	code, ok := codeOf(err)
	return ok && code == http.StatusPaymentRequired
}

func IsRateLimited(err error) bool {
	code, ok := codeOf(err)
	return ok && code == http.StatusTooManyRequests
}

// Code returns the HTTP-style status for err, defaulting to 500 for
// anything that is not an AppError.
func Code(err error) int {
	if code, ok := codeOf(err); ok {
		return code
	}
	return http.StatusInternalServerError
}

// Message returns the caller-safe message for err. Unwrapped errors
// collapse to a generic summary so internals never leak.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
