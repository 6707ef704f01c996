package apperror

import (
	"errors"
	"net/http"
)

// Error codes. Every error surfaced by the pipeline belongs to one of these
// categories; Is compares by code, so resource-specific sentinels such as
// ErrQuotaNotFound also match ErrNotFound.
const (
	CodeNotFound      = "not_found"
	CodeAlreadyExists = "already_exists"
	CodeInvalidInput  = "invalid_input"
	CodeCanceled      = "canceled"
	CodeFailed        = "failed"
	CodeConflict      = "conflict"
	CodeInternal      = "internal_error"
)

type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

var (
	ErrNotFound = &Error{
		Code:       CodeNotFound,
		Message:    "The requested resource was not found",
		StatusCode: http.StatusNotFound,
	}

	ErrAlreadyExists = &Error{
		Code:       CodeAlreadyExists,
		Message:    "The resource already exists",
		StatusCode: http.StatusConflict,
	}

	ErrInvalidInput = &Error{
		Code:       CodeInvalidInput,
		Message:    "Invalid input",
		StatusCode: http.StatusBadRequest,
	}

	ErrCanceled = &Error{
		Code:       CodeCanceled,
		Message:    "The job was canceled",
		StatusCode: http.StatusGone,
	}

	ErrFailed = &Error{
		Code:       CodeFailed,
		Message:    "Processing failed",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrConflict = &Error{
		Code:       CodeConflict,
		Message:    "The request conflicts with the current state",
		StatusCode: http.StatusConflict,
	}

	ErrInternal = &Error{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}
)

var (
	ErrAccountNotFound = New(CodeNotFound, "Account not found", http.StatusNotFound)
	ErrQuotaNotFound   = New(CodeNotFound, "Quota not found", http.StatusNotFound)
	ErrMediaNotFound   = New(CodeNotFound, "Media not found", http.StatusNotFound)
	ErrJobNotFound     = New(CodeNotFound, "Job not found", http.StatusNotFound)

	ErrDomainTaken = New(CodeAlreadyExists, "An account with this domain already exists", http.StatusConflict)

	ErrJobAlreadyCompleted = New(CodeConflict, "The job has already completed", http.StatusConflict)
	ErrJobAlreadyCanceled  = New(CodeConflict, "The job has already been canceled", http.StatusConflict)
)

func New(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:       appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
		Internal:   err,
	}
}

func WrapWithMessage(err error, code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// Invalid builds an invalid_input error with a specific message.
func Invalid(message string) *Error {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

// Failed wraps err as a processing failure.
func Failed(err error) *Error {
	return Wrap(err, ErrFailed)
}

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func SafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}
