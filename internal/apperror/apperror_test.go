package apperror

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Code:       CodeInvalidInput,
		Message:    "filepath is required",
		StatusCode: http.StatusBadRequest,
	}

	if got := err.Error(); got != "filepath is required" {
		t.Errorf("Error() = %q, want %q", got, "filepath is required")
	}

	wrapped := Wrap(errors.New("disk full"), ErrFailed)
	if got := wrapped.Error(); got != "Processing failed: disk full" {
		t.Errorf("Error() = %q, want %q", got, "Processing failed: disk full")
	}
}

func TestError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	err := &Error{
		Code:     CodeFailed,
		Message:  "Wrapped error",
		Internal: innerErr,
	}

	if got := err.Unwrap(); got != innerErr {
		t.Errorf("Unwrap() = %v, want %v", got, innerErr)
	}
}

func TestWrap(t *testing.T) {
	innerErr := errors.New("ffmpeg exited with status 1")
	wrapped := Wrap(innerErr, ErrFailed)

	if wrapped.Code != CodeFailed {
		t.Errorf("Code = %q, want %q", wrapped.Code, CodeFailed)
	}
	if wrapped.Internal != innerErr {
		t.Errorf("Internal = %v, want %v", wrapped.Internal, innerErr)
	}
	if !errors.Is(wrapped, innerErr) {
		t.Error("errors.Is should return true for wrapped inner error")
	}
}

func TestInvalidAndFailed(t *testing.T) {
	inv := Invalid("quotaId is required")
	if !Is(inv, ErrInvalidInput) {
		t.Error("Invalid() should match ErrInvalidInput")
	}
	if inv.Message != "quotaId is required" {
		t.Errorf("Message = %q", inv.Message)
	}

	f := Failed(errors.New("boom"))
	if !Is(f, ErrFailed) {
		t.Error("Failed() should match ErrFailed")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target *Error
		want   bool
	}{
		{
			name:   "matching error",
			err:    ErrNotFound,
			target: ErrNotFound,
			want:   true,
		},
		{
			name:   "wrapped matching error",
			err:    Wrap(errors.New("inner"), ErrNotFound),
			target: ErrNotFound,
			want:   true,
		},
		{
			name:   "resource sentinel matches category",
			err:    ErrQuotaNotFound,
			target: ErrNotFound,
			want:   true,
		},
		{
			name:   "job state conflicts match conflict",
			err:    ErrJobAlreadyCompleted,
			target: ErrConflict,
			want:   true,
		},
		{
			name:   "non-matching error",
			err:    ErrCanceled,
			target: ErrFailed,
			want:   false,
		},
		{
			name:   "non-apperror",
			err:    errors.New("regular error"),
			target: ErrNotFound,
			want:   false,
		},
		{
			name:   "nil error",
			err:    nil,
			target: ErrNotFound,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ErrNotFound, http.StatusNotFound},
		{"already exists", ErrDomainTaken, http.StatusConflict},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"conflict", ErrJobAlreadyCanceled, http.StatusConflict},
		{"internal", ErrInternal, http.StatusInternalServerError},
		{"non-apperror defaults to 500", errors.New("regular error"), http.StatusInternalServerError},
		{"wrapped error preserves code", Wrap(errors.New("inner"), ErrNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSafeMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", ErrAccountNotFound, "Account not found"},
		{"wrapped hides internal", Wrap(errors.New("pq: connection refused"), ErrInternal), ErrInternal.Message},
		{"non-apperror returns internal message", errors.New("db error"), ErrInternal.Message},
		{"nil error returns internal message", nil, ErrInternal.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeMessage(tt.err); got != tt.want {
				t.Errorf("SafeMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", ErrMediaNotFound, CodeNotFound},
		{"already exists", ErrAlreadyExists, CodeAlreadyExists},
		{"canceled", ErrCanceled, CodeCanceled},
		{"failed", ErrFailed, CodeFailed},
		{"conflict", ErrConflict, CodeConflict},
		{"non-apperror", errors.New("regular"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}
