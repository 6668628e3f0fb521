package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInternal            = errors.New("internal error")
	ErrDatabase            = errors.New("database error")
	ErrValidation          = errors.New("validation failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvariantViolation  = errors.New("invariant violation")
)

// Error codes carried by AppError.Code.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNotFound            = "NOT_FOUND"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
	CodeConfig              = "CONFIG_ERROR"
	CodeDatabase            = "DATABASE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InvalidInput rejects a request before any work begins.
func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func InvalidInputf(format string, args ...interface{}) *AppError {
	return InvalidInput(fmt.Sprintf(format, args...))
}

// NotFound reports a missing job or record.
func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

// ProviderUnavailable wraps a failed external call (embedding, catalog, store)
// after retries. The cause chain keeps both the sentinel and the original error.
func ProviderUnavailable(message string, cause error) *AppError {
	if cause == nil {
		return NewAppError(CodeProviderUnavailable, message, ErrProviderUnavailable)
	}
	return NewAppError(CodeProviderUnavailable, message, fmt.Errorf("%w: %w", ErrProviderUnavailable, cause))
}

// InvariantViolation marks a scorer bug (out-of-range confidence, negative rate).
func InvariantViolation(message string) *AppError {
	return NewAppError(CodeInvariantViolation, message, ErrInvariantViolation)
}

func InvariantViolationf(format string, args ...interface{}) *AppError {
	return InvariantViolation(fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf maps the error taxonomy onto gRPC status codes, which double as the
// transport-neutral classification used by the HTTP layer.
func CodeOf(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrProviderUnavailable):
		return codes.Unavailable
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}
