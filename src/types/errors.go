package types

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable code surfaced to callers.
type ErrorCode string

const (
	CodeNotFound                ErrorCode = "NOT_FOUND"
	CodeSoldOut                 ErrorCode = "SOLD_OUT"
	CodeMaxPerCustomerExceeded  ErrorCode = "MAX_PER_CUSTOMER_EXCEEDED"
	CodeInvalidStatus           ErrorCode = "INVALID_STATUS"
	CodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	CodeUnauthorized            ErrorCode = "UNAUTHORIZED"
	CodeRateLimitExceeded       ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeFraudDetected           ErrorCode = "FRAUD_DETECTED"
	CodeEventLifecycleViolation ErrorCode = "EVENT_LIFECYCLE_VIOLATION"
	CodeDependencyFailure       ErrorCode = "DEPENDENCY_FAILURE"
)

// Error carries a domain error code alongside a human-readable message.
// Dependency failures additionally wrap the infrastructure cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Dependency wraps a store/cache/gateway failure. This is the only error
// class a caller may reasonably retry.
func Dependency(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeDependencyFailure, Message: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf extracts the domain code from err, or CodeDependencyFailure when
// err carries no code at all.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeDependencyFailure
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
