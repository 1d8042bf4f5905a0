package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context
const (
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeInvalidState          = "INVALID_STATE"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodePaymentMethodError    = "PAYMENT_METHOD_ERROR"
	CodeDatabaseInconsistency = "DATABASE_INCONSISTENCY"
	CodeTillClosed            = "TILL_CLOSED"
	CodeValueOutOfRange       = "VALUE_OUT_OF_RANGE"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so callers can test
// errors.Is(err, shared.ErrInsufficientStock) against a detailed instance.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound              = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput          = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState          = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock     = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrPaymentMethod         = NewDomainError(CodePaymentMethodError, "Payment method policy violated")
	ErrDatabaseInconsistency = NewDomainError(CodeDatabaseInconsistency, "Database is in an inconsistent state")
	ErrTillClosed            = NewDomainError(CodeTillClosed, "There is no open till")
	ErrValueOutOfRange       = NewDomainError(CodeValueOutOfRange, "Value out of range")
	ErrConcurrencyConflict   = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)

// InvalidStatef builds a precondition violation. Callers include the current
// status in the message.
func InvalidStatef(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// OutOfRangef builds a value-out-of-range error
func OutOfRangef(format string, args ...any) *DomainError {
	return NewDomainError(CodeValueOutOfRange, fmt.Sprintf(format, args...))
}

// Inconsistencyf builds a database inconsistency error
func Inconsistencyf(format string, args ...any) *DomainError {
	return NewDomainError(CodeDatabaseInconsistency, fmt.Sprintf(format, args...))
}
