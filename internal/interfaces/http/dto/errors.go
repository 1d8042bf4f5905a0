package dto

import (
	"net/http"

	"github.com/erp/retail/internal/domain/shared"
)

// Error codes returned to HTTP callers. Format: ERR_<DESCRIPTION>
const (
	ErrCodeInternal               = "ERR_INTERNAL"
	ErrCodeBadRequest             = "ERR_BAD_REQUEST"
	ErrCodeValidation             = "ERR_VALIDATION"
	ErrCodeNotFound               = "ERR_NOT_FOUND"
	ErrCodeInvalidInput           = "ERR_INVALID_INPUT"
	ErrCodeInvalidState           = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock      = "ERR_INSUFFICIENT_STOCK"
	ErrCodePaymentMethod          = "ERR_PAYMENT_METHOD"
	ErrCodeDatabaseInconsistency  = "ERR_DATABASE_INCONSISTENCY"
	ErrCodeTillClosed             = "ERR_TILL_CLOSED"
	ErrCodeValueOutOfRange        = "ERR_VALUE_OUT_OF_RANGE"
	ErrCodeConcurrencyConflict    = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeMissingOperatorContext = "ERR_MISSING_OPERATOR_CONTEXT"
	ErrCodeRequestTooLarge        = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:               http.StatusInternalServerError,
	ErrCodeDatabaseInconsistency:  http.StatusInternalServerError,
	ErrCodeBadRequest:             http.StatusBadRequest,
	ErrCodeValidation:             http.StatusBadRequest,
	ErrCodeInvalidInput:           http.StatusBadRequest,
	ErrCodeMissingOperatorContext: http.StatusBadRequest,
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeConcurrencyConflict:    http.StatusConflict,
	ErrCodeRequestTooLarge:        http.StatusRequestEntityTooLarge,

	// business rule violations
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodePaymentMethod:     http.StatusUnprocessableEntity,
	ErrCodeTillClosed:        http.StatusUnprocessableEntity,
	ErrCodeValueOutOfRange:   http.StatusUnprocessableEntity,
}

// domainErrorCodes maps DomainError codes to HTTP error codes
var domainErrorCodes = map[string]string{
	shared.CodeNotFound:              ErrCodeNotFound,
	shared.CodeInvalidInput:          ErrCodeInvalidInput,
	shared.CodeInvalidState:          ErrCodeInvalidState,
	shared.CodeInsufficientStock:     ErrCodeInsufficientStock,
	shared.CodePaymentMethodError:    ErrCodePaymentMethod,
	shared.CodeDatabaseInconsistency: ErrCodeDatabaseInconsistency,
	shared.CodeTillClosed:            ErrCodeTillClosed,
	shared.CodeValueOutOfRange:       ErrCodeValueOutOfRange,
	shared.CodeConcurrencyConflict:   ErrCodeConcurrencyConflict,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode converts a domain error code to its HTTP error code.
// Codes without a mapping (entity specific codes such as INVALID_USERNAME)
// are reported as invalid input.
func NormalizeErrorCode(domainCode string) string {
	if code, ok := domainErrorCodes[domainCode]; ok {
		return code
	}
	return ErrCodeInvalidInput
}
