package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Request validation (400, no side effects)
	ErrValidation = errors.New("validation failed")

	// Gateway (order creation)
	ErrGateway        = errors.New("payment gateway error")
	ErrGatewayTimeout = errors.New("payment gateway timeout")

	// Payment verification workflow
	ErrSignatureMismatch   = errors.New("signature mismatch")
	ErrLedgerWriteFailed   = errors.New("payment ledger write failed")
	ErrProfileUpdateFailed = errors.New("profile update failed")
	ErrStoreTimeout        = errors.New("data store timeout")
	ErrDuplicatePayment    = errors.New("payment already processed")
	ErrDuplicateInFlight   = errors.New("payment is already being processed")
	ErrGeneral             = errors.New("internal server error")

	// Edge
	ErrRateLimited  = errors.New("too many requests")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// GatewayError carries the gateway's own error payload so it can be surfaced
// to the caller verbatim. It unwraps to ErrGateway.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gateway error: %s", e.Code)
	}
	return fmt.Sprintf("gateway error: %s: %s", e.Code, e.Description)
}

func (e *GatewayError) Unwrap() error { return ErrGateway }

// Validationf builds an ErrValidation carrying a field-specific message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
