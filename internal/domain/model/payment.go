package model

import (
	"time"

	"github.com/shopspring/decimal"

	"petcare-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending                 PaymentStatus = "pending" // written before activation, moved to a terminal status after
	PaymentStatusFree                    PaymentStatus = "free"
	PaymentStatusPaid                    PaymentStatus = "paid"
	PaymentStatusVerificationFailed      PaymentStatus = "verification_failed"
	PaymentStatusPaidProfileUpdateFailed PaymentStatus = "paid_db_profile_update_failed"
	PaymentStatusPaidGeneralError        PaymentStatus = "paid_db_general_error"
	PaymentStatusFreeProfileUpdateFailed PaymentStatus = "free_profile_update_failed"
)

// IsPaidFamily reports statuses for which money was captured by the gateway.
func (s PaymentStatus) IsPaidFamily() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPaidProfileUpdateFailed, PaymentStatusPaidGeneralError:
		return true
	}
	return false
}

// ReconcilableStatuses are the ledger statuses the reconciler retries. A
// pending entry is only retried once it is stale.
var ReconcilableStatuses = []PaymentStatus{
	PaymentStatusPaidProfileUpdateFailed,
	PaymentStatusPaidGeneralError,
	PaymentStatusFreeProfileUpdateFailed,
	PaymentStatusPending,
}

// MaxReconcileAttempts bounds retries of one entry; after that it is left for an operator.
const MaxReconcileAttempts = 10

// NeedsReconciliation reports statuses where money or a grant was recorded
// but the profile may not have been activated.
func (s PaymentStatus) NeedsReconciliation() bool {
	for _, r := range ReconcilableStatuses {
		if s == r {
			return true
		}
	}
	return false
}

// Ledger amounts are stored as NUMERIC(12,2).
const (
	ledgerAmountScale = 2
	ledgerAmountLimit = 10_000_000_000
)

// CheckLedgerAmount rejects amounts the ledger column cannot hold exactly.
// field names the input in the returned message.
func CheckLedgerAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.Validationf("%s must not be negative", field)
	}
	if !amount.Equal(amount.Truncate(ledgerAmountScale)) {
		return domain.Validationf("%s must have at most %d decimal places", field, ledgerAmountScale)
	}
	if amount.GreaterThanOrEqual(decimal.NewFromInt(ledgerAmountLimit)) {
		return domain.Validationf("%s is too large", field)
	}
	return nil
}

// ErrorDetails is the structured payload attached to a ledger entry when a step fails.
type ErrorDetails map[string]any

// PaymentRecord is one ledger entry per activation attempt (not per payment).
type PaymentRecord struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	GatewayOrderID   *string         `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id"`
	GatewaySignature *string         `json:"gateway_signature"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	Plan             string          `json:"plan"`
	ErrorDetails     ErrorDetails    `json:"error_details,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewPaidRecord builds a ledger entry for a gateway payment. status must be a
// paid-family status or verification_failed; all gateway identifiers are required.
func NewPaidRecord(userID, plan, orderID, paymentID, signature string, amount decimal.Decimal, currency string, status PaymentStatus) (*PaymentRecord, error) {
	if userID == "" || plan == "" || orderID == "" || paymentID == "" || signature == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount.IsNegative() || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !status.IsPaidFamily() && status != PaymentStatusVerificationFailed {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentRecord{
		UserID:           userID,
		GatewayOrderID:   &orderID,
		GatewayPaymentID: &paymentID,
		GatewaySignature: &signature,
		Amount:           amount,
		Currency:         currency,
		Status:           status,
		Plan:             plan,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewFreeRecord builds the pending ledger entry for a bypass activation.
// Amount is always zero and gateway identifiers are always nil.
func NewFreeRecord(userID, plan, currency string) (*PaymentRecord, error) {
	if userID == "" || plan == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PaymentRecord{
		UserID:    userID,
		Amount:    decimal.Zero,
		Currency:  currency,
		Status:    PaymentStatusPending,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsFreeGrant reports whether the record belongs to the bypass path.
func (r *PaymentRecord) IsFreeGrant() bool {
	return r.GatewayPaymentID == nil && r.Amount.IsZero()
}

// ReconcileAttempts is the number of failed reconciliation passes recorded in ErrorDetails.
func (r *PaymentRecord) ReconcileAttempts() int {
	switch v := r.ErrorDetails["reconcile_attempts"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
