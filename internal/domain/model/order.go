package model

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"petcare-billing/internal/domain"
)

// OrderRequest is the caller's request to reserve a gateway order.
type OrderRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Notes    map[string]string
}

// GatewayOrderParams is what is sent to the gateway: amount in minor units.
type GatewayOrderParams struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the gateway's order object. Raw is returned to the client verbatim.
type GatewayOrder struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ToMinorUnits converts a major-unit amount to the gateway's integer representation (x100, rounded).
// Amounts whose minor value does not fit in an int64 are rejected.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	scaled := amount.Mul(decimal.NewFromInt(100)).Round(0)
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return 0, domain.Validationf("amount is too large")
	}
	return scaled.IntPart(), nil
}

// VerifyPaymentInput is the paid-path request after client-side checkout.
type VerifyPaymentInput struct {
	OrderID      string
	PaymentID    string
	Signature    string
	UserID       string
	PlanName     string
	AmountPaid   decimal.Decimal
	CurrencyPaid string
}

// FreeActivationInput is the bypass-path request.
type FreeActivationInput struct {
	UserID   string
	PlanName string
}
