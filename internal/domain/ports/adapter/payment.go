package adapter

import (
	"context"

	"petcare-billing/internal/domain/model"
)

// PaymentGateway is the hex port for the payment provider. Only order creation
// and checkout signature verification are consumed; the provider's own order
// lifecycle stays on its side.
type PaymentGateway interface {
	Name() string

	// CreateOrder reserves an order on the gateway. Failures carrying the
	// gateway's error payload are returned as *domain.GatewayError.
	CreateOrder(ctx context.Context, params model.GatewayOrderParams) (*model.GatewayOrder, error)

	// VerifySignature checks the signature the client received at checkout.
	VerifySignature(orderID, paymentID, signature string) bool
	// ExpectedSignature returns the signature the gateway would have produced.
	ExpectedSignature(orderID, paymentID string) string
}
