package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests. Orders are
// fabricated locally; signatures use the configured secret so a client can
// compute them with ExpectedSignature.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	secret string
	orders map[string]model.GatewayOrderParams
}

func NewNoopPaymentGateway(secret string) *NoopPaymentGateway {
	if secret == "" {
		secret = "noop-secret"
	}
	return &NoopPaymentGateway{
		secret: secret,
		orders: make(map[string]model.GatewayOrderParams),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("order_noop%d", g.seq)
}

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, params model.GatewayOrderParams) (*model.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.orders[id] = params
	raw, err := json.Marshal(map[string]any{
		"id":         id,
		"entity":     "order",
		"amount":     params.AmountMinor,
		"amount_due": params.AmountMinor,
		"currency":   params.Currency,
		"receipt":    params.Receipt,
		"status":     "created",
		"notes":      params.Notes,
		"created_at": time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}
	return &model.GatewayOrder{ID: id, Status: "created", Raw: raw}, nil
}

// Order returns the params an order was created with.
func (g *NoopPaymentGateway) Order(id string) (model.GatewayOrderParams, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.orders[id]
	return p, ok
}

func (g *NoopPaymentGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, g.secret)
}

func (g *NoopPaymentGateway) ExpectedSignature(orderID, paymentID string) string {
	return ExpectedSignature(orderID, paymentID, g.secret)
}
