// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/adapter"
	"petcare-billing/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type OrderUseCase interface {
	// CreateOrder reserves a gateway order and returns the gateway's order object.
	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error)
}

type orderUC struct {
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
}

func NewOrderUseCase(gateway adapter.PaymentGateway, logger *zerolog.Logger) *orderUC {
	l := logger.With().Str("component", "order_uc").Logger()
	return &orderUC{gateway: gateway, log: &l}
}

func (u *orderUC) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error) {
	params, err := buildOrderParams(req)
	if err != nil {
		metrics.IncOrder("invalid")
		return nil, err
	}

	order, err := u.gateway.CreateOrder(ctx, params)
	if err != nil {
		result := "gateway_error"
		if errors.Is(err, domain.ErrGatewayTimeout) {
			result = "timeout"
		}
		metrics.IncOrder(result)
		u.log.Error().Err(err).
			Str("gateway", u.gateway.Name()).
			Int64("amount_minor", params.AmountMinor).
			Str("currency", params.Currency).
			Msg("gateway order creation failed")
		return nil, err
	}

	metrics.IncOrder("created")
	u.log.Info().
		Str("order_id", order.ID).
		Str("receipt", params.Receipt).
		Int64("amount_minor", params.AmountMinor).
		Str("currency", params.Currency).
		Msg("gateway order created")
	return order, nil
}

func buildOrderParams(req model.OrderRequest) (model.GatewayOrderParams, error) {
	if !req.Amount.IsPositive() {
		return model.GatewayOrderParams{}, domain.Validationf("amount must be a positive number")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return model.GatewayOrderParams{}, domain.Validationf("currency is required")
	}
	minor, err := model.ToMinorUnits(req.Amount)
	if err != nil {
		return model.GatewayOrderParams{}, err
	}
	if minor <= 0 {
		return model.GatewayOrderParams{}, domain.Validationf("amount is below the smallest currency unit")
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		receipt = newReceipt()
	}
	return model.GatewayOrderParams{
		AmountMinor: minor,
		Currency:    currency,
		Receipt:     receipt,
		Notes:       req.Notes,
	}, nil
}

// newReceipt returns a timestamp-ordered receipt id.
func newReceipt() string {
	return "rcpt_" + strings.ToLower(ulid.Make().String())
}
