// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/adapter"
	"petcare-billing/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway against the Orders REST API.
// Requests authenticate with HTTP basic auth (key id / key secret); the key
// secret is also the HMAC key for checkout signatures.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("gateway key id/secret empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

// CreateOrder calls POST /orders and returns the order object verbatim.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, params model.GatewayOrderParams) (*model.GatewayOrder, error) {
	payload := map[string]any{
		"amount":   params.AmountMinor,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		payload["notes"] = params.Notes
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.ObserveGatewayLatency("create_order", time.Since(start), err == nil)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if jerr := json.Unmarshal(body, &out); jerr == nil && (out.Error.Code != "" || out.Error.Description != "") {
			return nil, &domain.GatewayError{StatusCode: resp.StatusCode, Code: out.Error.Code, Description: out.Error.Description}
		}
		return nil, fmt.Errorf("%w: http %d", domain.ErrGateway, resp.StatusCode)
	}

	var head struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &head); err != nil || head.ID == "" {
		return nil, fmt.Errorf("%w: malformed order response", domain.ErrGateway)
	}
	return &model.GatewayOrder{ID: head.ID, Status: head.Status, Raw: json.RawMessage(body)}, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, g.keySecret)
}

func (g *RazorpayGateway) ExpectedSignature(orderID, paymentID string) string {
	return ExpectedSignature(orderID, paymentID, g.keySecret)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
