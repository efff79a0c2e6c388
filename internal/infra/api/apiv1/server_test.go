//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apiv1 "petcare-billing/internal/infra/api/apiv1"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
)

//
// ---------------- use case fakes ----------------
//

type fakeOrders struct {
	got   []model.OrderRequest
	order *model.GatewayOrder
	err   error
}

func (f *fakeOrders) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

type fakeWorkflow struct {
	verifyCalls []model.VerifyPaymentInput
	freeCalls   []model.FreeActivationInput
	res         *model.ActivationResult
	err         error
}

func (f *fakeWorkflow) VerifyPayment(ctx context.Context, in model.VerifyPaymentInput) (*model.ActivationResult, error) {
	f.verifyCalls = append(f.verifyCalls, in)
	return f.result(), f.err
}

func (f *fakeWorkflow) ActivateFree(ctx context.Context, in model.FreeActivationInput) (*model.ActivationResult, error) {
	f.freeCalls = append(f.freeCalls, in)
	return f.result(), f.err
}

func (f *fakeWorkflow) Reconcile(ctx context.Context, rec *model.PaymentRecord) error { return nil }

func (f *fakeWorkflow) result() *model.ActivationResult {
	if f.res != nil {
		return f.res
	}
	return &model.ActivationResult{State: model.StateInitiated}
}

type fakeLedger struct {
	records map[string]*model.PaymentRecord
}

func (f *fakeLedger) Record(ctx context.Context, rec *model.PaymentRecord) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLedger) Annotate(ctx context.Context, id string, status model.PaymentStatus, details model.ErrorDetails) error {
	return errors.New("not used")
}

func (f *fakeLedger) Get(ctx context.Context, id string) (*model.PaymentRecord, error) {
	if r, ok := f.records[id]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLedger) FindPaid(ctx context.Context, gatewayPaymentID string) (*model.PaymentRecord, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeLedger) ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	return nil, nil
}

//
// -------------------- test helpers --------------------
//

const (
	testUserID = "7b0c7a52-4d54-4f57-9a51-0b7b5e0d8d11"
	testAPIKey = "admin-key"
	jwtSecret  = "idp-secret"
)

type harness struct {
	orders   *fakeOrders
	workflow *fakeWorkflow
	ledger   *fakeLedger
	router   *chi.Mux
}

func newHarness(auth *apiv1.TokenAuth) *harness {
	h := &harness{
		orders:   &fakeOrders{order: &model.GatewayOrder{ID: "order_1", Raw: []byte(`{"id":"order_1","amount":50000}`)}},
		workflow: &fakeWorkflow{},
		ledger:   &fakeLedger{records: map[string]*model.PaymentRecord{}},
	}
	l := zerolog.Nop()
	srv := apiv1.NewServer(h.orders, h.workflow, h.ledger, auth, testAPIKey, &l)
	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, srv)
	h.router = r
	return h
}

func (h *harness) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v (body=%s)", err, rec.Body.String())
	}
	return out
}

func verifyBody(userID string) string {
	return fmt.Sprintf(`{"orderId":"order_1","paymentId":"pay_1","signature":"abc","userId":%q,"planName":"owner_monthly","amountPaid":499.99,"currencyPaid":"INR"}`, userID)
}

func mintToken(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

//
// -------------------- tests --------------------
//

func TestCreateOrder(t *testing.T) {
	t.Run("returns the gateway order verbatim", func(t *testing.T) {
		h := newHarness(nil)
		rec := h.do(http.MethodPost, "/api/v1/orders", `{"amount":"499.99","currency":"inr","notes":{"plan":"owner_monthly"}}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `{"id":"order_1","amount":50000}` {
			t.Fatalf("body = %s", got)
		}
		if len(h.orders.got) != 1 || !h.orders.got[0].Amount.Equal(decimal.RequireFromString("499.99")) {
			t.Fatalf("order request = %+v", h.orders.got)
		}
	})

	t.Run("missing amount is 400 without calling the gateway", func(t *testing.T) {
		h := newHarness(nil)
		rec := h.do(http.MethodPost, "/api/v1/orders", `{"currency":"INR"}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
		if len(h.orders.got) != 0 {
			t.Fatal("gateway must not be called")
		}
		if body := decodeBody(t, rec); body["error"] == "" {
			t.Fatalf("missing error: %v", body)
		}
	})

	t.Run("gateway error surfaces its payload", func(t *testing.T) {
		h := newHarness(nil)
		h.orders.err = &domain.GatewayError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Description: "amount too small"}
		rec := h.do(http.MethodPost, "/api/v1/orders", `{"amount":1,"currency":"INR"}`, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		gw, _ := body["gateway"].(map[string]any)
		if body["error"] != "amount too small" || gw["code"] != "BAD_REQUEST_ERROR" {
			t.Fatalf("body = %v", body)
		}
	})

	t.Run("gateway timeout is 504", func(t *testing.T) {
		h := newHarness(nil)
		h.orders.err = fmt.Errorf("%w: deadline", domain.ErrGatewayTimeout)
		rec := h.do(http.MethodPost, "/api/v1/orders", `{"amount":1,"currency":"INR"}`, nil)
		if rec.Code != http.StatusGatewayTimeout {
			t.Fatalf("want 504, got %d", rec.Code)
		}
	})
}

func TestVerifyPayment_StatusMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		recordID string
		want     int
		msg      string
	}{
		{"success", nil, "rec-1", http.StatusOK, ""},
		{"validation", domain.Validationf("missing required fields: orderId"), "", http.StatusBadRequest, ""},
		{"signature mismatch", domain.ErrSignatureMismatch, "rec-1", http.StatusBadRequest, "payment signature verification failed"},
		{"in flight", domain.ErrDuplicateInFlight, "", http.StatusConflict, ""},
		{"duplicate", domain.ErrDuplicatePayment, "", http.StatusConflict, ""},
		{"ledger failure", domain.ErrLedgerWriteFailed, "", http.StatusInternalServerError, "failed to record payment"},
		{"activation failure after capture", fmt.Errorf("%w: 0 rows", domain.ErrProfileUpdateFailed), "rec-1", http.StatusInternalServerError, "payment succeeded but subscription activation failed"},
		{"store timeout", fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, domain.ErrStoreTimeout), "", http.StatusGatewayTimeout, ""},
		{"unexpected", errors.New("boom"), "", http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(nil)
			h.workflow.err = tc.err
			h.workflow.res = &model.ActivationResult{RecordID: tc.recordID}
			rec := h.do(http.MethodPost, "/api/v1/payments/verify", verifyBody(testUserID), nil)
			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d, body=%s", tc.want, rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if tc.err == nil {
				if body["status"] != "success" {
					t.Fatalf("body = %v", body)
				}
				return
			}
			if body["status"] != "error" {
				t.Fatalf("body = %v", body)
			}
			if tc.msg != "" && body["error"] != tc.msg {
				t.Fatalf("error = %v, want %q", body["error"], tc.msg)
			}
		})
	}
}

func TestVerifyPayment_PassesInput(t *testing.T) {
	h := newHarness(nil)
	rec := h.do(http.MethodPost, "/api/v1/payments/verify", verifyBody(testUserID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if len(h.workflow.verifyCalls) != 1 {
		t.Fatalf("calls = %d", len(h.workflow.verifyCalls))
	}
	in := h.workflow.verifyCalls[0]
	if in.OrderID != "order_1" || in.PaymentID != "pay_1" || in.UserID != testUserID || in.PlanName != "owner_monthly" {
		t.Fatalf("input = %+v", in)
	}
	if !in.AmountPaid.Equal(decimal.RequireFromString("499.99")) || in.CurrencyPaid != "INR" {
		t.Fatalf("amount = %s %s", in.AmountPaid, in.CurrencyPaid)
	}
}

func TestMalformedRequestsNeverReachWorkflow(t *testing.T) {
	cases := []struct {
		name, path, body string
	}{
		{"verify empty body", "/api/v1/payments/verify", ""},
		{"verify bad json", "/api/v1/payments/verify", `{"orderId":`},
		{"verify missing amount", "/api/v1/payments/verify", `{"orderId":"o","paymentId":"p","signature":"s","userId":"` + testUserID + `","planName":"x","currencyPaid":"INR"}`},
		{"free bad json", "/api/v1/subscriptions/free", `[`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(nil)
			rec := h.do(http.MethodPost, tc.path, tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d", rec.Code)
			}
			if len(h.workflow.verifyCalls)+len(h.workflow.freeCalls) != 0 {
				t.Fatal("workflow must not be called")
			}
			if body := decodeBody(t, rec); body["status"] != "error" {
				t.Fatalf("body = %v", body)
			}
		})
	}
}

func TestActivateFree(t *testing.T) {
	t.Run("returns the activated profile", func(t *testing.T) {
		h := newHarness(nil)
		ends := time.Now().AddDate(1, 0, 0).UTC()
		h.workflow.res = &model.ActivationResult{
			State: model.StateProfileActivated,
			Profile: &model.Profile{
				ID:                 testUserID,
				SubscriptionStatus: model.SubscriptionStatusActive,
				Plan:               "owner_annual",
				SubscriptionEndsAt: &ends,
			},
		}
		rec := h.do(http.MethodPost, "/api/v1/subscriptions/free", `{"userId":"`+testUserID+`","planName":"owner_annual"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		p, _ := body["profile"].(map[string]any)
		if body["status"] != "success" || p["plan"] != "owner_annual" || p["subscription_status"] != "active" {
			t.Fatalf("body = %v", body)
		}
	})

	t.Run("rate limited is 429", func(t *testing.T) {
		h := newHarness(nil)
		h.workflow.err = domain.ErrRateLimited
		rec := h.do(http.MethodPost, "/api/v1/subscriptions/free", `{"userId":"`+testUserID+`","planName":"owner_annual"}`, nil)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("want 429, got %d", rec.Code)
		}
	})

	t.Run("activation failure is a plain 500", func(t *testing.T) {
		h := newHarness(nil)
		h.workflow.err = domain.ErrProfileUpdateFailed
		h.workflow.res = &model.ActivationResult{RecordID: "rec-1"}
		rec := h.do(http.MethodPost, "/api/v1/subscriptions/free", `{"userId":"`+testUserID+`","planName":"owner_annual"}`, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "subscription activation failed" {
			t.Fatalf("body = %v", body)
		}
	})
}

func TestIdentityCheck(t *testing.T) {
	auth := apiv1.NewTokenAuth(jwtSecret, "")

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired token", "Bearer " + mintToken(t, testUserID, -time.Minute), http.StatusUnauthorized},
		{"other subject", "Bearer " + mintToken(t, "someone-else", time.Hour), http.StatusForbidden},
		{"own subject", "Bearer " + mintToken(t, testUserID, time.Hour), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(auth)
			hdr := map[string]string{}
			if tc.token != "" {
				hdr["Authorization"] = tc.token
			}
			rec := h.do(http.MethodPost, "/api/v1/subscriptions/free", `{"userId":"`+testUserID+`","planName":"owner_annual"}`, hdr)
			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d, body=%s", tc.want, rec.Code, rec.Body.String())
			}
			if tc.want != http.StatusOK && len(h.workflow.freeCalls) != 0 {
				t.Fatal("workflow must not run for rejected callers")
			}
		})
	}

	t.Run("empty secret disables the check", func(t *testing.T) {
		if apiv1.NewTokenAuth("", "") != nil {
			t.Fatal("want nil auth")
		}
	})
}

func TestGetPayment_Admin(t *testing.T) {
	id := "3f2b1c9e-8a8d-4e0c-9a55-2c8f1f4d7a10"
	seed := func(h *harness) {
		h.ledger.records[id] = &model.PaymentRecord{
			ID:           id,
			UserID:       testUserID,
			Status:       model.PaymentStatusPaidProfileUpdateFailed,
			Plan:         "owner_monthly",
			Currency:     "INR",
			Amount:       decimal.RequireFromString("499.99"),
			ErrorDetails: model.ErrorDetails{"failure_reason": "profile update failed"},
		}
	}

	t.Run("requires the bearer key", func(t *testing.T) {
		h := newHarness(nil)
		seed(h)
		if rec := h.do(http.MethodGet, "/api/v1/payments/"+id, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
		if rec := h.do(http.MethodGet, "/api/v1/payments/"+id, "", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})

	t.Run("returns the record with its details", func(t *testing.T) {
		h := newHarness(nil)
		seed(h)
		rec := h.do(http.MethodGet, "/api/v1/payments/"+id, "", map[string]string{"Authorization": "Bearer " + testAPIKey})
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		details, _ := body["error_details"].(map[string]any)
		if body["status"] != string(model.PaymentStatusPaidProfileUpdateFailed) || details["failure_reason"] == nil {
			t.Fatalf("body = %v", body)
		}
	})

	t.Run("unknown id is 404 and bad id is 400", func(t *testing.T) {
		h := newHarness(nil)
		auth := map[string]string{"Authorization": "Bearer " + testAPIKey}
		if rec := h.do(http.MethodGet, "/api/v1/payments/"+id, "", auth); rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
		if rec := h.do(http.MethodGet, "/api/v1/payments/nope", "", auth); rec.Code != http.StatusBadRequest {
			t.Fatalf("want 400, got %d", rec.Code)
		}
	})
}
