package apiv1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/infra/logging"
	"petcare-billing/internal/usecase"
)

const maxBodyBytes = 1 << 20

type Server struct {
	orders   usecase.OrderUseCase
	workflow usecase.WorkflowUseCase
	ledger   usecase.LedgerUseCase
	auth     *TokenAuth
	apiKey   string
	log      *zerolog.Logger
}

// NewServer builds the v1 handlers. auth may be nil to skip the identity check.
func NewServer(
	orders usecase.OrderUseCase,
	workflow usecase.WorkflowUseCase,
	ledger usecase.LedgerUseCase,
	auth *TokenAuth,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{
		orders:   orders,
		workflow: workflow,
		ledger:   ledger,
		auth:     auth,
		apiKey:   apiKey,
		log:      &l,
	}
}

// RegisterAPIV1 mounts the v1 routes on r with absolute paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", s.createOrder)
		r.Post("/payments/verify", s.verifyPayment)
		r.Post("/subscriptions/free", s.activateFree)
		r.With(s.adminOnly).Get("/payments/{id}", s.getPayment)
	})
}

type CreateOrderRequest struct {
	Amount   *decimal.Decimal  `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type VerifyPaymentRequest struct {
	OrderID      string           `json:"orderId"`
	PaymentID    string           `json:"paymentId"`
	Signature    string           `json:"signature"`
	UserID       string           `json:"userId"`
	PlanName     string           `json:"planName"`
	AmountPaid   *decimal.Decimal `json:"amountPaid"`
	CurrencyPaid string           `json:"currencyPaid"`
}

type ActivateFreeRequest struct {
	UserID   string `json:"userId"`
	PlanName string `json:"planName"`
}

type StatusResponse struct {
	Status  string         `json:"status"`
	Profile *model.Profile `json:"profile,omitempty"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decode(r, &req); err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	if req.Amount == nil {
		s.writeOrderError(w, r, domain.Validationf("missing required fields: amount"))
		return
	}

	order, err := s.orders.CreateOrder(r.Context(), model.OrderRequest{
		Amount:   *req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		s.writeOrderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(order.Raw)
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, false)
		return
	}
	if req.AmountPaid == nil {
		s.writeError(w, r, domain.Validationf("missing required fields: amountPaid"), false)
		return
	}
	ctx := logging.WithUserID(r.Context(), req.UserID)
	r = r.WithContext(ctx)
	if err := s.authorize(r, req.UserID); err != nil {
		s.writeError(w, r, err, false)
		return
	}

	res, err := s.workflow.VerifyPayment(ctx, model.VerifyPaymentInput{
		OrderID:      req.OrderID,
		PaymentID:    req.PaymentID,
		Signature:    req.Signature,
		UserID:       req.UserID,
		PlanName:     req.PlanName,
		AmountPaid:   *req.AmountPaid,
		CurrencyPaid: req.CurrencyPaid,
	})
	if err != nil {
		s.writeError(w, r, err, res != nil && res.RecordID != "")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "success"})
}

func (s *Server) activateFree(w http.ResponseWriter, r *http.Request) {
	var req ActivateFreeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, false)
		return
	}
	ctx := logging.WithUserID(r.Context(), req.UserID)
	r = r.WithContext(ctx)
	if err := s.authorize(r, req.UserID); err != nil {
		s.writeError(w, r, err, false)
		return
	}

	res, err := s.workflow.ActivateFree(ctx, model.FreeActivationInput{
		UserID:   req.UserID,
		PlanName: req.PlanName,
	})
	if err != nil {
		s.writeError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Profile: res.Profile})
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, r, domain.Validationf("id must be a UUID"), false)
		return
	}
	rec, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) logger(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}

// decode reads a single JSON object; malformed or oversized bodies are validation errors.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validationf("request body is empty")
		}
		return domain.Validationf("malformed JSON body")
	}
	return nil
}
