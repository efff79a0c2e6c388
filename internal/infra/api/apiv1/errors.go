package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"petcare-billing/internal/domain"
)

const msgPaidNotActivated = "payment succeeded but subscription activation failed"

type errorBody struct {
	Status  string          `json:"status,omitempty"`
	Error   string          `json:"error"`
	Gateway *gatewayPayload `json:"gateway,omitempty"`
}

type gatewayPayload struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// statusFor maps a domain error to the HTTP status and the message shown to the caller.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrSignatureMismatch):
		return http.StatusBadRequest, "payment signature verification failed"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrDuplicateInFlight):
		return http.StatusConflict, "payment is already being processed"
	case errors.Is(err, domain.ErrDuplicatePayment):
		return http.StatusConflict, "payment already processed"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, domain.ErrGatewayTimeout),
		errors.Is(err, domain.ErrStoreTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timeout"
	case errors.Is(err, domain.ErrProfileUpdateFailed):
		return http.StatusInternalServerError, "subscription activation failed"
	case errors.Is(err, domain.ErrLedgerWriteFailed):
		return http.StatusInternalServerError, "failed to record payment"
	case errors.Is(err, domain.ErrGateway):
		return http.StatusInternalServerError, "payment gateway error"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError renders err in the workflow envelope {status:"error", error}.
// paid marks responses where money was already captured.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, paid bool) {
	code, msg := statusFor(err)
	if paid && (errors.Is(err, domain.ErrProfileUpdateFailed) || errors.Is(err, domain.ErrGeneral)) {
		msg = msgPaidNotActivated
	}
	s.logFailure(r, code, err)
	writeJSON(w, code, errorBody{Status: "error", Error: msg})
}

// writeOrderError renders err as {error}, passing the gateway's own payload through.
func (s *Server) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	body := errorBody{Error: msg}
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		body.Gateway = &gatewayPayload{Code: gwErr.Code, Description: gwErr.Description}
		if gwErr.Description != "" {
			body.Error = gwErr.Description
		}
	}
	s.logFailure(r, code, err)
	writeJSON(w, code, body)
}

func (s *Server) logFailure(r *http.Request, code int, err error) {
	l := s.logger(r)
	if code >= 500 {
		l.Error().Err(err).Int("status", code).Msg("request failed")
		return
	}
	l.Warn().Err(err).Int("status", code).Msg("request rejected")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
