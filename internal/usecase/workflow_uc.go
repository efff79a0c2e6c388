// File: internal/usecase/workflow_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/adapter"
	"petcare-billing/internal/infra/logging"
	"petcare-billing/internal/infra/metrics"
	"petcare-billing/internal/infra/worker"
)

var _ WorkflowUseCase = (*workflowUC)(nil)

// WorkflowUseCase is the single orchestrator for the paid and free activation paths.
type WorkflowUseCase interface {
	VerifyPayment(ctx context.Context, in model.VerifyPaymentInput) (*model.ActivationResult, error)
	ActivateFree(ctx context.Context, in model.FreeActivationInput) (*model.ActivationResult, error)
	// Reconcile retries activation for a ledger entry left in a failure or pending status.
	Reconcile(ctx context.Context, rec *model.PaymentRecord) error
}

// TaskSubmitter queues background work; *worker.Pool satisfies it.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type WorkflowConfig struct {
	FreeCurrency   string
	InFlightTTL    time.Duration
	FreeRateLimit  int
	FreeRateWindow time.Duration
	Dev            bool
}

type workflowUC struct {
	gateway    adapter.PaymentGateway
	ledger     LedgerUseCase
	activation ActivationUseCase
	guard      adapter.InFlightGuard
	limiter    adapter.RateLimiter
	notifier   adapter.AlertNotifier
	tasks      TaskSubmitter
	cfg        WorkflowConfig
	log        *zerolog.Logger
}

// NewWorkflowUseCase wires the workflow. guard, limiter, notifier and tasks may be nil.
func NewWorkflowUseCase(
	gateway adapter.PaymentGateway,
	ledger LedgerUseCase,
	activation ActivationUseCase,
	guard adapter.InFlightGuard,
	limiter adapter.RateLimiter,
	notifier adapter.AlertNotifier,
	tasks TaskSubmitter,
	cfg WorkflowConfig,
	logger *zerolog.Logger,
) *workflowUC {
	if cfg.FreeCurrency == "" {
		cfg.FreeCurrency = "INR"
	}
	if cfg.InFlightTTL <= 0 {
		cfg.InFlightTTL = 30 * time.Second
	}
	if cfg.FreeRateWindow <= 0 {
		cfg.FreeRateWindow = time.Hour
	}
	l := logger.With().Str("component", "workflow_uc").Logger()
	return &workflowUC{
		gateway:    gateway,
		ledger:     ledger,
		activation: activation,
		guard:      guard,
		limiter:    limiter,
		notifier:   notifier,
		tasks:      tasks,
		cfg:        cfg,
		log:        &l,
	}
}

const (
	reasonSignatureMismatch = "Signature mismatch"
	reasonProfileUpdate     = "Profile update failed"
	reasonGeneral           = "Unexpected error during activation"
)

// run tracks one request through the workflow states.
type run struct {
	res *model.ActivationResult
	log *zerolog.Logger
}

func (r *run) to(s model.WorkflowState) {
	r.res.State = s
	r.log.Debug().Str("state", string(s)).Bool("terminal", s.IsTerminal()).Msg("workflow transition")
}

func (w *workflowUC) newRun(ctx context.Context) *run {
	return &run{
		res: &model.ActivationResult{State: model.StateInitiated},
		log: logging.With(ctx, w.log),
	}
}

func (w *workflowUC) VerifyPayment(ctx context.Context, in model.VerifyPaymentInput) (res *model.ActivationResult, err error) {
	start := time.Now()
	ctx = logging.WithUserID(logging.WithPaymentID(ctx, in.PaymentID), in.UserID)
	r := w.newRun(ctx)
	defer logging.TraceDuration(r.log, "Workflow.VerifyPayment")()
	defer func() {
		result, reason := "ok", "ok"
		if err != nil {
			result, reason = "fail", verifyReason(err)
		}
		metrics.ObserveVerify(result, reason, time.Since(start))
		metrics.IncActivation("paid", result)
	}()

	if err := validateVerifyInput(in); err != nil {
		return r.res, err
	}
	// order creation happened before the client checkout
	r.to(model.StateOrderCreated)
	r.to(model.StateSignaturePending)

	unlock, err := w.lockPayment(ctx, r, in.PaymentID)
	if err != nil {
		return r.res, err
	}
	defer unlock()

	if !w.gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		return w.reject(ctx, r, in)
	}
	r.to(model.StateVerified)

	rec, err := model.NewPaidRecord(in.UserID, in.PlanName, in.OrderID, in.PaymentID, in.Signature, in.AmountPaid, in.CurrencyPaid, model.PaymentStatusPaid)
	if err != nil {
		r.to(model.StateLedgerFailed)
		return r.res, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}
	id, err := w.ledger.Record(ctx, rec)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return w.replay(ctx, r, in)
		}
		r.to(model.StateLedgerFailed)
		return r.res, err
	}
	r.res.RecordID = id
	r.to(model.StateLedgerWritten)
	metrics.AddPaymentRevenue(in.CurrencyPaid, in.AmountPaid.InexactFloat64())

	profile, err := w.activation.Activate(ctx, in.UserID, in.PlanName, time.Now())
	if err != nil {
		status, state := model.PaymentStatusPaidGeneralError, model.StateGeneralError
		reason, outErr := reasonGeneral, fmt.Errorf("%w: %w", domain.ErrGeneral, err)
		if errors.Is(err, domain.ErrProfileUpdateFailed) {
			status, state = model.PaymentStatusPaidProfileUpdateFailed, model.StateProfileUpdateFail
			reason, outErr = reasonProfileUpdate, err
		}
		r.to(state)
		w.annotateFailure(ctx, r, id, status, reason, err)
		w.alert(rec, status, err)
		r.log.Error().Err(err).Str("record_id", id).Msg("payment captured but subscription activation failed")
		return r.res, outErr
	}
	r.res.Profile = profile
	r.to(model.StateProfileActivated)
	r.log.Info().Str("record_id", id).Str("plan", in.PlanName).Msg("payment verified and subscription activated")
	return r.res, nil
}

// reject records the failed verification; the profile is never touched.
func (w *workflowUC) reject(ctx context.Context, r *run, in model.VerifyPaymentInput) (*model.ActivationResult, error) {
	r.to(model.StateRejected)
	expected := w.gateway.ExpectedSignature(in.OrderID, in.PaymentID)
	r.log.Warn().
		Str("order_id", in.OrderID).
		Str("signature", logging.Redact(in.Signature, w.cfg.Dev)).
		Msg("payment signature mismatch")

	rec, err := model.NewPaidRecord(in.UserID, in.PlanName, in.OrderID, in.PaymentID, in.Signature, in.AmountPaid, in.CurrencyPaid, model.PaymentStatusVerificationFailed)
	if err != nil {
		r.to(model.StateLedgerFailed)
		return r.res, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}
	rec.ErrorDetails = model.ErrorDetails{
		"failure_reason":     reasonSignatureMismatch,
		"expected_signature": expected,
	}
	id, err := w.ledger.Record(ctx, rec)
	if err != nil {
		r.to(model.StateLedgerFailed)
		return r.res, err
	}
	r.res.RecordID = id
	return r.res, domain.ErrSignatureMismatch
}

// replay handles a payment id that already has a paid-family ledger entry.
// A fully activated entry for the same user is reported as success.
func (w *workflowUC) replay(ctx context.Context, r *run, in model.VerifyPaymentInput) (*model.ActivationResult, error) {
	existing, err := w.ledger.FindPaid(ctx, in.PaymentID)
	if err != nil {
		r.to(model.StateLedgerFailed)
		r.log.Error().Err(err).Msg("duplicate payment id but existing entry unreadable")
		return r.res, domain.ErrDuplicatePayment
	}
	r.res.RecordID = existing.ID
	if existing.Status == model.PaymentStatusPaid && existing.UserID == in.UserID && existing.Plan == in.PlanName {
		r.res.Replayed = true
		r.to(model.StateProfileActivated)
		r.log.Info().Str("record_id", existing.ID).Msg("payment already activated, replay acknowledged")
		return r.res, nil
	}
	r.to(model.StateLedgerFailed)
	r.log.Warn().Str("record_id", existing.ID).Str("status", string(existing.Status)).Msg("duplicate payment rejected")
	return r.res, domain.ErrDuplicatePayment
}

func (w *workflowUC) ActivateFree(ctx context.Context, in model.FreeActivationInput) (res *model.ActivationResult, err error) {
	ctx = logging.WithUserID(ctx, in.UserID)
	r := w.newRun(ctx)
	defer logging.TraceDuration(r.log, "Workflow.ActivateFree")()
	defer func() {
		result := "ok"
		if err != nil {
			result = "fail"
		}
		metrics.IncActivation("free", result)
	}()

	if err := validateFreeInput(in); err != nil {
		return r.res, err
	}
	if err := w.allowFree(ctx, r, in.UserID); err != nil {
		return r.res, err
	}

	rec, err := model.NewFreeRecord(in.UserID, in.PlanName, w.cfg.FreeCurrency)
	if err != nil {
		r.to(model.StateLedgerFailed)
		return r.res, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}
	id, err := w.ledger.Record(ctx, rec)
	if err != nil {
		r.to(model.StateLedgerFailed)
		return r.res, err
	}
	r.res.RecordID = id
	r.to(model.StateLedgerWritten)

	profile, err := w.activation.Activate(ctx, in.UserID, in.PlanName, time.Now())
	if err != nil {
		r.to(model.StateProfileUpdateFail)
		w.annotateFailure(ctx, r, id, model.PaymentStatusFreeProfileUpdateFailed, reasonProfileUpdate, err)
		w.alert(rec, model.PaymentStatusFreeProfileUpdateFailed, err)
		if !errors.Is(err, domain.ErrProfileUpdateFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrGeneral, err)
		}
		return r.res, err
	}
	r.res.Profile = profile
	r.to(model.StateProfileActivated)

	// The grant is live; a failed annotation leaves the entry pending for the reconciler.
	if err := w.ledger.Annotate(ctx, id, model.PaymentStatusFree, nil); err != nil {
		r.log.Error().Err(err).Str("record_id", id).Msg("free grant activated but ledger entry left pending")
	}
	r.log.Info().Str("record_id", id).Str("plan", in.PlanName).Msg("free subscription activated")
	return r.res, nil
}

func (w *workflowUC) Reconcile(ctx context.Context, rec *model.PaymentRecord) error {
	if rec == nil {
		return domain.ErrInvalidArgument
	}
	if !rec.Status.NeedsReconciliation() {
		return fmt.Errorf("%w: status %s is not reconcilable", domain.ErrInvalidArgument, rec.Status)
	}
	l := w.log.With().Str("record_id", rec.ID).Str("status", string(rec.Status)).Logger()

	final := model.PaymentStatusFree
	switch rec.Status {
	case model.PaymentStatusPaidProfileUpdateFailed, model.PaymentStatusPaidGeneralError:
		final = model.PaymentStatusPaid
	case model.PaymentStatusPending:
		// pending entries are only written by the bypass path
		if !rec.IsFreeGrant() {
			return fmt.Errorf("%w: pending entry %s is not a free grant", domain.ErrInvalidArgument, rec.ID)
		}
		// the activation may have gone through with only the annotation lost
		if p, err := w.activation.Profile(ctx, rec.UserID); err == nil && grantApplied(p, rec) {
			l.Info().Msg("pending grant already applied, closing ledger entry")
			return w.ledger.Annotate(ctx, rec.ID, final, model.ErrorDetails{"reconciled_at": time.Now().UTC().Format(time.RFC3339)})
		}
	}

	if _, err := w.activation.Activate(ctx, rec.UserID, rec.Plan, time.Now()); err != nil {
		metrics.IncActivation("reconcile", "fail")
		w.recordReconcileFailure(ctx, &l, rec, err)
		return err
	}
	metrics.IncActivation("reconcile", "ok")
	if err := w.ledger.Annotate(ctx, rec.ID, final, model.ErrorDetails{"reconciled_at": time.Now().UTC().Format(time.RFC3339)}); err != nil {
		l.Error().Err(err).Msg("reconciled activation but ledger annotation failed")
		return err
	}
	l.Info().Str("final_status", string(final)).Msg("ledger entry reconciled")
	return nil
}

// recordReconcileFailure bumps the attempt counter on the entry, keeping its
// status. Once MaxReconcileAttempts is reached the entry is no longer listed
// for retry and operators are alerted.
func (w *workflowUC) recordReconcileFailure(ctx context.Context, l *zerolog.Logger, rec *model.PaymentRecord, cause error) {
	attempts := rec.ReconcileAttempts() + 1
	details := model.ErrorDetails{
		"reconcile_attempts":   attempts,
		"last_reconcile_error": cause.Error(),
		"last_reconcile_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.ledger.Annotate(ctx, rec.ID, rec.Status, details); err != nil {
		l.Error().Err(err).Msg("record reconcile attempt failed")
		return
	}
	if attempts < model.MaxReconcileAttempts {
		l.Warn().Err(cause).Int("attempts", attempts).Msg("reconciliation activation failed")
		return
	}
	l.Error().Err(cause).Int("attempts", attempts).Msg("reconciliation abandoned, manual action required")
	w.alert(rec, rec.Status, fmt.Errorf("reconciliation abandoned after %d attempts: %w", attempts, cause))
}

func grantApplied(p *model.Profile, rec *model.PaymentRecord) bool {
	return p.IsActive(time.Now()) && p.Plan == rec.Plan && !p.UpdatedAt.Before(rec.CreatedAt.Truncate(time.Second))
}

// lockPayment takes the in-flight guard for a gateway payment id. The unique
// ledger index still holds if the guard store is unavailable, so that case
// only logs.
func (w *workflowUC) lockPayment(ctx context.Context, r *run, paymentID string) (func(), error) {
	noop := func() {}
	if w.guard == nil {
		return noop, nil
	}
	token, err := w.guard.TryLock(ctx, paymentID, w.cfg.InFlightTTL)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateInFlight) {
			r.log.Warn().Msg("payment already in flight")
			return noop, err
		}
		r.log.Warn().Err(err).Msg("in-flight guard unavailable, relying on ledger uniqueness")
		return noop, nil
	}
	return func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := w.guard.Unlock(uctx, paymentID, token); err != nil {
			r.log.Warn().Err(err).Msg("release in-flight guard")
		}
	}, nil
}

func (w *workflowUC) allowFree(ctx context.Context, r *run, userID string) error {
	if w.limiter == nil || w.cfg.FreeRateLimit <= 0 {
		return nil
	}
	ok, err := w.limiter.Allow(ctx, "rate_limit:"+userID+":free_activation", w.cfg.FreeRateLimit, w.cfg.FreeRateWindow)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

// annotateFailure is best effort: the caller already reports the primary failure.
func (w *workflowUC) annotateFailure(ctx context.Context, r *run, id string, status model.PaymentStatus, reason string, cause error) {
	details := model.ErrorDetails{
		"failure_reason": reason,
		"error":          cause.Error(),
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	}
	if tid := logging.TraceID(ctx); tid != "" {
		details["trace_id"] = tid
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.ledger.Annotate(actx, id, status, details); err != nil {
		r.log.Error().Err(err).Str("record_id", id).Str("status", string(status)).Msg("ledger annotation failed")
	}
}

func (w *workflowUC) alert(rec *model.PaymentRecord, status model.PaymentStatus, cause error) {
	if w.notifier == nil || w.tasks == nil {
		return
	}
	a := adapter.Alert{
		RecordID: rec.ID,
		UserID:   rec.UserID,
		Plan:     rec.Plan,
		Status:   string(status),
		Reason:   cause.Error(),
	}
	err := w.tasks.Submit(func(ctx context.Context) error {
		if err := w.notifier.Notify(ctx, a); err != nil {
			metrics.IncAlert("error")
			return err
		}
		metrics.IncAlert("sent")
		return nil
	})
	if err != nil {
		metrics.IncAlert("dropped")
		w.log.Warn().Err(err).Str("record_id", rec.ID).Msg("alert dropped")
	}
}

func validateVerifyInput(in model.VerifyPaymentInput) error {
	var missing []string
	if strings.TrimSpace(in.OrderID) == "" {
		missing = append(missing, "orderId")
	}
	if strings.TrimSpace(in.PaymentID) == "" {
		missing = append(missing, "paymentId")
	}
	if strings.TrimSpace(in.Signature) == "" {
		missing = append(missing, "signature")
	}
	if strings.TrimSpace(in.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(in.PlanName) == "" {
		missing = append(missing, "planName")
	}
	if strings.TrimSpace(in.CurrencyPaid) == "" {
		missing = append(missing, "currencyPaid")
	}
	if len(missing) > 0 {
		return domain.Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if err := model.CheckLedgerAmount("amountPaid", in.AmountPaid); err != nil {
		return err
	}
	return nil
}

func validateFreeInput(in model.FreeActivationInput) error {
	var missing []string
	if strings.TrimSpace(in.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(in.PlanName) == "" {
		missing = append(missing, "planName")
	}
	if len(missing) > 0 {
		return domain.Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, domain.ErrDuplicateInFlight), errors.Is(err, domain.ErrDuplicatePayment):
		return "duplicate"
	case errors.Is(err, domain.ErrLedgerWriteFailed):
		return "ledger_failed"
	case errors.Is(err, domain.ErrStoreTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrProfileUpdateFailed):
		return "profile_update_failed"
	default:
		return "general"
	}
}
