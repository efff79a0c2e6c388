package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/infra/metrics"
	"petcare-billing/internal/usecase"
)

// PaymentReconciler periodically retries ledger entries where money or a grant
// was recorded but the profile was not activated, and closes pending free grants
// that were left behind by a crash or a lost annotation.
type PaymentReconciler struct {
	workflow   usecase.WorkflowUseCase
	ledger     usecase.LedgerUseCase
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending entry must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(workflow usecase.WorkflowUseCase, ledger usecase.LedgerUseCase, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{workflow: workflow, ledger: ledger, interval: interval, staleAfter: staleAfter, batch: 100, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass and returns the number of entries closed.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	now := time.Now()
	closed := 0
	for _, status := range model.ReconcilableStatuses {
		olderThan := now
		if status == model.PaymentStatusPending {
			olderThan = now.Add(-w.staleAfter)
		}
		recs, err := w.ledger.ListStale(ctx, status, olderThan, w.batch)
		if err != nil {
			w.log.Error().Err(err).Str("status", string(status)).Msg("list ledger entries failed")
			continue
		}
		for _, rec := range recs {
			if ctx.Err() != nil {
				return closed
			}
			if rec.ReconcileAttempts() >= model.MaxReconcileAttempts {
				continue
			}
			if err := w.workflow.Reconcile(ctx, rec); err != nil {
				metrics.IncReconciled("error")
				w.log.Warn().Err(err).Str("record_id", rec.ID).Str("status", string(rec.Status)).Msg("reconcile failed")
				continue
			}
			metrics.IncReconciled("ok")
			closed++
		}
	}
	if closed > 0 {
		w.log.Info().Int("count", closed).Msg("ledger entries reconciled")
	}
	return closed
}
