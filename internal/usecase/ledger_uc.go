// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/repository"
	"petcare-billing/internal/infra/metrics"
)

var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase appends one record per activation attempt. Existing records are
// only touched to move them to a terminal status and attach error context.
type LedgerUseCase interface {
	// Record inserts rec and returns its generated id. A paid-family duplicate
	// returns domain.ErrAlreadyExists; any other failure wraps domain.ErrLedgerWriteFailed.
	Record(ctx context.Context, rec *model.PaymentRecord) (string, error)
	Annotate(ctx context.Context, id string, status model.PaymentStatus, details model.ErrorDetails) error
	Get(ctx context.Context, id string) (*model.PaymentRecord, error)
	FindPaid(ctx context.Context, gatewayPaymentID string) (*model.PaymentRecord, error)
	ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)
}

type ledgerUC struct {
	records repository.PaymentRecordRepository
	log     *zerolog.Logger
}

func NewLedgerUseCase(records repository.PaymentRecordRepository, logger *zerolog.Logger) *ledgerUC {
	l := logger.With().Str("component", "ledger_uc").Logger()
	return &ledgerUC{records: records, log: &l}
}

func (u *ledgerUC) Record(ctx context.Context, rec *model.PaymentRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: nil record", domain.ErrLedgerWriteFailed)
	}
	err := u.records.Insert(ctx, repository.NoTX, rec)
	metrics.IncLedgerWrite(string(rec.Status), err == nil)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return "", domain.ErrAlreadyExists
		}
		u.log.Error().Err(err).
			Str("user_id", rec.UserID).
			Str("status", string(rec.Status)).
			Msg("ledger insert failed")
		return "", fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}
	u.log.Debug().Str("record_id", rec.ID).Str("status", string(rec.Status)).Msg("ledger entry recorded")
	return rec.ID, nil
}

func (u *ledgerUC) Annotate(ctx context.Context, id string, status model.PaymentStatus, details model.ErrorDetails) error {
	if id == "" {
		return domain.ErrInvalidArgument
	}
	err := u.records.Annotate(ctx, repository.NoTX, id, status, details)
	metrics.IncLedgerWrite(string(status), err == nil)
	if err != nil {
		return fmt.Errorf("%w: annotate %s: %w", domain.ErrLedgerWriteFailed, id, err)
	}
	return nil
}

func (u *ledgerUC) Get(ctx context.Context, id string) (*model.PaymentRecord, error) {
	return u.records.FindByID(ctx, repository.NoTX, id)
}

func (u *ledgerUC) FindPaid(ctx context.Context, gatewayPaymentID string) (*model.PaymentRecord, error) {
	return u.records.FindByGatewayPaymentID(ctx, repository.NoTX, gatewayPaymentID)
}

func (u *ledgerUC) ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	return u.records.ListByStatus(ctx, repository.NoTX, status, olderThan, limit)
}
