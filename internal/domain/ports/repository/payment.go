package repository

import (
	"context"
	"time"

	"petcare-billing/internal/domain/model"
)

// -----------------------------
// Payment ledger
// -----------------------------

// PaymentRecordRepository is append-only apart from Annotate.
type PaymentRecordRepository interface {
	// Insert stores a new record and sets r.ID. A second paid-family record for the
	// same gateway payment id returns domain.ErrAlreadyExists.
	Insert(ctx context.Context, tx Tx, r *model.PaymentRecord) error
	// Annotate moves a record to status and merges details into its error payload.
	Annotate(ctx context.Context, tx Tx, id string, status model.PaymentStatus, details model.ErrorDetails) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRecord, error)
	FindByGatewayPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.PaymentRecord, error)
	ListByStatus(ctx context.Context, tx Tx, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)
}
