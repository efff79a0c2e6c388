package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRecordRepository = (*paymentRecordRepo)(nil)

type paymentRecordRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPaymentRecordRepo(pool *pgxpool.Pool, timeout time.Duration) *paymentRecordRepo {
	return &paymentRecordRepo{pool: pool, timeout: timeout}
}

const paymentRecordColumns = `id, user_id, gateway_order_id, gateway_payment_id, gateway_signature, amount::text, currency, status, plan, error_details::text, created_at, updated_at`

func (r *paymentRecordRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	details, err := encodeDetails(rec.ErrorDetails)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO payment_records (
  id, user_id, gateway_order_id, gateway_payment_id, gateway_signature, amount, currency, status, plan, error_details, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10::jsonb, $11, $12
);`
	_, err = execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.UserID, rec.GatewayOrderID, rec.GatewayPaymentID, rec.GatewaySignature,
		rec.Amount.String(), rec.Currency, string(rec.Status), rec.Plan, details, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *paymentRecordRepo) Annotate(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, details model.ErrorDetails) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	enc, err := encodeDetails(details)
	if err != nil {
		return err
	}
	const q = `
UPDATE payment_records
   SET status = $2,
       error_details = CASE
         WHEN $3::jsonb IS NULL THEN error_details
         ELSE COALESCE(error_details, '{}'::jsonb) || $3::jsonb
       END,
       updated_at = NOW()
 WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status), enc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRecordRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	q := `SELECT ` + paymentRecordColumns + ` FROM payment_records WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPaymentRecord(ctx, row)
}

// FindByGatewayPaymentID returns the paid-family record for a gateway payment id.
func (r *paymentRecordRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.PaymentRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const q = `SELECT ` + paymentRecordColumns + `
  FROM payment_records
 WHERE gateway_payment_id = $1
   AND status IN ('paid', 'paid_db_profile_update_failed', 'paid_db_general_error')
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanPaymentRecord(ctx, row)
}

func (r *paymentRecordRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	// entries that used up their reconcile attempts are left for an operator
	const q = `SELECT ` + paymentRecordColumns + `
  FROM payment_records
 WHERE status = $1 AND updated_at < $2
   AND COALESCE((error_details->>'reconcile_attempts')::int, 0) < $4
 ORDER BY updated_at ASC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(status), olderThan, limit, model.MaxReconcileAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		rec, err := scanPaymentRecord(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(ctx, err)
	}
	return out, nil
}

func scanPaymentRecord(ctx context.Context, row pgx.Row) (*model.PaymentRecord, error) {
	rec := &model.PaymentRecord{}
	var (
		amount  string
		status  string
		details *string
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.GatewayOrderID, &rec.GatewayPaymentID, &rec.GatewaySignature,
		&amount, &rec.Currency, &status, &rec.Plan, &details, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, mapScanErr(ctx, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", domain.ErrReadDatabaseRow, amount)
	}
	rec.Amount = amt
	rec.Status = model.PaymentStatus(status)
	if details != nil {
		if err := json.Unmarshal([]byte(*details), &rec.ErrorDetails); err != nil {
			return nil, fmt.Errorf("%w: error_details: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return rec, nil
}

// encodeDetails returns nil for an empty payload so the column stays NULL.
func encodeDetails(d model.ErrorDetails) (*string, error) {
	if len(d) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: encode error details: %v", domain.ErrInvalidArgument, err)
	}
	s := string(b)
	return &s, nil
}
