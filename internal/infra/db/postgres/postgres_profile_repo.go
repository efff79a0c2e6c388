package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*profileRepo)(nil)

type profileRepo struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewProfileRepo(pool *pgxpool.Pool, timeout time.Duration) *profileRepo {
	return &profileRepo{pool: pool, timeout: timeout}
}

// FindByID locks the row (FOR UPDATE) when called inside a transaction.
func (r *profileRepo) FindByID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	q := `SELECT id, subscription_status, COALESCE(plan, ''), subscription_ends_at, updated_at FROM profiles WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	p := &model.Profile{}
	var status string
	if err := row.Scan(&p.ID, &status, &p.Plan, &p.SubscriptionEndsAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr(ctx, err)
	}
	p.SubscriptionStatus = model.SubscriptionStatus(status)
	return p, nil
}

func (r *profileRepo) Activate(ctx context.Context, tx repository.Tx, a model.ProfileActivation) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const q = `
UPDATE profiles
   SET subscription_status = 'active',
       plan = $2,
       subscription_ends_at = $3,
       updated_at = $4
 WHERE id = $1
   AND updated_at = $5;`
	tag, err := execSQL(ctx, r.pool, tx, q, a.UserID, a.Plan, a.EndsAt, a.UpdatedAt, a.ExpectedUpdatedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
