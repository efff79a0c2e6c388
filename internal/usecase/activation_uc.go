// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/model"
	"petcare-billing/internal/domain/ports/repository"
)

var _ ActivationUseCase = (*activationUC)(nil)

type ActivationUseCase interface {
	// Activate sets the profile active on planName with an expiry derived from effective.
	// Store failures, a missing profile and a lost version race all wrap
	// domain.ErrProfileUpdateFailed.
	Activate(ctx context.Context, userID, planName string, effective time.Time) (*model.Profile, error)
	Profile(ctx context.Context, userID string) (*model.Profile, error)
}

type activationUC struct {
	profiles repository.ProfileRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewActivationUseCase(profiles repository.ProfileRepository, tm repository.TransactionManager, logger *zerolog.Logger) *activationUC {
	l := logger.With().Str("component", "activation_uc").Logger()
	return &activationUC{profiles: profiles, tm: tm, log: &l, now: time.Now}
}

func (u *activationUC) Activate(ctx context.Context, userID, planName string, effective time.Time) (*model.Profile, error) {
	if userID == "" || planName == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := u.now().UTC().Truncate(time.Microsecond)
	if effective.IsZero() {
		effective = now
	}
	endsAt := model.SubscriptionExpiry(planName, effective).UTC()
	if !endsAt.After(now) {
		return nil, fmt.Errorf("%w: expiry %s is not in the future", domain.ErrInvalidArgument, endsAt.Format(time.RFC3339))
	}

	var out *model.Profile
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		current, err := u.profiles.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		// updated_at is the row version; make sure the new one differs.
		updatedAt := now
		if !updatedAt.After(current.UpdatedAt) {
			updatedAt = current.UpdatedAt.Add(time.Microsecond)
		}
		n, err := u.profiles.Activate(ctx, tx, model.ProfileActivation{
			UserID:            userID,
			Plan:              planName,
			EndsAt:            endsAt,
			UpdatedAt:         updatedAt,
			ExpectedUpdatedAt: current.UpdatedAt,
		})
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("%w: %d rows affected", domain.ErrProfileUpdateFailed, n)
		}
		out = &model.Profile{
			ID:                 userID,
			SubscriptionStatus: model.SubscriptionStatusActive,
			Plan:               planName,
			SubscriptionEndsAt: &endsAt,
			UpdatedAt:          updatedAt,
		}
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("user_id", userID).Str("plan", planName).Msg("profile activation failed")
		return nil, classifyActivationErr(err)
	}

	u.log.Info().
		Str("user_id", userID).
		Str("plan", planName).
		Time("ends_at", endsAt).
		Msg("subscription activated")
	return out, nil
}

func (u *activationUC) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	return u.profiles.FindByID(ctx, repository.NoTX, userID)
}

func classifyActivationErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrProfileUpdateFailed):
		return err
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%w: profile not found", domain.ErrProfileUpdateFailed)
	case errors.Is(err, domain.ErrStoreTimeout),
		errors.Is(err, domain.ErrOperationFailed),
		errors.Is(err, domain.ErrReadDatabaseRow),
		errors.Is(err, domain.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", domain.ErrProfileUpdateFailed, err)
	default:
		return err
	}
}
