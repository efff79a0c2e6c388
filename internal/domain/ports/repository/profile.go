package repository

import (
	"context"

	"petcare-billing/internal/domain/model"
)

// ProfileRepository is the port for user profiles. Rows are never created or
// deleted here.
type ProfileRepository interface {
	FindByID(ctx context.Context, tx Tx, userID string) (*model.Profile, error)
	// Activate applies the write only if the row still carries a.ExpectedUpdatedAt.
	// It returns the number of rows affected.
	Activate(ctx context.Context, tx Tx, a model.ProfileActivation) (int64, error)
}
