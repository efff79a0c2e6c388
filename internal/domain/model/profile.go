package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
)

// Profile is the per-user row holding subscription state. It is created by the
// registration trigger outside this service and only mutated by activation.
type Profile struct {
	ID                 string             `json:"id"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	Plan               string             `json:"plan,omitempty"`
	SubscriptionEndsAt *time.Time         `json:"subscription_ends_at,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (p *Profile) IsZero() bool { return p == nil || p.ID == "" }

// IsActive reports whether the profile has an unexpired active subscription at t.
func (p *Profile) IsActive(t time.Time) bool {
	if p.IsZero() || p.SubscriptionStatus != SubscriptionStatusActive || p.SubscriptionEndsAt == nil {
		return false
	}
	return p.SubscriptionEndsAt.After(t)
}

// ProfileActivation is the write applied to a profile when a subscription is granted.
// ExpectedUpdatedAt is the version read before the write; the store only applies
// the update when the row still carries it.
type ProfileActivation struct {
	UserID            string
	Plan              string
	EndsAt            time.Time
	UpdatedAt         time.Time
	ExpectedUpdatedAt time.Time
}
