// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// Alert is an operations notification about a ledger entry that needs follow-up.
type Alert struct {
	RecordID string
	UserID   string
	Plan     string
	Status   string
	Reason   string
}

// AlertNotifier delivers operations alerts (reconciliation signals).
type AlertNotifier interface {
	Notify(ctx context.Context, alert Alert) error
}
