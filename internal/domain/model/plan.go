package model

import (
	"strings"
	"time"
)

// PlanPeriod is the billing period derived from a plan name.
type PlanPeriod string

const (
	PlanPeriodMonthly PlanPeriod = "monthly"
	PlanPeriodAnnual  PlanPeriod = "annual"
	PlanPeriodDaily   PlanPeriod = "daily"
)

// PeriodForPlan matches the plan name case-insensitively. Names that mention
// neither "monthly" nor "annual" fall back to a one-day period; this is a
// permissive default and never rejects a plan name.
func PeriodForPlan(planName string) PlanPeriod {
	n := strings.ToLower(planName)
	switch {
	case strings.Contains(n, "monthly"):
		return PlanPeriodMonthly
	case strings.Contains(n, "annual"):
		return PlanPeriodAnnual
	default:
		return PlanPeriodDaily
	}
}

// SubscriptionExpiry returns the expiry for a plan activated at effective.
// Months and years are calendar periods with time.AddDate normalisation.
func SubscriptionExpiry(planName string, effective time.Time) time.Time {
	switch PeriodForPlan(planName) {
	case PlanPeriodMonthly:
		return effective.AddDate(0, 1, 0)
	case PlanPeriodAnnual:
		return effective.AddDate(1, 0, 0)
	default:
		return effective.AddDate(0, 0, 1)
	}
}
