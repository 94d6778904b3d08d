package models

import "time"

const (
	PlanBasic      = "basic"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

const (
	BillingCycleWeekly  = "weekly"
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// SubscriptionStatus defines the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
)

// TempSubscriptionIDPrefix marks locally generated subscription ids that
// have not been acknowledged by the marketplace yet.
const TempSubscriptionIDPrefix = "tmp-sub-"

// MetadataKeyReference holds the opaque payment correlation token inside
// Subscription.Metadata.
const MetadataKeyReference = "reference"

// Subscription mirrors the carrier's marketplace subscription. Metadata
// carries provider-side correlation data such as the payment reference or
// an upgrade_from marker.
type Subscription struct {
	ID               string             `json:"id"`
	Plan             string             `json:"plan"`
	BillingCycle     string             `json:"billing_cycle"`
	Status           SubscriptionStatus `json:"status"`
	Amount           string             `json:"amount"`
	Currency         string             `json:"currency"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// Reference returns the payment correlation token, if any.
func (s *Subscription) Reference() string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[MetadataKeyReference]
}

// SubscriptionStatusRank orders subscription statuses for the monotonic
// transition guard: pending_payment < active < cancelled.
func SubscriptionStatusRank(s SubscriptionStatus) int {
	switch s {
	case SubscriptionStatusPendingPayment:
		return 1
	case SubscriptionStatusActive:
		return 2
	case SubscriptionStatusCancelled:
		return 3
	default:
		return 0
	}
}

// ValidPlan reports whether plan is a known marketplace plan.
func ValidPlan(plan string) bool {
	switch plan {
	case PlanBasic, PlanPremium, PlanEnterprise:
		return true
	}
	return false
}

// ValidBillingCycle reports whether cycle is a known billing cycle.
func ValidBillingCycle(cycle string) bool {
	switch cycle {
	case BillingCycleWeekly, BillingCycleMonthly, BillingCycleYearly:
		return true
	}
	return false
}
