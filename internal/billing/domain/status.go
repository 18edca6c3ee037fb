// Package domain holds the shared obligation lifecycle rules: a payment
// obligation's status is a projection of its due date against the current
// time, bucketed identically for owner subscriptions and tenant leases.
package domain

import "time"

// Lifecycle windows, in days.
const (
	// DueSoonWindowDays is how long before the due date an obligation is
	// surfaced as payable.
	DueSoonWindowDays = 15
	// GracePeriodDays is how long past the due date an obligation stays
	// in the overdue bucket before it lapses.
	GracePeriodDays = 10
)

// SuspensionReasonOverdue is recorded when the sweep lapses an obligation.
const SuspensionReasonOverdue = "payment overdue"

// Bucket is the time-derived lifecycle position shared by both obligation
// types; each side maps buckets onto its own status label set.
type Bucket int

const (
	BucketActive Bucket = iota
	BucketDue
	BucketOverdue
	BucketLapsed
)

// DeriveBucket projects a due date onto a lifecycle bucket. It is a pure
// function of its inputs; callers decide whether a lapsed bucket may be
// committed as a sticky suspended/terminated state.
func DeriveBucket(dueAt, now time.Time) Bucket {
	daysUntilDue := ceilDays(dueAt.Sub(now))
	switch {
	case daysUntilDue > DueSoonWindowDays:
		return BucketActive
	case daysUntilDue > 0:
		return BucketDue
	case daysUntilDue >= -GracePeriodDays:
		return BucketOverdue
	default:
		return BucketLapsed
	}
}

func ceilDays(d time.Duration) int {
	const day = 24 * time.Hour
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}

// SubscriptionStatus is the lifecycle label set for listing service charges.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusDue       SubscriptionStatus = "due"
	SubscriptionStatusOverdue   SubscriptionStatus = "overdue"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

// LeaseStatus is the lifecycle label set for tenant rent obligations.
type LeaseStatus string

const (
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusPending    LeaseStatus = "pending"
	LeaseStatusOverdue    LeaseStatus = "overdue"
	LeaseStatusTerminated LeaseStatus = "terminated"
)

// DeriveSubscriptionStatus recomputes the projected status for a listing
// subscription. A recorded suspension is sticky: it wins over any
// recomputed candidate until a payment clears it.
func DeriveSubscriptionStatus(dueAt, now time.Time, suspendedAt *time.Time) SubscriptionStatus {
	if suspendedAt != nil {
		return SubscriptionStatusSuspended
	}
	switch DeriveBucket(dueAt, now) {
	case BucketActive:
		return SubscriptionStatusActive
	case BucketDue:
		return SubscriptionStatusDue
	case BucketOverdue:
		return SubscriptionStatusOverdue
	default:
		return SubscriptionStatusSuspended
	}
}

// DeriveLeaseStatus recomputes the projected status for a lease. A recorded
// termination is sticky until a payment clears it.
func DeriveLeaseStatus(dueAt, now time.Time, terminatedAt *time.Time) LeaseStatus {
	if terminatedAt != nil {
		return LeaseStatusTerminated
	}
	switch DeriveBucket(dueAt, now) {
	case BucketActive:
		return LeaseStatusActive
	case BucketDue:
		return LeaseStatusPending
	case BucketOverdue:
		return LeaseStatusOverdue
	default:
		return LeaseStatusTerminated
	}
}
