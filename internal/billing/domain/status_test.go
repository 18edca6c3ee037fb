package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDeriveBucketBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		dueAt time.Time
		want  Bucket
	}{
		{"well in the future", now.AddDate(0, 0, 30), BucketActive},
		{"just outside the due-soon window", now.Add(16 * 24 * time.Hour), BucketActive},
		{"exactly fifteen days out", now.Add(15 * 24 * time.Hour), BucketDue},
		{"one hour before due", now.Add(time.Hour), BucketDue},
		{"due this instant", now, BucketOverdue},
		{"five days late", now.Add(-5 * 24 * time.Hour), BucketOverdue},
		{"last day of grace", now.Add(-10 * 24 * time.Hour), BucketOverdue},
		{"just past grace", now.Add(-10*24*time.Hour - time.Hour), BucketOverdue},
		{"eleven days late", now.Add(-11 * 24 * time.Hour), BucketLapsed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveBucket(tc.dueAt, now))
		})
	}
}

func TestDeriveBucketPartialDaysRoundUp(t *testing.T) {
	// 15 days and one second is still 16 days away.
	assert.Equal(t, BucketActive, DeriveBucket(now.Add(15*24*time.Hour+time.Second), now))
	// One second in the future rounds up to one day.
	assert.Equal(t, BucketDue, DeriveBucket(now.Add(time.Second), now))
}

func TestDeriveSubscriptionStatus(t *testing.T) {
	assert.Equal(t, SubscriptionStatusActive, DeriveSubscriptionStatus(now.AddDate(0, 1, 0), now, nil))
	assert.Equal(t, SubscriptionStatusDue, DeriveSubscriptionStatus(now.AddDate(0, 0, 7), now, nil))
	assert.Equal(t, SubscriptionStatusOverdue, DeriveSubscriptionStatus(now.AddDate(0, 0, -3), now, nil))
	assert.Equal(t, SubscriptionStatusSuspended, DeriveSubscriptionStatus(now.AddDate(0, 0, -20), now, nil))
}

func TestDeriveSubscriptionStatusSuspensionIsSticky(t *testing.T) {
	suspendedAt := now.AddDate(0, 0, -1)

	// Even a far-future due date does not clear a recorded suspension.
	got := DeriveSubscriptionStatus(now.AddDate(0, 6, 0), now, &suspendedAt)
	assert.Equal(t, SubscriptionStatusSuspended, got)
}

func TestDeriveLeaseStatus(t *testing.T) {
	assert.Equal(t, LeaseStatusActive, DeriveLeaseStatus(now.AddDate(0, 1, 0), now, nil))
	assert.Equal(t, LeaseStatusPending, DeriveLeaseStatus(now.AddDate(0, 0, 7), now, nil))
	assert.Equal(t, LeaseStatusOverdue, DeriveLeaseStatus(now.AddDate(0, 0, -3), now, nil))
	assert.Equal(t, LeaseStatusTerminated, DeriveLeaseStatus(now.AddDate(0, 0, -20), now, nil))
}

func TestDeriveLeaseStatusTerminationIsSticky(t *testing.T) {
	terminatedAt := now.AddDate(0, 0, -1)

	got := DeriveLeaseStatus(now.AddDate(0, 6, 0), now, &terminatedAt)
	assert.Equal(t, LeaseStatusTerminated, got)
}
