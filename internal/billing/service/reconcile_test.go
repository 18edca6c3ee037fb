package service

import (
	"context"
	"testing"
	"time"

	"github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileListingsMarksOverdue(t *testing.T) {
	f := setupBilling(t)
	dueAt := f.clock.now.AddDate(0, 0, -5)
	listing := f.seedListing(t, dueAt)

	// Seeded status reflects an earlier clock reading.
	listing.Obligation.Status = domain.SubscriptionStatusActive
	require.NoError(t, f.db.Save(listing).Error)

	result, err := f.svc.ReconcileListings(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Transitions[string(domain.SubscriptionStatusOverdue)])

	reloaded, err := f.listings.FindByID(context.Background(), f.db, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, domain.SubscriptionStatusOverdue, reloaded.Obligation.Status)
	require.NotNil(t, reloaded.Obligation.GracePeriodEndsAt)
	assert.WithinDuration(t, dueAt.AddDate(0, 0, domain.GracePeriodDays), *reloaded.Obligation.GracePeriodEndsAt, time.Second)
	assert.True(t, reloaded.Active)
}

func TestReconcileListingsSuspendsLapsed(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, -20))
	listing.Obligation.Status = domain.SubscriptionStatusOverdue
	require.NoError(t, f.db.Save(listing).Error)

	result, err := f.svc.ReconcileListings(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Transitions[string(domain.SubscriptionStatusSuspended)])

	reloaded, err := f.listings.FindByID(context.Background(), f.db, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, domain.SubscriptionStatusSuspended, reloaded.Obligation.Status)
	require.NotNil(t, reloaded.Obligation.SuspendedAt)
	assert.WithinDuration(t, f.clock.now, *reloaded.Obligation.SuspendedAt, time.Second)
	require.NotNil(t, reloaded.Obligation.SuspensionReason)
	assert.Equal(t, domain.SuspensionReasonOverdue, *reloaded.Obligation.SuspensionReason)
	// A suspended listing is hidden from search.
	assert.False(t, reloaded.Active)
}

func TestReconcileListingsIsIdempotent(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, -5))
	listing.Obligation.Status = domain.SubscriptionStatusActive
	require.NoError(t, f.db.Save(listing).Error)

	_, err := f.svc.ReconcileListings(context.Background(), 0)
	require.NoError(t, err)

	first, err := f.listings.FindByID(context.Background(), f.db, listing.ID)
	require.NoError(t, err)

	// A second pass over the same state records no transitions and does not
	// move the grace deadline.
	result, err := f.svc.ReconcileListings(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, result.Transitions)

	second, err := f.listings.FindByID(context.Background(), f.db, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, second.Obligation.GracePeriodEndsAt)
	assert.Equal(t, first.Obligation.GracePeriodEndsAt.Unix(), second.Obligation.GracePeriodEndsAt.Unix())
}

func TestReconcileListingsSkipsFarFutureDueDates(t *testing.T) {
	f := setupBilling(t)
	f.seedListing(t, f.clock.now.AddDate(0, 0, 30))

	result, err := f.svc.ReconcileListings(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Scanned)
	assert.Empty(t, result.Transitions)
}

func TestReconcileListingsMarksDueSoon(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 10))
	listing.Obligation.Status = domain.SubscriptionStatusActive
	require.NoError(t, f.db.Save(listing).Error)

	result, err := f.svc.ReconcileListings(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Transitions[string(domain.SubscriptionStatusDue)])
}

func TestReconcileLeasesTerminatesLapsed(t *testing.T) {
	f := setupBilling(t)
	lease := f.seedLease(t, f.clock.now.AddDate(0, 0, -12))
	lease.Obligation.Status = domain.LeaseStatusOverdue
	require.NoError(t, f.db.Save(lease).Error)

	result, err := f.svc.ReconcileLeases(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Transitions[string(domain.LeaseStatusTerminated)])

	reloaded, err := f.leases.FindByID(context.Background(), f.db, lease.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, domain.LeaseStatusTerminated, reloaded.Obligation.Status)
	require.NotNil(t, reloaded.Obligation.TerminatedAt)
	require.NotNil(t, reloaded.Obligation.TerminationReason)
}

func TestReconcileThenPaymentClearsSuspension(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, -20))
	listing.Obligation.Status = domain.SubscriptionStatusOverdue
	require.NoError(t, f.db.Save(listing).Error)

	_, err := f.svc.ReconcileListings(context.Background(), 0)
	require.NoError(t, err)

	view, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 1))
	require.NoError(t, err)

	assert.Equal(t, string(domain.SubscriptionStatusActive), view.Status)
	assert.Nil(t, view.SuspendedAt)

	reloaded, err := f.listings.FindByID(context.Background(), f.db, listing.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Active)
}
