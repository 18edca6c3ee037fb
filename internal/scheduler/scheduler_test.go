package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type stubBilling struct {
	billingdomain.Service

	listingRuns int
	leaseRuns   int
	listingErr  error
	leaseErr    error
	lastBatch   int
}

func (s *stubBilling) ReconcileListings(_ context.Context, batchSize int) (billingdomain.ReconcileResult, error) {
	s.listingRuns++
	s.lastBatch = batchSize
	return billingdomain.ReconcileResult{Scanned: 2, Transitions: map[string]int{"overdue": 1}}, s.listingErr
}

func (s *stubBilling) ReconcileLeases(_ context.Context, batchSize int) (billingdomain.ReconcileResult, error) {
	s.leaseRuns++
	return billingdomain.ReconcileResult{}, s.leaseErr
}

func newTestScheduler(t *testing.T, billing billingdomain.Service) *Scheduler {
	t.Helper()
	sched, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		BillingSvc: billing,
		Config: Config{
			RunInterval:      time.Minute,
			ListingBatchSize: 25,
			LeaseBatchSize:   25,
			JobTimeout:       time.Second,
			LockTTL:          time.Minute,
		},
	})
	require.NoError(t, err)
	return sched
}

func TestRunOnceSweepsBothObligationTypes(t *testing.T) {
	billing := &stubBilling{}
	sched := newTestScheduler(t, billing)

	require.NoError(t, sched.RunOnce(context.Background()))

	assert.Equal(t, 1, billing.listingRuns)
	assert.Equal(t, 1, billing.leaseRuns)
	assert.Equal(t, 25, billing.lastBatch)
}

func TestRunOnceContinuesPastListingFailure(t *testing.T) {
	billing := &stubBilling{listingErr: errors.New("boom")}
	sched := newTestScheduler(t, billing)

	err := sched.RunOnce(context.Background())
	require.Error(t, err)

	// The lease pass still runs even when the listing pass fails.
	assert.Equal(t, 1, billing.leaseRuns)
}

func TestRunOnceSwallowsTimeouts(t *testing.T) {
	billing := &stubBilling{listingErr: context.DeadlineExceeded}
	sched := newTestScheduler(t, billing)

	// A deadline is a soft failure; the next tick resumes the batch.
	assert.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 1, billing.leaseRuns)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, 500, cfg.ListingBatchSize)
	assert.Equal(t, 500, cfg.LeaseBatchSize)
	assert.NotZero(t, cfg.RunInterval)
	assert.NotZero(t, cfg.JobTimeout)
	assert.NotZero(t, cfg.LockTTL)
}
