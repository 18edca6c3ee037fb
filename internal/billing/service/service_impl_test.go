package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/config"
	gatewaydomain "github.com/stayloop/stayloop/internal/gateway/domain"
	leasedomain "github.com/stayloop/stayloop/internal/lease/domain"
	leaserepo "github.com/stayloop/stayloop/internal/lease/repository"
	listingdomain "github.com/stayloop/stayloop/internal/listing/domain"
	listingrepo "github.com/stayloop/stayloop/internal/listing/repository"
	pricingservice "github.com/stayloop/stayloop/internal/pricing/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type stubGateway struct {
	order     gatewaydomain.Order
	orderErr  error
	lastOrder gatewaydomain.CreateOrderRequest
	payment   gatewaydomain.Payment
	fetchErr  error
	verifyErr error
}

func (g *stubGateway) CreateOrder(_ context.Context, req gatewaydomain.CreateOrderRequest) (gatewaydomain.Order, error) {
	g.lastOrder = req
	if g.orderErr != nil {
		return gatewaydomain.Order{}, g.orderErr
	}
	return g.order, nil
}

func (g *stubGateway) FetchPayment(_ context.Context, paymentID string) (gatewaydomain.Payment, error) {
	if g.fetchErr != nil {
		return gatewaydomain.Payment{}, g.fetchErr
	}
	payment := g.payment
	if payment.ID == "" {
		payment.ID = paymentID
	}
	if payment.Status == "" {
		payment.Status = gatewaydomain.PaymentStatusCaptured
	}
	return payment, nil
}

func (g *stubGateway) VerifySignature(_, _, _ string) error { return g.verifyErr }

type billingFixture struct {
	svc      domain.Service
	db       *gorm.DB
	clock    *fakeClock
	gateway  *stubGateway
	node     *snowflake.Node
	listings listingdomain.Repository
	leases   leasedomain.Repository
}

func setupBilling(t *testing.T) *billingFixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&listingdomain.Listing{},
		&listingdomain.ServiceEntry{},
		&leasedomain.Lease{},
		&leasedomain.RentEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	gw := &stubGateway{order: gatewaydomain.Order{ID: "order_test", Status: "created"}}
	pricing := pricingservice.NewService(pricingservice.Params{
		Log:    zap.NewNop(),
		Policy: config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
	})

	listings := listingrepo.Provide()
	leases := leaserepo.Provide()

	svc := New(Params{
		DB:       gdb,
		Log:      zap.NewNop(),
		Clock:    clk,
		GenID:    node,
		Pricing:  pricing,
		Gateway:  gw,
		Listings: listings,
		Leases:   leases,
	})

	return &billingFixture{
		svc:      svc,
		db:       gdb,
		clock:    clk,
		gateway:  gw,
		node:     node,
		listings: listings,
		leases:   leases,
	}
}

func (f *billingFixture) seedListing(t *testing.T, dueAt time.Time) *listingdomain.Listing {
	t.Helper()

	now := f.clock.now
	id := f.node.Generate()
	listing := &listingdomain.Listing{
		ID:       id,
		OwnerID:  f.node.Generate(),
		Slug:     "test-listing-" + id.String(),
		Title:    "Test Listing",
		UnitType: "apartment",
		Active:   true,
		Obligation: listingdomain.ServiceObligation{
			RatePerPeriod: 20000,
			DueAt:         dueAt,
			Status:        domain.DeriveSubscriptionStatus(dueAt, now, nil),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(listing).Error)
	return listing
}

func (f *billingFixture) seedLease(t *testing.T, dueAt time.Time) *leasedomain.Lease {
	t.Helper()

	now := f.clock.now
	lease := &leasedomain.Lease{
		ID:        f.node.Generate(),
		ListingID: f.node.Generate(),
		TenantID:  f.node.Generate(),
		StartAt:   now,
		Obligation: leasedomain.RentObligation{
			RatePerPeriod: 20000,
			DueAt:         dueAt,
			Status:        domain.DeriveLeaseStatus(dueAt, now, nil),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(lease).Error)
	return lease
}

func applyRequest(resourceID, paymentID string, periods int) domain.ApplyPaymentRequest {
	return domain.ApplyPaymentRequest{
		ResourceID:        resourceID,
		Amount:            52200,
		PeriodsCovered:    periods,
		ExternalPaymentID: paymentID,
		ExternalOrderID:   "order_test",
		Signature:         "sig",
	}
}

func TestCreateListingOrder(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 20))

	resp, err := f.svc.CreateListingOrder(context.Background(), domain.CreateOrderRequest{
		ResourceID: listing.ID.String(),
		Periods:    3,
	})
	require.NoError(t, err)

	assert.Equal(t, "order_test", resp.OrderID)
	assert.True(t, len(resp.Receipt) > 4 && resp.Receipt[:4] == "svc_")
	assert.Equal(t, int64(52200), resp.Breakdown.FinalAmount)
	// The gateway is charged in minor units.
	assert.Equal(t, int64(5220000), f.gateway.lastOrder.Amount)
	assert.Equal(t, "subscription", f.gateway.lastOrder.Notes["obligation_type"])
}

func TestCreateLeaseOrderIncludesConvenienceFee(t *testing.T) {
	f := setupBilling(t)
	lease := f.seedLease(t, f.clock.now.AddDate(0, 0, 20))

	resp, err := f.svc.CreateLeaseOrder(context.Background(), domain.CreateOrderRequest{
		ResourceID: lease.ID.String(),
		Periods:    3,
	})
	require.NoError(t, err)

	assert.True(t, len(resp.Receipt) > 5 && resp.Receipt[:5] == "rent_")
	assert.Equal(t, int64(58539), resp.Breakdown.FinalAmount)
	assert.Equal(t, int64(1539), resp.Breakdown.ConvenienceFee)
}

func TestCreateOrderUnknownObligation(t *testing.T) {
	f := setupBilling(t)

	_, err := f.svc.CreateListingOrder(context.Background(), domain.CreateOrderRequest{
		ResourceID: f.node.Generate().String(),
		Periods:    1,
	})
	assert.ErrorIs(t, err, domain.ErrObligationNotFound)

	_, err = f.svc.CreateListingOrder(context.Background(), domain.CreateOrderRequest{
		ResourceID: "not-a-snowflake",
		Periods:    1,
	})
	assert.ErrorIs(t, err, domain.ErrObligationNotFound)
}

func TestApplyListingPaymentExtendsFromDueDateWhenEarly(t *testing.T) {
	f := setupBilling(t)
	dueAt := f.clock.now.AddDate(0, 0, 20)
	listing := f.seedListing(t, dueAt)

	view, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 1))
	require.NoError(t, err)

	// Paying early extends from the due date, not from today.
	assert.WithinDuration(t, dueAt.AddDate(0, 1, 0), view.DueAt, time.Second)
	assert.Equal(t, string(domain.SubscriptionStatusActive), view.Status)
	assert.Equal(t, int64(52200), view.TotalPaid)
	assert.Equal(t, 1, view.EntryCount)
	require.NotNil(t, view.LastPaymentAt)
}

func TestApplyListingPaymentExtendsFromNowWhenLate(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, -5))

	view, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 3))
	require.NoError(t, err)

	// A late payment buys time from now; the overdue gap is not owed twice.
	assert.WithinDuration(t, f.clock.now.AddDate(0, 3, 0), view.DueAt, time.Second)
	assert.Equal(t, string(domain.SubscriptionStatusActive), view.Status)
}

func TestApplyLeasePaymentExtendsFromRecordedDueDate(t *testing.T) {
	f := setupBilling(t)
	dueAt := f.clock.now.AddDate(0, 0, -5)
	lease := f.seedLease(t, dueAt)

	view, err := f.svc.ApplyLeasePayment(context.Background(), applyRequest(lease.ID.String(), "pay_1", 1))
	require.NoError(t, err)

	// Rent is owed for the period whether paid early or late; the schedule
	// extends from the recorded due date even when that date has passed.
	assert.WithinDuration(t, dueAt.AddDate(0, 1, 0), view.DueAt, time.Second)
}

func TestApplyPaymentDuplicateIsNoop(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 20))

	first, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 1))
	require.NoError(t, err)

	second, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 1))
	require.NoError(t, err)

	assert.Equal(t, first.DueAt, second.DueAt)
	assert.Equal(t, 1, second.EntryCount)
	assert.Equal(t, int64(52200), second.TotalPaid)
}

func TestApplyPaymentReactivatesSuspendedListing(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, -20))

	suspendedAt := f.clock.now.AddDate(0, 0, -9)
	reason := domain.SuspensionReasonOverdue
	listing.Active = false
	listing.Obligation.Status = domain.SubscriptionStatusSuspended
	listing.Obligation.SuspendedAt = &suspendedAt
	listing.Obligation.SuspensionReason = &reason
	require.NoError(t, f.db.Save(listing).Error)

	view, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 1))
	require.NoError(t, err)

	assert.Equal(t, string(domain.SubscriptionStatusActive), view.Status)
	assert.Nil(t, view.SuspendedAt)
	assert.Empty(t, view.SuspensionReason)

	reloaded, err := f.listings.FindByID(context.Background(), f.db, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.True(t, reloaded.Active)
	assert.Nil(t, reloaded.Obligation.SuspendedAt)
}

func TestApplyPaymentRejectsBadSignature(t *testing.T) {
	f := setupBilling(t)
	dueAt := f.clock.now.AddDate(0, 0, 20)
	listing := f.seedListing(t, dueAt)

	f.gateway.verifyErr = gatewaydomain.ErrInvalidSignature

	_, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 1))
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidSignature)

	// Nothing was recorded.
	view, err := f.svc.GetListingObligation(context.Background(), listing.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, view.EntryCount)
	assert.WithinDuration(t, dueAt, view.DueAt, time.Second)
}

func TestApplyPaymentRejectsUncapturedPayment(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 20))

	f.gateway.payment = gatewaydomain.Payment{ID: "pay_1", Status: "authorized"}

	_, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 1))
	assert.ErrorIs(t, err, domain.ErrPaymentNotCaptured)
}

func TestApplyPaymentValidation(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 20))

	req := applyRequest(listing.ID.String(), "pay_1", 1)
	req.Amount = 0
	_, err := f.svc.ApplyListingPayment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentData)

	req = applyRequest(listing.ID.String(), "pay_1", 0)
	_, err = f.svc.ApplyListingPayment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentData)

	req = applyRequest(listing.ID.String(), "", 1)
	_, err = f.svc.ApplyListingPayment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentData)
}

func TestGetListingObligationNotFound(t *testing.T) {
	f := setupBilling(t)

	_, err := f.svc.GetListingObligation(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrObligationNotFound)

	_, err = f.svc.GetListingObligation(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrObligationNotFound)
}

func TestListListingLedgerPagination(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 20))

	for _, paymentID := range []string{"pay_1", "pay_2", "pay_3"} {
		_, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), paymentID, 1))
		require.NoError(t, err)
	}

	page, err := f.svc.ListListingLedger(context.Background(), domain.ListLedgerRequest{
		ResourceID: listing.ID.String(),
		PageSize:   2,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextPageToken)

	// Newest first.
	assert.Equal(t, "pay_3", page.Entries[0].ExternalPaymentID)
	assert.Equal(t, "pay_2", page.Entries[1].ExternalPaymentID)

	rest, err := f.svc.ListListingLedger(context.Background(), domain.ListLedgerRequest{
		ResourceID: listing.ID.String(),
		PageToken:  page.NextPageToken,
		PageSize:   2,
	})
	require.NoError(t, err)
	require.Len(t, rest.Entries, 1)
	assert.False(t, rest.HasMore)
	assert.Equal(t, "pay_1", rest.Entries[0].ExternalPaymentID)
}

func TestListLedgerRejectsBadPageToken(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 20))

	_, err := f.svc.ListListingLedger(context.Background(), domain.ListLedgerRequest{
		ResourceID: listing.ID.String(),
		PageToken:  "%%%not-base64%%%",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentData)
}

func TestGetListingLedgerEntry(t *testing.T) {
	f := setupBilling(t)
	listing := f.seedListing(t, f.clock.now.AddDate(0, 0, 20))

	_, err := f.svc.ApplyListingPayment(context.Background(), applyRequest(listing.ID.String(), "pay_1", 2))
	require.NoError(t, err)

	page, err := f.svc.ListListingLedger(context.Background(), domain.ListLedgerRequest{ResourceID: listing.ID.String()})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)

	entry, err := f.svc.GetListingLedgerEntry(context.Background(), listing.ID.String(), page.Entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", entry.ExternalPaymentID)
	assert.Equal(t, 2, entry.PeriodsCovered)

	_, err = f.svc.GetListingLedgerEntry(context.Background(), listing.ID.String(), f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrLedgerEntryNotFound)
}
