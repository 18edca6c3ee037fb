package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/clock"
	gatewaydomain "github.com/stayloop/stayloop/internal/gateway/domain"
	leasedomain "github.com/stayloop/stayloop/internal/lease/domain"
	listingdomain "github.com/stayloop/stayloop/internal/listing/domain"
	"github.com/stayloop/stayloop/internal/observability/metrics"
	pricingdomain "github.com/stayloop/stayloop/internal/pricing/domain"
	"github.com/stayloop/stayloop/pkg/db"
	"github.com/stayloop/stayloop/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Obligation type labels used in metrics and gateway notes.
const (
	obligationTypeSubscription = "subscription"
	obligationTypeLease        = "lease"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Pricing  pricingdomain.Service
	Gateway  gatewaydomain.Client
	Listings listingdomain.Repository
	Leases   leasedomain.Repository
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	pricing  pricingdomain.Service
	gateway  gatewaydomain.Client
	listings listingdomain.Repository
	leases   leasedomain.Repository
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billing.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		pricing:  p.Pricing,
		gateway:  p.Gateway,
		listings: p.Listings,
		leases:   p.Leases,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateListingOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	listingID, err := parseID(req.ResourceID)
	if err != nil {
		return domain.CreateOrderResponse{}, domain.ErrObligationNotFound
	}

	listing, err := s.listings.FindByID(ctx, s.db, listingID)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}
	if listing == nil {
		return domain.CreateOrderResponse{}, domain.ErrObligationNotFound
	}

	breakdown, err := s.pricing.ComputeSubscriptionCharge(listing.Obligation.RatePerPeriod, req.Periods, req.CouponCode)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	receipt := "svc_" + ulid.Make().String()
	order, err := s.gateway.CreateOrder(ctx, gatewaydomain.CreateOrderRequest{
		Amount:   breakdown.AmountMinorUnits,
		Currency: breakdown.Currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"listing_id":      listing.ID.String(),
			"obligation_type": obligationTypeSubscription,
			"periods":         fmt.Sprintf("%d", breakdown.Periods),
		},
	})
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	s.metrics.RecordOrderCreated(ctx, obligationTypeSubscription)
	s.log.Info("listing order created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", breakdown.AmountMinorUnits),
	)

	return domain.CreateOrderResponse{
		OrderID:   order.ID,
		Receipt:   receipt,
		Breakdown: breakdown,
	}, nil
}

func (s *Service) ApplyListingPayment(ctx context.Context, req domain.ApplyPaymentRequest) (domain.ObligationView, error) {
	listingID, err := parseID(req.ResourceID)
	if err != nil {
		return domain.ObligationView{}, domain.ErrObligationNotFound
	}
	if err := req.Validate(); err != nil {
		return domain.ObligationView{}, err
	}

	if err := s.verifyPayment(ctx, req, obligationTypeSubscription); err != nil {
		return domain.ObligationView{}, err
	}

	now := s.clock.Now()
	var duplicate bool
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := s.listings.FindByIDForUpdate(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if listing == nil {
			return domain.ErrObligationNotFound
		}

		existing, err := s.listings.FindEntryByPaymentID(ctx, tx, listingID, req.ExternalPaymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			duplicate = true
			return nil
		}

		// Paying early extends from the current due date; paying late
		// extends from now. The due date never moves backwards.
		base := maxTime(listing.Obligation.DueAt, now)
		newDueAt := base.AddDate(0, req.PeriodsCovered, 0)

		entry := listingdomain.ServiceEntry{
			ID:                s.genID.Generate(),
			ListingID:         listing.ID,
			Amount:            req.Amount,
			PeriodsCovered:    req.PeriodsCovered,
			ExternalPaymentID: req.ExternalPaymentID,
			ExternalOrderID:   req.ExternalOrderID,
			AppliedAt:         now,
			ValidUntil:        newDueAt,
			EntryStatus:       listingdomain.EntryStatusCompleted,
			CreatedAt:         now,
		}
		if err := s.listings.AppendEntry(ctx, tx, &entry); err != nil {
			if db.IsDuplicateKeyErr(err) {
				duplicate = true
				return nil
			}
			return err
		}

		wasSuspended := listing.Obligation.SuspendedAt != nil
		listing.Obligation.DueAt = newDueAt
		listing.Obligation.SuspendedAt = nil
		listing.Obligation.SuspensionReason = nil
		listing.Obligation.GracePeriodEndsAt = nil
		listing.Obligation.LastPaymentAt = &now
		listing.Obligation.Status = domain.DeriveSubscriptionStatus(newDueAt, now, nil)
		if err := s.listings.SaveObligation(ctx, tx, listing); err != nil {
			return err
		}

		if wasSuspended || !listing.Active {
			if err := s.listings.SetActive(ctx, tx, listing.ID, true); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrObligationNotFound) {
			return domain.ObligationView{}, txErr
		}
		// The gateway captured the money but the ledger write failed.
		// Callers retry the apply step only and never re-charge.
		return domain.ObligationView{}, fmt.Errorf("%w: %v", domain.ErrPaymentNotRecorded, txErr)
	}

	if duplicate {
		s.log.Info("duplicate payment ignored",
			zap.String("listing_id", req.ResourceID),
			zap.String("payment_id", req.ExternalPaymentID),
		)
	} else {
		s.metrics.RecordPaymentApplied(ctx, obligationTypeSubscription)
	}

	return s.GetListingObligation(ctx, req.ResourceID)
}

func (s *Service) GetListingObligation(ctx context.Context, listingID string) (domain.ObligationView, error) {
	id, err := parseID(listingID)
	if err != nil {
		return domain.ObligationView{}, domain.ErrObligationNotFound
	}

	listing, err := s.listings.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ObligationView{}, err
	}
	if listing == nil {
		return domain.ObligationView{}, domain.ErrObligationNotFound
	}

	total, count, err := s.listings.SumEntries(ctx, s.db, id)
	if err != nil {
		return domain.ObligationView{}, err
	}

	ob := listing.Obligation
	view := domain.ObligationView{
		ResourceID:        listing.ID.String(),
		RatePerPeriod:     ob.RatePerPeriod,
		DueAt:             ob.DueAt,
		Status:            string(domain.DeriveSubscriptionStatus(ob.DueAt, s.clock.Now(), ob.SuspendedAt)),
		GracePeriodEndsAt: ob.GracePeriodEndsAt,
		SuspendedAt:       ob.SuspendedAt,
		LastPaymentAt:     ob.LastPaymentAt,
		TotalPaid:         total,
		EntryCount:        count,
	}
	if ob.SuspensionReason != nil {
		view.SuspensionReason = *ob.SuspensionReason
	}
	return view, nil
}

func (s *Service) ListListingLedger(ctx context.Context, req domain.ListLedgerRequest) (domain.ListLedgerResponse, error) {
	id, err := parseID(req.ResourceID)
	if err != nil {
		return domain.ListLedgerResponse{}, domain.ErrObligationNotFound
	}

	listing, err := s.listings.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ListLedgerResponse{}, err
	}
	if listing == nil {
		return domain.ListLedgerResponse{}, domain.ErrObligationNotFound
	}

	afterID, pageSize, err := decodeLedgerPage(req.PageToken, req.PageSize)
	if err != nil {
		return domain.ListLedgerResponse{}, err
	}

	entries, err := s.listings.ListEntries(ctx, s.db, id, afterID, int(pageSize)+1)
	if err != nil {
		return domain.ListLedgerResponse{}, err
	}

	refs := make([]*listingdomain.ServiceEntry, 0, len(entries))
	for i := range entries {
		refs = append(refs, &entries[i])
	}
	pageInfo := pagination.BuildCursorPageInfo(refs, pageSize, func(entry *listingdomain.ServiceEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: entry.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(entries) > int(pageSize) {
		entries = entries[:pageSize]
	}

	views := make([]domain.LedgerEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, domain.LedgerEntryView{
			ID:                entry.ID.String(),
			Amount:            entry.Amount,
			PeriodsCovered:    entry.PeriodsCovered,
			ExternalPaymentID: entry.ExternalPaymentID,
			ExternalOrderID:   entry.ExternalOrderID,
			AppliedAt:         entry.AppliedAt,
			ValidUntil:        entry.ValidUntil,
			EntryStatus:       entry.EntryStatus,
		})
	}

	resp := domain.ListLedgerResponse{Entries: views}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) CreateLeaseOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	leaseID, err := parseID(req.ResourceID)
	if err != nil {
		return domain.CreateOrderResponse{}, domain.ErrObligationNotFound
	}

	lease, err := s.leases.FindByID(ctx, s.db, leaseID)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}
	if lease == nil {
		return domain.CreateOrderResponse{}, domain.ErrObligationNotFound
	}

	breakdown, err := s.pricing.ComputeLeaseCharge(lease.Obligation.RatePerPeriod, req.Periods, req.CouponCode)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	receipt := "rent_" + ulid.Make().String()
	order, err := s.gateway.CreateOrder(ctx, gatewaydomain.CreateOrderRequest{
		Amount:   breakdown.AmountMinorUnits,
		Currency: breakdown.Currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"lease_id":        lease.ID.String(),
			"obligation_type": obligationTypeLease,
			"periods":         fmt.Sprintf("%d", breakdown.Periods),
		},
	})
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	s.metrics.RecordOrderCreated(ctx, obligationTypeLease)
	s.log.Info("lease order created",
		zap.String("lease_id", lease.ID.String()),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", breakdown.AmountMinorUnits),
	)

	return domain.CreateOrderResponse{
		OrderID:   order.ID,
		Receipt:   receipt,
		Breakdown: breakdown,
	}, nil
}

func (s *Service) ApplyLeasePayment(ctx context.Context, req domain.ApplyPaymentRequest) (domain.ObligationView, error) {
	leaseID, err := parseID(req.ResourceID)
	if err != nil {
		return domain.ObligationView{}, domain.ErrObligationNotFound
	}
	if err := req.Validate(); err != nil {
		return domain.ObligationView{}, err
	}

	if err := s.verifyPayment(ctx, req, obligationTypeLease); err != nil {
		return domain.ObligationView{}, err
	}

	now := s.clock.Now()
	var duplicate bool
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lease, err := s.leases.FindByIDForUpdate(ctx, tx, leaseID)
		if err != nil {
			return err
		}
		if lease == nil {
			return domain.ErrObligationNotFound
		}

		existing, err := s.leases.FindEntryByPaymentID(ctx, tx, leaseID, req.ExternalPaymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			duplicate = true
			return nil
		}

		// Rent is owed for the period whether paid early or late, so the
		// schedule always extends from the recorded due date.
		newDueAt := lease.Obligation.DueAt.AddDate(0, req.PeriodsCovered, 0)

		entry := leasedomain.RentEntry{
			ID:                s.genID.Generate(),
			LeaseID:           lease.ID,
			Amount:            req.Amount,
			PeriodsCovered:    req.PeriodsCovered,
			ExternalPaymentID: req.ExternalPaymentID,
			ExternalOrderID:   req.ExternalOrderID,
			AppliedAt:         now,
			ValidUntil:        newDueAt,
			EntryStatus:       listingdomain.EntryStatusCompleted,
			CreatedAt:         now,
		}
		if err := s.leases.AppendEntry(ctx, tx, &entry); err != nil {
			if db.IsDuplicateKeyErr(err) {
				duplicate = true
				return nil
			}
			return err
		}

		lease.Obligation.DueAt = newDueAt
		lease.Obligation.TerminatedAt = nil
		lease.Obligation.TerminationReason = nil
		lease.Obligation.GracePeriodEndsAt = nil
		lease.Obligation.LastPaymentAt = &now
		lease.Obligation.Status = domain.DeriveLeaseStatus(newDueAt, now, nil)
		return s.leases.SaveObligation(ctx, tx, lease)
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrObligationNotFound) {
			return domain.ObligationView{}, txErr
		}
		return domain.ObligationView{}, fmt.Errorf("%w: %v", domain.ErrPaymentNotRecorded, txErr)
	}

	if duplicate {
		s.log.Info("duplicate payment ignored",
			zap.String("lease_id", req.ResourceID),
			zap.String("payment_id", req.ExternalPaymentID),
		)
	} else {
		s.metrics.RecordPaymentApplied(ctx, obligationTypeLease)
	}

	return s.GetLeaseObligation(ctx, req.ResourceID)
}

func (s *Service) GetLeaseObligation(ctx context.Context, leaseID string) (domain.ObligationView, error) {
	id, err := parseID(leaseID)
	if err != nil {
		return domain.ObligationView{}, domain.ErrObligationNotFound
	}

	lease, err := s.leases.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ObligationView{}, err
	}
	if lease == nil {
		return domain.ObligationView{}, domain.ErrObligationNotFound
	}

	total, count, err := s.leases.SumEntries(ctx, s.db, id)
	if err != nil {
		return domain.ObligationView{}, err
	}

	ob := lease.Obligation
	view := domain.ObligationView{
		ResourceID:        lease.ID.String(),
		RatePerPeriod:     ob.RatePerPeriod,
		DueAt:             ob.DueAt,
		Status:            string(domain.DeriveLeaseStatus(ob.DueAt, s.clock.Now(), ob.TerminatedAt)),
		GracePeriodEndsAt: ob.GracePeriodEndsAt,
		SuspendedAt:       ob.TerminatedAt,
		LastPaymentAt:     ob.LastPaymentAt,
		TotalPaid:         total,
		EntryCount:        count,
	}
	if ob.TerminationReason != nil {
		view.SuspensionReason = *ob.TerminationReason
	}
	return view, nil
}

func (s *Service) ListLeaseLedger(ctx context.Context, req domain.ListLedgerRequest) (domain.ListLedgerResponse, error) {
	id, err := parseID(req.ResourceID)
	if err != nil {
		return domain.ListLedgerResponse{}, domain.ErrObligationNotFound
	}

	lease, err := s.leases.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ListLedgerResponse{}, err
	}
	if lease == nil {
		return domain.ListLedgerResponse{}, domain.ErrObligationNotFound
	}

	afterID, pageSize, err := decodeLedgerPage(req.PageToken, req.PageSize)
	if err != nil {
		return domain.ListLedgerResponse{}, err
	}

	entries, err := s.leases.ListEntries(ctx, s.db, id, afterID, int(pageSize)+1)
	if err != nil {
		return domain.ListLedgerResponse{}, err
	}

	refs := make([]*leasedomain.RentEntry, 0, len(entries))
	for i := range entries {
		refs = append(refs, &entries[i])
	}
	pageInfo := pagination.BuildCursorPageInfo(refs, pageSize, func(entry *leasedomain.RentEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: entry.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(entries) > int(pageSize) {
		entries = entries[:pageSize]
	}

	views := make([]domain.LedgerEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, domain.LedgerEntryView{
			ID:                entry.ID.String(),
			Amount:            entry.Amount,
			PeriodsCovered:    entry.PeriodsCovered,
			ExternalPaymentID: entry.ExternalPaymentID,
			ExternalOrderID:   entry.ExternalOrderID,
			AppliedAt:         entry.AppliedAt,
			ValidUntil:        entry.ValidUntil,
			EntryStatus:       entry.EntryStatus,
		})
	}

	resp := domain.ListLedgerResponse{Entries: views}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetListingLedgerEntry(ctx context.Context, listingID, entryID string) (domain.LedgerEntryView, error) {
	id, err := parseID(listingID)
	if err != nil {
		return domain.LedgerEntryView{}, domain.ErrObligationNotFound
	}
	eid, err := parseID(entryID)
	if err != nil {
		return domain.LedgerEntryView{}, domain.ErrLedgerEntryNotFound
	}

	entry, err := s.listings.FindEntryByID(ctx, s.db, id, eid)
	if err != nil {
		return domain.LedgerEntryView{}, err
	}
	if entry == nil {
		return domain.LedgerEntryView{}, domain.ErrLedgerEntryNotFound
	}

	return domain.LedgerEntryView{
		ID:                entry.ID.String(),
		Amount:            entry.Amount,
		PeriodsCovered:    entry.PeriodsCovered,
		ExternalPaymentID: entry.ExternalPaymentID,
		ExternalOrderID:   entry.ExternalOrderID,
		AppliedAt:         entry.AppliedAt,
		ValidUntil:        entry.ValidUntil,
		EntryStatus:       entry.EntryStatus,
	}, nil
}

func (s *Service) GetLeaseLedgerEntry(ctx context.Context, leaseID, entryID string) (domain.LedgerEntryView, error) {
	id, err := parseID(leaseID)
	if err != nil {
		return domain.LedgerEntryView{}, domain.ErrObligationNotFound
	}
	eid, err := parseID(entryID)
	if err != nil {
		return domain.LedgerEntryView{}, domain.ErrLedgerEntryNotFound
	}

	entry, err := s.leases.FindEntryByID(ctx, s.db, id, eid)
	if err != nil {
		return domain.LedgerEntryView{}, err
	}
	if entry == nil {
		return domain.LedgerEntryView{}, domain.ErrLedgerEntryNotFound
	}

	return domain.LedgerEntryView{
		ID:                entry.ID.String(),
		Amount:            entry.Amount,
		PeriodsCovered:    entry.PeriodsCovered,
		ExternalPaymentID: entry.ExternalPaymentID,
		ExternalOrderID:   entry.ExternalOrderID,
		AppliedAt:         entry.AppliedAt,
		ValidUntil:        entry.ValidUntil,
		EntryStatus:       entry.EntryStatus,
	}, nil
}

// verifyPayment checks the checkout signature, then confirms capture with
// the gateway before anything touches the database.
func (s *Service) verifyPayment(ctx context.Context, req domain.ApplyPaymentRequest, obligationType string) error {
	if err := s.gateway.VerifySignature(req.ExternalOrderID, req.ExternalPaymentID, req.Signature); err != nil {
		s.metrics.RecordPaymentRejected(ctx, obligationType, "signature")
		return err
	}

	payment, err := s.gateway.FetchPayment(ctx, req.ExternalPaymentID)
	if err != nil {
		s.metrics.RecordPaymentRejected(ctx, obligationType, "gateway")
		return err
	}
	if payment.Status != gatewaydomain.PaymentStatusCaptured {
		s.metrics.RecordPaymentRejected(ctx, obligationType, "not_captured")
		return domain.ErrPaymentNotCaptured
	}
	return nil
}

func decodeLedgerPage(pageToken string, pageSize int32) (snowflake.ID, int32, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	var afterID snowflake.ID
	if token := strings.TrimSpace(pageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return 0, 0, domain.ErrInvalidPaymentData
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return 0, 0, domain.ErrInvalidPaymentData
		}
		afterID = id
	}
	return afterID, pageSize, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, errors.New("invalid_id")
	}
	return id, nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
