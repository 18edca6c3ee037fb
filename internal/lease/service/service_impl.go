package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/clock"
	"github.com/stayloop/stayloop/internal/lease/domain"
	listingdomain "github.com/stayloop/stayloop/internal/listing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     domain.Repository
	Listings listingdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	repo     domain.Repository
	listings listingdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("lease.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		repo:     p.Repo,
		listings: p.Listings,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateLeaseRequest) (domain.Lease, error) {
	listing, err := s.listings.GetByID(ctx, req.ListingID)
	if err != nil {
		if errors.Is(err, listingdomain.ErrNotFound) || errors.Is(err, listingdomain.ErrInvalidID) {
			return domain.Lease{}, domain.ErrInvalidListing
		}
		return domain.Lease{}, err
	}

	tenantID, err := snowflake.ParseString(strings.TrimSpace(req.TenantID))
	if err != nil || tenantID == 0 {
		return domain.Lease{}, domain.ErrInvalidTenant
	}

	if req.MonthlyRent <= 0 {
		return domain.Lease{}, domain.ErrInvalidRent
	}

	now := s.clock.Now()
	dueAt := now.AddDate(0, 1, 0)

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	lease := domain.Lease{
		ID:        s.genID.Generate(),
		ListingID: listing.ID,
		TenantID:  tenantID,
		StartAt:   now,
		Obligation: domain.RentObligation{
			RatePerPeriod: req.MonthlyRent,
			DueAt:         dueAt,
			Status:        billingdomain.DeriveLeaseStatus(dueAt, now, nil),
		},
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &lease); err != nil {
		return domain.Lease{}, err
	}

	s.log.Info("lease created",
		zap.String("lease_id", lease.ID.String()),
		zap.String("listing_id", lease.ListingID.String()),
		zap.Int64("monthly_rent", req.MonthlyRent),
	)

	return lease, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Lease, error) {
	leaseID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || leaseID == 0 {
		return domain.Lease{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, leaseID)
	if err != nil {
		return domain.Lease{}, err
	}
	if item == nil {
		return domain.Lease{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListLeaseRequest) (domain.ListLeaseResponse, error) {
	var tenantID snowflake.ID
	if tenant := strings.TrimSpace(req.TenantID); tenant != "" {
		id, err := snowflake.ParseString(tenant)
		if err != nil || id == 0 {
			return domain.ListLeaseResponse{}, domain.ErrInvalidTenant
		}
		tenantID = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, tenantID, int(pageSize))
	if err != nil {
		return domain.ListLeaseResponse{}, err
	}

	return domain.ListLeaseResponse{Leases: items}, nil
}
