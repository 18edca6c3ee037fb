package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/clock"
	"github.com/stayloop/stayloop/internal/listing/domain"
	pricingdomain "github.com/stayloop/stayloop/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Repo    domain.Repository
	Pricing pricingdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	pricing pricingdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("listing.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		pricing: p.Pricing,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateListingRequest) (domain.Listing, error) {
	ownerID, err := snowflake.ParseString(strings.TrimSpace(req.OwnerID))
	if err != nil || ownerID == 0 {
		return domain.Listing{}, domain.ErrInvalidOwner
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Listing{}, domain.ErrInvalidTitle
	}

	unitType := strings.ToLower(strings.TrimSpace(req.UnitType))
	if unitType == "" {
		return domain.Listing{}, domain.ErrInvalidUnitType
	}

	rate := s.pricing.PerPeriodRate(pricingdomain.RateBasis{
		UnitType:     unitType,
		Rooms:        req.Rooms,
		Beds:         req.Beds,
		BedroomLabel: req.BedroomLabel,
	})

	now := s.clock.Now()
	id := s.genID.Generate()
	dueAt := now.AddDate(0, 1, 0)

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	listing := domain.Listing{
		ID:           id,
		OwnerID:      ownerID,
		Slug:         slug.Make(title) + "-" + id.String(),
		Title:        title,
		City:         strings.TrimSpace(req.City),
		UnitType:     unitType,
		Rooms:        req.Rooms,
		Beds:         req.Beds,
		BedroomLabel: strings.ToLower(strings.TrimSpace(req.BedroomLabel)),
		Active:       true,
		Obligation: domain.ServiceObligation{
			RatePerPeriod: rate,
			DueAt:         dueAt,
			Status:        billingdomain.DeriveSubscriptionStatus(dueAt, now, nil),
		},
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &listing); err != nil {
		return domain.Listing{}, err
	}

	s.log.Info("listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("unit_type", listing.UnitType),
		zap.Int64("rate_per_period", rate),
	)

	return listing, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	listingID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || listingID == 0 {
		return domain.Listing{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	if item == nil {
		return domain.Listing{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListListingRequest) (domain.ListListingResponse, error) {
	var ownerID snowflake.ID
	if owner := strings.TrimSpace(req.OwnerID); owner != "" {
		id, err := snowflake.ParseString(owner)
		if err != nil || id == 0 {
			return domain.ListListingResponse{}, domain.ErrInvalidOwner
		}
		ownerID = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, ownerID, int(pageSize))
	if err != nil {
		return domain.ListListingResponse{}, err
	}

	return domain.ListListingResponse{Listings: items}, nil
}
