package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/config"
	"github.com/stayloop/stayloop/internal/listing/domain"
	"github.com/stayloop/stayloop/internal/listing/repository"
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

func setupListingService(t *testing.T) (domain.Service, *fakeClock, *snowflake.Node) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(&domain.Listing{}, &domain.ServiceEntry{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	pricing := pricingservice.NewService(pricingservice.Params{
		Log:    zap.NewNop(),
		Policy: config.NewStaticPricingConfigHolder(config.DefaultPricingConfig()),
	})

	svc := New(Params{
		DB:      gdb,
		Log:     zap.NewNop(),
		Clock:   clk,
		GenID:   node,
		Repo:    repository.Provide(),
		Pricing: pricing,
	})

	return svc, clk, node
}

func TestCreateListing(t *testing.T) {
	svc, clk, node := setupListingService(t)

	listing, err := svc.Create(context.Background(), domain.CreateListingRequest{
		OwnerID:      node.Generate().String(),
		Title:        "Sunny 3BHK near the park",
		City:         "Pune",
		UnitType:     "Apartment",
		BedroomLabel: "3BHK",
	})
	require.NoError(t, err)

	assert.NotZero(t, listing.ID)
	assert.Equal(t, "apartment", listing.UnitType)
	assert.True(t, listing.Active)
	assert.Contains(t, listing.Slug, "sunny-3bhk-near-the-park")
	// 3 bedrooms at the per-unit rate.
	assert.Equal(t, int64(54), listing.Obligation.RatePerPeriod)
	assert.Equal(t, clk.now.AddDate(0, 1, 0), listing.Obligation.DueAt)
	assert.Equal(t, billingdomain.SubscriptionStatusActive, listing.Obligation.Status)
}

func TestCreateListingValidation(t *testing.T) {
	svc, _, node := setupListingService(t)

	_, err := svc.Create(context.Background(), domain.CreateListingRequest{
		OwnerID:  "nope",
		Title:    "T",
		UnitType: "pg",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)

	_, err = svc.Create(context.Background(), domain.CreateListingRequest{
		OwnerID:  node.Generate().String(),
		Title:    "   ",
		UnitType: "pg",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = svc.Create(context.Background(), domain.CreateListingRequest{
		OwnerID: node.Generate().String(),
		Title:   "No unit type",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitType)
}

func TestGetListingByID(t *testing.T) {
	svc, _, node := setupListingService(t)

	created, err := svc.Create(context.Background(), domain.CreateListingRequest{
		OwnerID:  node.Generate().String(),
		Title:    "Hostel room",
		UnitType: "hostel",
		Rooms:    6,
	})
	require.NoError(t, err)

	got, err := svc.GetByID(context.Background(), created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(108), got.Obligation.RatePerPeriod)

	_, err = svc.GetByID(context.Background(), node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(context.Background(), "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListListingsFiltersByOwner(t *testing.T) {
	svc, _, node := setupListingService(t)

	ownerA := node.Generate().String()
	ownerB := node.Generate().String()

	for i, owner := range []string{ownerA, ownerA, ownerB} {
		_, err := svc.Create(context.Background(), domain.CreateListingRequest{
			OwnerID:  owner,
			Title:    "Listing " + string(rune('A'+i)),
			UnitType: "studio",
		})
		require.NoError(t, err)
	}

	all, err := svc.List(context.Background(), domain.ListListingRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Listings, 3)

	mine, err := svc.List(context.Background(), domain.ListListingRequest{OwnerID: ownerA})
	require.NoError(t, err)
	assert.Len(t, mine.Listings, 2)

	_, err = svc.List(context.Background(), domain.ListListingRequest{OwnerID: "bad"})
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
}
