package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/listing/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, listing *domain.Listing) error {
	return db.WithContext(ctx).Create(listing).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Listing, error) {
	var listing domain.Listing
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Listing, error) {
	stmt := db.WithContext(ctx)
	// sqlite has no row locks; its single writer gives the same guarantee.
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var listing domain.Listing
	err := stmt.Where("id = ?", id).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, limit int) ([]domain.Listing, error) {
	var listings []domain.Listing
	stmt := db.WithContext(ctx).Model(&domain.Listing{})
	if ownerID != 0 {
		stmt = stmt.Where("owner_id = ?", ownerID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *repo) SaveObligation(ctx context.Context, db *gorm.DB, listing *domain.Listing) error {
	return db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ?", listing.ID).
		Updates(map[string]any{
			"rate_per_period":      listing.Obligation.RatePerPeriod,
			"due_at":               listing.Obligation.DueAt,
			"status":               listing.Obligation.Status,
			"grace_period_ends_at": listing.Obligation.GracePeriodEndsAt,
			"suspended_at":         listing.Obligation.SuspendedAt,
			"suspension_reason":    listing.Obligation.SuspensionReason,
			"last_payment_at":      listing.Obligation.LastPaymentAt,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":     active,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repo) AppendEntry(ctx context.Context, db *gorm.DB, entry *domain.ServiceEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindEntryByPaymentID(ctx context.Context, db *gorm.DB, listingID snowflake.ID, externalPaymentID string) (*domain.ServiceEntry, error) {
	var entry domain.ServiceEntry
	err := db.WithContext(ctx).
		Where("listing_id = ? AND external_payment_id = ?", listingID, externalPaymentID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) FindEntryByID(ctx context.Context, db *gorm.DB, listingID, entryID snowflake.ID) (*domain.ServiceEntry, error) {
	var entry domain.ServiceEntry
	err := db.WithContext(ctx).
		Where("listing_id = ? AND id = ?", listingID, entryID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, listingID snowflake.ID, afterID snowflake.ID, limit int) ([]domain.ServiceEntry, error) {
	var entries []domain.ServiceEntry
	stmt := db.WithContext(ctx).
		Model(&domain.ServiceEntry{}).
		Where("listing_id = ?", listingID)
	if afterID != 0 {
		stmt = stmt.Where("id < ?", afterID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.
		Order("id desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) SumEntries(ctx context.Context, db *gorm.DB, listingID snowflake.ID) (int64, int, error) {
	var row struct {
		Total int64
		Count int
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
		 FROM service_entries WHERE listing_id = ?`,
		listingID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Count, nil
}

func (r *repo) FindDueForReconcile(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Listing, error) {
	var listings []domain.Listing
	stmt := db.WithContext(ctx).
		Model(&domain.Listing{}).
		Where("due_at <= ?", cutoff).
		Where("status <> ?", billingdomain.SubscriptionStatusSuspended)
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.
		Order("due_at asc, id asc").
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}
