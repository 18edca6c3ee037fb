package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"github.com/stayloop/stayloop/internal/lease/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, lease *domain.Lease) error {
	return db.WithContext(ctx).Create(lease).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Lease, error) {
	var lease domain.Lease
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Lease, error) {
	stmt := db.WithContext(ctx)
	// sqlite has no row locks; its single writer gives the same guarantee.
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var lease domain.Lease
	err := stmt.Where("id = ?", id).First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]domain.Lease, error) {
	var leases []domain.Lease
	stmt := db.WithContext(ctx).Model(&domain.Lease{})
	if tenantID != 0 {
		stmt = stmt.Where("tenant_id = ?", tenantID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Find(&leases).Error
	if err != nil {
		return nil, err
	}
	return leases, nil
}

func (r *repo) SaveObligation(ctx context.Context, db *gorm.DB, lease *domain.Lease) error {
	return db.WithContext(ctx).
		Model(&domain.Lease{}).
		Where("id = ?", lease.ID).
		Updates(map[string]any{
			"rate_per_period":      lease.Obligation.RatePerPeriod,
			"due_at":               lease.Obligation.DueAt,
			"status":               lease.Obligation.Status,
			"grace_period_ends_at": lease.Obligation.GracePeriodEndsAt,
			"terminated_at":        lease.Obligation.TerminatedAt,
			"termination_reason":   lease.Obligation.TerminationReason,
			"last_payment_at":      lease.Obligation.LastPaymentAt,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *repo) AppendEntry(ctx context.Context, db *gorm.DB, entry *domain.RentEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindEntryByPaymentID(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, externalPaymentID string) (*domain.RentEntry, error) {
	var entry domain.RentEntry
	err := db.WithContext(ctx).
		Where("lease_id = ? AND external_payment_id = ?", leaseID, externalPaymentID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) FindEntryByID(ctx context.Context, db *gorm.DB, leaseID, entryID snowflake.ID) (*domain.RentEntry, error) {
	var entry domain.RentEntry
	err := db.WithContext(ctx).
		Where("lease_id = ? AND id = ?", leaseID, entryID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, afterID snowflake.ID, limit int) ([]domain.RentEntry, error) {
	var entries []domain.RentEntry
	stmt := db.WithContext(ctx).
		Model(&domain.RentEntry{}).
		Where("lease_id = ?", leaseID)
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

func (r *repo) SumEntries(ctx context.Context, db *gorm.DB, leaseID snowflake.ID) (int64, int, error) {
	var row struct {
		Total int64
		Count int
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
		 FROM rent_entries WHERE lease_id = ?`,
		leaseID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Count, nil
}

func (r *repo) FindDueForReconcile(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Lease, error) {
	var leases []domain.Lease
	stmt := db.WithContext(ctx).
		Model(&domain.Lease{}).
		Where("due_at <= ?", cutoff).
		Where("status <> ?", billingdomain.LeaseStatusTerminated)
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.
		Order("due_at asc, id asc").
		Find(&leases).Error
	if err != nil {
		return nil, err
	}
	return leases, nil
}
