package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, lease *Lease) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Lease, error)
	// FindByIDForUpdate takes a row lock so a single obligation serializes
	// its own mutations; callers must hold an open transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Lease, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit int) ([]Lease, error)
	SaveObligation(ctx context.Context, db *gorm.DB, lease *Lease) error

	AppendEntry(ctx context.Context, db *gorm.DB, entry *RentEntry) error
	FindEntryByPaymentID(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, externalPaymentID string) (*RentEntry, error)
	FindEntryByID(ctx context.Context, db *gorm.DB, leaseID, entryID snowflake.ID) (*RentEntry, error)
	ListEntries(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, afterID snowflake.ID, limit int) ([]RentEntry, error)
	SumEntries(ctx context.Context, db *gorm.DB, leaseID snowflake.ID) (total int64, count int, err error)

	// FindDueForReconcile returns leases whose due date has passed the
	// cutoff and whose recorded state is not already terminated.
	FindDueForReconcile(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Lease, error)
}
