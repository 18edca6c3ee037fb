package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, listing *Listing) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Listing, error)
	// FindByIDForUpdate takes a row lock so a single obligation serializes
	// its own mutations; callers must hold an open transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Listing, error)
	List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, limit int) ([]Listing, error)
	SaveObligation(ctx context.Context, db *gorm.DB, listing *Listing) error
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error

	AppendEntry(ctx context.Context, db *gorm.DB, entry *ServiceEntry) error
	FindEntryByPaymentID(ctx context.Context, db *gorm.DB, listingID snowflake.ID, externalPaymentID string) (*ServiceEntry, error)
	FindEntryByID(ctx context.Context, db *gorm.DB, listingID, entryID snowflake.ID) (*ServiceEntry, error)
	ListEntries(ctx context.Context, db *gorm.DB, listingID snowflake.ID, afterID snowflake.ID, limit int) ([]ServiceEntry, error)
	SumEntries(ctx context.Context, db *gorm.DB, listingID snowflake.ID) (total int64, count int, err error)

	// FindDueForReconcile returns listings whose due date has passed the
	// cutoff and whose recorded state is not already suspended.
	FindDueForReconcile(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Listing, error)
}
