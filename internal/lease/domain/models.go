// Package domain contains persistence models for tenant leases and the rent
// obligation each one carries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/stayloop/stayloop/internal/billing/domain"
	"gorm.io/datatypes"
)

// RentObligation tracks the recurring rent due on a lease. Status is a
// cached projection of DueAt against the clock; TerminatedAt is sticky
// until a payment clears it.
type RentObligation struct {
	RatePerPeriod     int64                     `gorm:"not null"`
	DueAt             time.Time                 `gorm:"not null;index"`
	Status            billingdomain.LeaseStatus `gorm:"type:text;not null"`
	GracePeriodEndsAt *time.Time                `gorm:""`
	TerminatedAt      *time.Time                `gorm:""`
	TerminationReason *string                   `gorm:"type:text"`
	LastPaymentAt     *time.Time                `gorm:""`
}

// Lease binds a tenant to a listing for a monthly rent.
type Lease struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ListingID snowflake.ID `gorm:"not null;index"`
	TenantID  snowflake.ID `gorm:"not null;index"`
	StartAt   time.Time    `gorm:"not null"`

	Obligation RentObligation `gorm:"embedded"`
	Ledger     []RentEntry    `gorm:"foreignKey:LeaseID"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Lease) TableName() string { return "leases" }

// RentEntry is one applied rent payment. Immutable once created.
type RentEntry struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	LeaseID           snowflake.ID `gorm:"not null;index"`
	Amount            int64        `gorm:"not null"`
	PeriodsCovered    int          `gorm:"not null"`
	ExternalPaymentID string       `gorm:"type:text;not null;uniqueIndex:ux_rent_entries_payment"`
	ExternalOrderID   string       `gorm:"type:text;not null"`
	AppliedAt         time.Time    `gorm:"not null"`
	ValidUntil        time.Time    `gorm:"not null"`
	EntryStatus       string       `gorm:"type:text;not null;default:'completed'"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RentEntry) TableName() string { return "rent_entries" }
